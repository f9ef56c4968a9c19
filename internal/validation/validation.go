package validation

import (
	"fmt"
	"regexp"
)

// BibPattern defines the accepted participant number format: 1-4 digits,
// optionally followed by a single letter (e.g. "42", "107b").
var BibPattern = regexp.MustCompile(`^[0-9]{1,4}[a-zA-Z]?$`)

// DeviceNamePattern defines the accepted device name format.
// Latin letters, digits, dash and underscore, 3-32 characters.
var DeviceNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,32}$`)

const (
	// MaxNameLen maximum length of a reference entity name.
	MaxNameLen = 128
	// MinDeviceKeyLen minimum length of a device key.
	MinDeviceKeyLen = 12
)

// ValidateBib checks that a participant number is well formed.
func ValidateBib(bib string) error {
	if bib == "" {
		return fmt.Errorf("bib cannot be empty")
	}
	if !BibPattern.MatchString(bib) {
		return fmt.Errorf("bib must be 1-4 digits with an optional letter suffix")
	}
	return nil
}

// ValidateName checks a reference entity name.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if len(name) > MaxNameLen {
		return fmt.Errorf("name must not exceed %d characters", MaxNameLen)
	}
	return nil
}

// ValidateDeviceName checks the name under which a device registers.
func ValidateDeviceName(name string) error {
	if name == "" {
		return fmt.Errorf("device name cannot be empty")
	}
	if !DeviceNamePattern.MatchString(name) {
		return fmt.Errorf("device name can only contain letters, numbers, dashes and underscores (3-32 characters)")
	}
	return nil
}

// ValidateDeviceKey checks minimal requirements for a device key.
func ValidateDeviceKey(key string) error {
	if key == "" {
		return fmt.Errorf("device key cannot be empty")
	}
	if len(key) < MinDeviceKeyLen {
		return fmt.Errorf("device key must be at least %d characters long", MinDeviceKeyLen)
	}
	return nil
}
