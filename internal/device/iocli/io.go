// Package iocli abstracts the device terminal. Field devices are operated
// through prompts (registration, key entry, clear confirmation); keeping the
// terminal behind an interface lets CLI commands run against a scripted
// implementation in tests.
package iocli

// IO is the terminal contract the CLI commands depend on.
type IO interface {
	Println(a ...any)
	Printf(format string, a ...any)
	ReadInput(prompt string) (string, error)
	ReadPassword(prompt string) (string, error)
}

var _ IO = (*Stdio)(nil)
