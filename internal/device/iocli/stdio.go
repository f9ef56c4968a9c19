package iocli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// Stdio is the terminal implementation used by the device binary. Device-key
// prompts go through term.ReadPassword so keys never echo on a shared field
// terminal.
type Stdio struct {
	in *bufio.Reader
}

// NewStdio returns an IO reading from stdin and writing to stdout.
func NewStdio() *Stdio {
	return &Stdio{in: bufio.NewReader(os.Stdin)}
}

func (s *Stdio) Println(a ...any) {
	fmt.Println(a...)
}

func (s *Stdio) Printf(format string, a ...any) {
	fmt.Printf(format, a...)
}

// ReadInput prompts for one line of input and trims surrounding whitespace.
func (s *Stdio) ReadInput(prompt string) (string, error) {
	s.Printf("%s", prompt)

	line, err := s.in.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// ReadPassword prompts for a secret without echoing it.
func (s *Stdio) ReadPassword(prompt string) (string, error) {
	s.Printf("%s", prompt)

	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	s.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	return string(secret), nil
}
