// Package term probes whether a file descriptor is an interactive terminal.
package term

import (
	"errors"
	"fmt"
	"os"
)

var (
	ErrNotTerminal = errors.New("not a terminal")
	ErrUnsupported = errors.New("terminal probe not supported on this platform")
)

// Check reports ErrNotTerminal when f is not attached to a terminal.
func Check(f *os.File) error {
	if f == nil {
		return ErrNotTerminal
	}
	if err := probe(int(f.Fd())); err != nil {
		return fmt.Errorf("%s: %w", f.Name(), err)
	}
	return nil
}

// IsTerminal is Check without the reason.
func IsTerminal(f *os.File) bool {
	return Check(f) == nil
}
