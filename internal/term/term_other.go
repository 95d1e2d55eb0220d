//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd && !dragonfly

package term

import "fmt"

func probe(int) error { return fmt.Errorf("%w: %w", ErrNotTerminal, ErrUnsupported) }
