package sfx

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Id is used to identify a specific sound effect.
type Id string

// Slot returns the name of the effect unit playing variation n of id.
func (id Id) Slot(n int) string {
	return fmt.Sprintf("%s-%d", id, n)
}

// IdFromPath derives an id from a file name: "sounds/Door Open.wav" -> "door-open".
func IdFromPath(path string) Id {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.ToLower(strings.TrimSpace(base))
	return Id(strings.Join(strings.Fields(base), "-"))
}
