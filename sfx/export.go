package sfx

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"unicode"
)

// ExportConstants is used to export all currently loaded SFX,
// in a format that can be used to generate go constants.
func (r *Registry) ExportConstants() map[string]string {
	export := make(map[string]string, len(r.ids))
	for _, id := range r.ids {
		export[constantName(id)] = string(id)
	}
	return export
}

func constantName(id Id) string {
	var b strings.Builder
	capsNext := true
	for _, c := range string(id) {
		switch {
		case c == '-' || c == '_' || c == '.' || c == ' ':
			capsNext = true
		case capsNext:
			b.WriteRune(unicode.ToUpper(c))
			capsNext = false
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

// WriteConstants writes a Go constant block for the loaded ids.
func (r *Registry) WriteConstants(w io.Writer, prefix string) error {
	export := r.ExportConstants()
	names := make([]string, 0, len(export))
	for name := range export {
		names = append(names, name)
	}
	slices.Sort(names)

	if _, err := fmt.Fprintln(w, "const ("); err != nil {
		return err
	}
	for _, name := range names {
		if _, err := fmt.Fprintf(w, "\t%s%s sfx.Id = %q\n", prefix, name, export[name]); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, ")")
	return err
}
