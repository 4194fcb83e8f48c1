package view

import (
	"fmt"
	"io"
	"io/fs"

	"github.com/willemschots/cardhub/internal/email"
)

// FSRenderer renders email views from a file system. All views are parsed
// up front so a broken template fails at startup instead of on first send.
type FSRenderer struct {
	views map[string]*View
}

func NewFSRenderer(fileSys fs.FS, names ...string) (*FSRenderer, error) {
	views := make(map[string]*View, len(names))
	for _, name := range names {
		v, err := Parse(fileSys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse email view %q: %w", name, err)
		}
		views[name] = v
	}

	return &FSRenderer{views: views}, nil
}

func (r *FSRenderer) Render(w io.Writer, name string, element email.TemplateElement, data any) error {
	v, ok := r.views[name]
	if !ok {
		return fmt.Errorf("unknown email view %q", name)
	}

	return v.Render(w, element, data)
}
