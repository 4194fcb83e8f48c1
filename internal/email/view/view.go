package view

import (
	"fmt"
	"io"
	"io/fs"
	"text/template"

	"github.com/willemschots/cardhub/internal/email"
)

// View is a parsed email template with a subject and a body block.
type View struct {
	tmpl *template.Template
}

// Parse parses {name}.tmpl from the root of fileSys.
func Parse(fileSys fs.FS, name string) (*View, error) {
	// Names end up in filenames, so no path separators or dots.
	if err := validateName(name); err != nil {
		return nil, err
	}

	tmpl, err := template.New(name).Option("missingkey=error").ParseFS(fileSys, name+".tmpl")
	if err != nil {
		return nil, err
	}

	for _, el := range []email.TemplateElement{email.ElementSubject, email.ElementBody} {
		if tmpl.Lookup(string(el)) == nil {
			return nil, fmt.Errorf("%s: missing %s template", name, el)
		}
	}

	return &View{tmpl: tmpl}, nil
}

// Render writes the element of the view to w.
func (v *View) Render(w io.Writer, element email.TemplateElement, data any) error {
	return v.tmpl.ExecuteTemplate(w, string(element), data)
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("empty view name")
	}

	for _, c := range name {
		if !validViewRune(c) {
			return fmt.Errorf("invalid character %q in view name: %s", c, name)
		}
	}
	return nil
}

func validViewRune(r rune) bool {
	return r == '-' || r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
