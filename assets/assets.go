package assets

import (
	"embed"
	"io/fs"
)

//go:embed emails/*.tmpl
var emailFS embed.FS

// EmailFS contains the email templates, one {name}.tmpl per message.
var EmailFS fs.FS

func init() {
	var err error

	EmailFS, err = fs.Sub(emailFS, "emails")
	if err != nil {
		panic("failed to subtree email FS " + err.Error())
	}
}
