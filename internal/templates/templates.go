// Package templates embeds the default template sources.
package templates

import (
	"embed"
	"io/fs"
)

//go:embed files
var embedded embed.FS

// DefaultNames is the ordered list of templates expanded when no other list
// is configured.
var DefaultNames = []string{
	"bitpack_lib.py",
	"user_wrapper.sv",
	"bitpack_sngen.sv",
	"bitpack_sncnt.sv",
}

// FS returns the embedded templates rooted at their directory.
func FS() fs.FS {
	sub, err := fs.Sub(embedded, "files")
	if err != nil {
		panic(err)
	}
	return sub
}

// Names returns a copy of DefaultNames.
func Names() []string {
	return append([]string(nil), DefaultNames...)
}
