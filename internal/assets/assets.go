package assets

import "embed"

// WebFS holds the progress page served at "/".
//
//go:embed all:web/*.html
var WebFS embed.FS
