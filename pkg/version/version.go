package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var raw string

// Get returns the release of the relay binary, e.g. "v0.1.0".
func Get() string {
	return strings.TrimSpace(raw)
}
