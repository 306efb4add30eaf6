// Package site serves the embedded browser viewer for correlation streams.
package site

import (
	"context"
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static
var assets embed.FS

// Register attaches the viewer to mux at /. Unknown paths fall through to
// the file server and get its 404.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	static, err := fs.Sub(assets, "static")
	if err != nil {
		panic(err)
	}
	mux.Handle("/", http.FileServerFS(static))
}
