package server

import (
	"io/fs"
	"net/http"
	"strings"

	"github.com/sendrec/ivplayer/internal/httputil"
)

// spaFileServer serves the authoring frontend, falling back to index.html
// for client-side routes. Unknown API paths stay JSON 404s.
type spaFileServer struct {
	fileServer http.Handler
	fileSystem fs.FS
}

func newSPAFileServer(fsys fs.FS) *spaFileServer {
	return &spaFileServer{
		fileServer: http.FileServer(http.FS(fsys)),
		fileSystem: fsys,
	}
}

func (s *spaFileServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		httputil.WriteError(w, http.StatusNotFound, "not found")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/")
	if path == "" {
		path = "index.html"
	}

	if _, err := fs.Stat(s.fileSystem, path); err != nil {
		r.URL.Path = "/"
	}

	s.fileServer.ServeHTTP(w, r)
}
