package web

import (
	"io/fs"
	"net/http"
	"path"
	"strings"
)

// Handler serves a static dashboard from fsys.
// It handles SPA routing by serving index.html for all non-API routes.
func Handler(fsys fs.FS) http.Handler {
	files := http.FileServer(http.FS(fsys))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestPath := r.URL.Path

		// Don't serve UI for API routes
		if strings.HasPrefix(requestPath, "/api/") {
			http.NotFound(w, r)
			return
		}

		// Root path or empty - serve index.html directly
		if requestPath == "/" || requestPath == "" {
			serveIndexHTML(w, fsys)
			return
		}

		// Try to serve the requested file
		filePath := strings.TrimPrefix(path.Clean(requestPath), "/")
		fileInfo, err := fs.Stat(fsys, filePath)
		if err == nil && !fileInfo.IsDir() {
			files.ServeHTTP(w, r)
			return
		}

		// File doesn't exist or is a directory - serve index.html for client-side routing
		serveIndexHTML(w, fsys)
	})
}

// serveIndexHTML serves the index.html file directly from fsys
func serveIndexHTML(w http.ResponseWriter, fsys fs.FS) {
	data, err := fs.ReadFile(fsys, "index.html")
	if err != nil {
		http.Error(w, "dashboard not available", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
