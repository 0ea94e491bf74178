package webserver

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pavise/maskeval/internal/webapi"
)

// registerRoutes sets up the API and index routes on the given mux.
func registerRoutes(mux *http.ServeMux, store *webapi.FileStore) {
	webapi.RegisterRoutes(mux, store)
	mux.HandleFunc("POST /api/reload", handleReload(store))
	mux.HandleFunc("/api/", handleAPINotFound)
	mux.HandleFunc("GET /", handleIndex)
}

// handleReload re-reads the results directory so reports from new runs
// show up without restarting the server.
func handleReload(store *webapi.FileStore) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := store.Reload(); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()}) //nolint:errcheck
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "reloaded"}) //nolint:errcheck
	}
}

// handleAPINotFound returns a JSON 404 for unknown API paths.
func handleAPINotFound(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(map[string]string{"error": "not found"}) //nolint:errcheck
}

const indexHTML = `<!doctype html>
<html>
<head><title>maskeval</title></head>
<body>
<h1>maskeval results</h1>
<p>version %s</p>
<ul>
<li><a href="/api/summary">/api/summary</a></li>
<li><a href="/api/reports">/api/reports</a></li>
<li><a href="/api/health">/api/health</a></li>
</ul>
</body>
</html>
`

// handleIndex serves a minimal index page linking to the API endpoints.
func handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, indexHTML, webapi.Version)
}
