package http

import (
	_ "embed"
	"net/http"
)

//go:embed static/greetings.html
var greetingPage []byte

// handlePage handles GET /.
func (a *Adapter) handlePage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(greetingPage)
}
