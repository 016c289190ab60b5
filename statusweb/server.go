package statusweb

import (
	"fmt"
	"net/http"
)

// Server owns the Hub and serves the /ws endpoint, matching web/server.go's
// Server.Start shape without the static-frontend/config-file serving the
// UWB dashboard needed (out of scope here).
type Server struct {
	Hub  *Hub
	stop chan struct{}
}

// NewServer returns an unstarted Server with a fresh Hub.
func NewServer() *Server {
	return &Server{Hub: NewHub(), stop: make(chan struct{})}
}

// Start launches the Hub's run loop and blocks serving HTTP on port until
// the process exits or ListenAndServe errors.
func (s *Server) Start(port int) error {
	go s.Hub.Run(s.stop)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ServeWs(s.Hub, w, r)
	})

	addr := fmt.Sprintf(":%d", port)
	return http.ListenAndServe(addr, mux)
}

// Stop halts the Hub's run loop. It does not close the underlying HTTP
// listener, matching Go's stdlib http.Server having no built-in graceful
// stop path invoked from here.
func (s *Server) Stop() {
	close(s.stop)
}
