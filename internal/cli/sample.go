package cli

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
)

// sampleProducts is the dataset served by the built-in upstream.
var sampleProducts = []map[string]any{
	{"id": 1, "name": "anvil", "price": 24.99},
	{"id": 2, "name": "rocket skates", "price": 79.95},
	{"id": 3, "name": "tornado seeds", "price": 5.25},
}

// sampleServer is a small JSON upstream for the demo: a product list, a
// by-id lookup, and an endpoint that always fails (to show transport
// error handling).
type sampleServer struct {
	srv *http.Server
	ln  net.Listener
}

// startSampleServer listens on an ephemeral localhost port.
func startSampleServer() (*sampleServer, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /products/all", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, sampleProducts)
	})
	mux.HandleFunc("GET /products/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(r.PathValue("id"))
		if err == nil {
			for _, p := range sampleProducts {
				if p["id"] == id {
					writeJSON(w, http.StatusOK, p)
					return
				}
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "no such product"})
	})
	mux.HandleFunc("GET /fail", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"message": "upstream on fire"})
	})

	s := &sampleServer{srv: &http.Server{Handler: mux}, ln: ln}
	go s.srv.Serve(ln) //nolint:errcheck // Serve returns on Close
	return s, nil
}

// URL returns the server's base URL.
func (s *sampleServer) URL() string {
	return "http://" + s.ln.Addr().String()
}

// Close shuts the server down.
func (s *sampleServer) Close() error {
	return s.srv.Close()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
