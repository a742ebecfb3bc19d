package main

import (
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nullbyte-labs/chainstore"
)

// newDiagnosticsServer exposes read-only JSON views of the store over HTTP.
func newDiagnosticsServer(store *chainstore.Store, addr string) *http.Server {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.HandleFunc("/chains", func(w http.ResponseWriter, req *http.Request) {
		type chainInfo struct {
			DiscoveryKey string `json:"discovery_key"`
			Writable     bool   `json:"writable"`
			Length       uint64 `json:"length"`
		}
		var out []chainInfo
		for _, ch := range store.List() {
			out = append(out, chainInfo{
				DiscoveryKey: hex.EncodeToString(ch.DiscoveryKey()),
				Writable:     ch.Writable(),
				Length:       ch.Length(),
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	})

	return &http.Server{Addr: addr, Handler: r}
}
