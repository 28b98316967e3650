// Package profiler serves net/http/pprof on its own mux for ad-hoc CPU
// and heap captures against a long-running crawl.
package profiler

import (
	"log"
	"net/http"
	"net/http/pprof"
	"time"
)

// DefaultAddr is used when InitialiseProfiler is called with an empty
// addr; one crawler instance per host is the common case.
const DefaultAddr = "localhost:19841"

// InitialiseProfiler starts the pprof HTTP server in the background. A
// caller running multiple crawler instances on one host sets
// engineering.profiler_addr so they don't fight over the bind.
func InitialiseProfiler(addr string) {
	if addr == "" {
		addr = DefaultAddr
	}

	http.DefaultServeMux = http.NewServeMux()
	go func() {
		server := &http.Server{
			Addr:         addr,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}

		http.HandleFunc("/debug/pprof/", pprof.Index)
		http.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		http.HandleFunc("/debug/pprof/profile", pprof.Profile)
		http.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		http.HandleFunc("/debug/pprof/trace", pprof.Trace)

		log.Println("Profiler is running on", addr)
		log.Println(server.ListenAndServe())
	}()
}
