package utils

import (
	"crypto/subtle"
	"net/http"
	"net/http/pprof"

	"cloud.google.com/go/profiler"
	"github.com/cockroachdb/errors"
)

const (
	ProfilingModeGcp  = "gcp"
	ProfilingModeHttp = "http"
)

func StartGcpProfiler(service, version, projectId string) error {
	err := profiler.Start(profiler.Config{
		ProjectID:      projectId,
		Service:        service,
		ServiceVersion: version,
	})
	return errors.Wrap(err, "could not start the cloud profiler")
}

// PprofHandler serves the runtime profiles under /debug/pprof/, behind a static bearer token. It
// refuses every request when no token is configured.
func PprofHandler(token string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	for _, name := range []string{"goroutine", "heap", "allocs", "block", "mutex"} {
		mux.Handle("/debug/pprof/"+name, pprof.Handler(name))
	}

	expected := []byte("Bearer " + token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get("Authorization"))
		if token == "" || subtle.ConstantTimeCompare(got, expected) != 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		mux.ServeHTTP(w, r)
	})
}
