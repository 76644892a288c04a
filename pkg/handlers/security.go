// This file defines the middleware wrapped around every route: security
// headers and request logging.
package handlers

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// contentSecurityPolicy allows images from Spotify's and Last.fm's cover CDNs
// only.
const contentSecurityPolicy = "default-src 'self'; img-src 'self' https://i.scdn.co https://lastfm.freetls.fastly.net"

// SecurityHeaders wraps another http.Handler and sets several security HTTP
// headers before delegating to it. Images are limited to the two cover CDNs
// of the providers. When served over HTTPS the function also enables Strict
// Transport Security.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", contentSecurityPolicy)
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "same-origin")
		if r.TLS != nil {
			w.Header().Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// LogRequests logs method, path, status and duration of every request.
func LogRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		}).Info("request")
	})
}
