package middleware

import (
	"net/http"
	"strings"
)

// SkipCompressionForStreams wraps a compression middleware handler to
// bypass it on media delivery endpoints. Transcoded video is already
// compressed and the gzip writer buffers output, which would stall the
// player waiting for segment bytes.
func SkipCompressionForStreams(compressionHandler func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		compressedHandler := compressionHandler(next)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isStreamPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			compressedHandler.ServeHTTP(w, r)
		})
	}
}

// isStreamPath reports whether the path belongs to a byte-streaming
// delivery endpoint rather than the JSON API.
func isStreamPath(path string) bool {
	return strings.Contains(path, "/stream/") || strings.Contains(path, "/hls/")
}
