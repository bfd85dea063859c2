package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	"github.com/Strob0t/foodshare/internal/port/cache"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	maxIdempotencyBody   = 1 << 20 // 1 MB
)

// idempotencyEntry stores a cached HTTP response.
type idempotencyEntry struct {
	StatusCode int                 `json:"status_code"`
	Headers    map[string][]string `json:"headers"`
	Body       []byte              `json:"body"`
}

// Idempotency returns middleware that replays the stored response for a
// repeated POST/PUT/PATCH/DELETE carrying the same Idempotency-Key. Keys are
// scoped to the caller so two users cannot collide. Server errors are not
// stored so a retry can succeed.
func Idempotency(store cache.Cache, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			raw := r.Header.Get(headerIdempotencyKey)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			key := idempotencyKey(r, raw)

			cached, ok, err := cache.GetJSON[idempotencyEntry](r.Context(), store, key)
			switch {
			case err != nil:
				slog.WarnContext(r.Context(), "idempotency: lookup failed", "error", err)
			case ok:
				for k, vals := range cached.Headers {
					for _, v := range vals {
						w.Header().Add(k, v)
					}
				}
				w.Header().Set("Idempotent-Replayed", "true")
				w.WriteHeader(cached.StatusCode)
				_, _ = w.Write(cached.Body)
				return
			}

			rec := &responseRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
				body:           &bytes.Buffer{},
			}
			next.ServeHTTP(rec, r)

			if rec.statusCode >= http.StatusInternalServerError || rec.body.Len() > maxIdempotencyBody {
				return
			}
			entry := idempotencyEntry{
				StatusCode: rec.statusCode,
				Headers:    w.Header().Clone(),
				Body:       rec.body.Bytes(),
			}
			if err := cache.SetJSON(r.Context(), store, key, entry, ttl); err != nil {
				slog.WarnContext(r.Context(), "idempotency: failed to store response", "error", err)
			}
		})
	}
}

// idempotencyKey hashes the caller, route and client key into a fixed
// length store key.
func idempotencyKey(r *http.Request, raw string) string {
	user := ""
	if id, ok := IdentityFromContext(r.Context()); ok {
		user = id.UserID
	}
	sum := sha256.Sum256([]byte(user + "\x00" + r.Method + " " + r.URL.Path + "\x00" + raw))
	return "idem:" + hex.EncodeToString(sum[:])
}

// responseRecorder wraps http.ResponseWriter to capture the response.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
