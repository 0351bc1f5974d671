package handler

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"net/http"

	"github.com/go-faster/errors"

	"github.com/xenking/ticket-dispatch/pkg/httpmiddleware"
)

// HeaderAPIKey carries the print API key.
const HeaderAPIKey = "X-Api-Key"

// errUnauthorized is the only detail a rejected caller sees.
var errUnauthorized = errors.New("unauthorized")

// APIKeyAuth rejects requests whose X-Api-Key does not match key. Keys are
// compared as HMACs under a per-process pepper.
func APIKeyAuth(key string) httpmiddleware.Middleware {
	pepper := make([]byte, 32)
	_, _ = rand.Read(pepper)
	want := digest(pepper, key)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := digest(pepper, r.Header.Get(HeaderAPIKey))
			if !hmac.Equal(got, want) {
				writeError(w, http.StatusUnauthorized, errUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func digest(pepper []byte, key string) []byte {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return mac.Sum(nil)
}
