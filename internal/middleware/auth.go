package middleware

import (
	"crypto/subtle"
	"net/http"

	"go.uber.org/zap"

	"github.com/quickshare/service/internal/logging"
	"github.com/quickshare/service/internal/response"
)

// DefaultRealm is the realm announced in the basic-auth challenge.
const DefaultRealm = "Secure Area"

// BasicAuth returns middleware that only lets requests through when they carry
// HTTP basic credentials equal to username and password. Each request is
// checked on its own; there is no session.
func BasicAuth(username, password, realm string) func(http.Handler) http.Handler {
	if realm == "" {
		realm = DefaultRealm
	}
	wantUser := []byte(username)
	wantPass := []byte(password)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok {
				response.Unauthorized(w, realm)
				return
			}

			// Compare both fields every time so timing does not reveal which one was wrong.
			userOK := subtle.ConstantTimeCompare([]byte(user), wantUser) == 1
			passOK := subtle.ConstantTimeCompare([]byte(pass), wantPass) == 1
			if !userOK || !passOK {
				// The submitted username is not logged: it is sometimes a mistyped password.
				logging.FromContext(r.Context(), nil).Info("basic auth rejected",
					zap.String("path", r.URL.Path),
				)
				response.Unauthorized(w, realm)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
