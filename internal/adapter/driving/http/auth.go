package httphandler

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/ericfisherdev/leadinbox/internal/domain/model"
)

// TokenValidator turns a bearer session token into a principal.
type TokenValidator interface {
	Validate(token string) (model.Principal, error)
}

type principalKey struct{}

// withPrincipal returns ctx carrying p.
func withPrincipal(ctx context.Context, p model.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// principalFrom returns the authenticated principal of the request, or nil.
// The application guards turn a nil principal into ErrUnauthenticated.
func principalFrom(ctx context.Context) *model.Principal {
	p, ok := ctx.Value(principalKey{}).(model.Principal)
	if !ok {
		return nil
	}
	return &p
}

// bearerToken extracts the token of an "Authorization: Bearer" header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// authenticated attaches the session principal to the request. Requests
// without a token pass through anonymously; an invalid token is rejected.
func (h *Handler) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next(w, r)
			return
		}

		p, err := h.tokens.Validate(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired session")
			return
		}
		next(w, r.WithContext(withPrincipal(r.Context(), p)))
	}
}

// cronAuthorized reports whether the request carries the configured cron
// token. An empty configured token disables the cron endpoints.
func (h *Handler) cronAuthorized(r *http.Request) bool {
	if h.cronToken == "" {
		return false
	}
	token := bearerToken(r)
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.cronToken)) == 1
}
