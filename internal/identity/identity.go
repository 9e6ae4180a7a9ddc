// Package identity answers one question for a connection-open request:
// is the caller authenticated, and if so what display name do they use.
package identity

import "net/http"

// Provider is the external identity collaborator. Implementations
// return the caller's display name and whether the request carries a
// valid identity.
type Provider interface {
	Identify(r *http.Request) (username string, ok bool)
}

// HeaderProvider resolves the caller from a request header, falling
// back to a query parameter so browser WebSocket clients, which cannot
// set custom headers, can still authenticate.
type HeaderProvider struct {
	Header string
	Query  string
}

// NewHeaderProvider returns a provider reading X-Username with a
// "username" query fallback.
func NewHeaderProvider() *HeaderProvider {
	return &HeaderProvider{Header: "X-Username", Query: "username"}
}

func (p *HeaderProvider) Identify(r *http.Request) (string, bool) {
	if u := r.Header.Get(p.Header); u != "" {
		return u, true
	}
	if u := r.URL.Query().Get(p.Query); u != "" {
		return u, true
	}
	return "", false
}
