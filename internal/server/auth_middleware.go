package server

import (
	"net/http"
	"strings"
)

// Authenticator admits or rejects a websocket upgrade and names the user.
type Authenticator interface {
	Authenticate(r *http.Request) (userID string, err error)
}

// TokenAuth checks a shared token passed as ?token= or a bearer header.
// An empty Token admits everyone.
type TokenAuth struct {
	Token string
}

func (a TokenAuth) Authenticate(r *http.Request) (string, error) {
	if a.Token == "" {
		return "anonymous", nil
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if token != a.Token {
		return "", ErrUnauthorized
	}
	return "user_" + r.RemoteAddr, nil
}
