package encoder

import (
	"errors"
	"net/http"
)

// ErrMissingKey is returned when a callback carries no usable correlation key.
var ErrMissingKey = errors.New("callback has no correlation key")

// CallbackAuthenticator extracts the correlation key from an incoming
// provider callback and decides whether the request is trustworthy. The
// default trusts the unguessable key alone; providers that sign their
// callbacks can be supported with another implementation without touching
// the state machine.
type CallbackAuthenticator interface {
	Authenticate(r *http.Request) (string, error)
}

// KeyParamAuthenticator reads the key from the `key` query parameter, the
// way the provider is told to deliver it.
type KeyParamAuthenticator struct{}

func (KeyParamAuthenticator) Authenticate(r *http.Request) (string, error) {
	key := r.URL.Query().Get("key")
	if key == "" {
		return "", ErrMissingKey
	}

	return key, nil
}
