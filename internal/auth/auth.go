// Package auth resolves bearer API keys to clients.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

// Client is the identity behind an API key. ID never contains the key.
type Client struct {
	ID string
}

// Anonymous is the client used when no keys are configured.
var Anonymous = Client{ID: "anonymous"}

// Auth holds the configured API keys.
type Auth struct {
	digests [][sha256.Size]byte
	clients []Client
}

// New builds an Auth from the configured keys. An empty list leaves the
// service open.
func New(keys []string) (*Auth, error) {
	a := &Auth{}
	seen := make(map[[sha256.Size]byte]struct{}, len(keys))
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		d := sha256.Sum256([]byte(key))
		if _, dup := seen[d]; dup {
			return nil, fmt.Errorf("api key %s listed twice", fingerprint(d))
		}
		seen[d] = struct{}{}
		a.digests = append(a.digests, d)
		a.clients = append(a.clients, Client{ID: "key-" + fingerprint(d)})
	}
	return a, nil
}

// Open reports whether requests pass without a key.
func (a *Auth) Open() bool {
	return a == nil || len(a.digests) == 0
}

// Lookup returns the client for an API key. Every configured key is compared
// so timing does not reveal which one matched.
func (a *Auth) Lookup(apiKey string) (Client, bool) {
	if a.Open() {
		return Anonymous, true
	}
	if apiKey == "" {
		return Client{}, false
	}
	d := sha256.Sum256([]byte(apiKey))
	match := -1
	for i, want := range a.digests {
		if subtle.ConstantTimeCompare(d[:], want[:]) == 1 {
			match = i
		}
	}
	if match < 0 {
		return Client{}, false
	}
	return a.clients[match], true
}

// Authorize checks an Authorization header value.
func (a *Auth) Authorize(header string) (Client, bool) {
	if a.Open() {
		return Anonymous, true
	}
	token, ok := ParseBearerToken(header)
	if !ok {
		return Client{}, false
	}
	return a.Lookup(token)
}

// ParseBearerToken extracts the token from "Bearer <token>".
func ParseBearerToken(h string) (string, bool) {
	parts := strings.Fields(h)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

func fingerprint(d [sha256.Size]byte) string {
	return hex.EncodeToString(d[:4])
}
