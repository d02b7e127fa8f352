// Package token carries bearer tokens between the jobstash client and server.
package token

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/grpc/metadata"
)

const header = "authorization"

var (
	ErrMissing = errors.New("token: missing authorization")
	ErrInvalid = errors.New("token: invalid token")
)

// Tokens attaches a bearer token to every RPC.
type Tokens struct {
	src oauth2.TokenSource
}

// NewStatic returns credentials that always send token.
func NewStatic(token string) *Tokens {
	return New(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
}

// New returns credentials backed by src. Tokens are cached until they expire.
func New(src oauth2.TokenSource) *Tokens {
	return &Tokens{src: oauth2.ReuseTokenSource(nil, src)}
}

func (t *Tokens) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	tok, err := t.src.Token()
	if err != nil {
		return nil, err
	}
	return map[string]string{header: tok.Type() + " " + tok.AccessToken}, nil
}

// RequireTransportSecurity is false: jobstash serves plain gRPC on a
// trusted network.
func (t *Tokens) RequireTransportSecurity() bool {
	return false
}

// Check validates the bearer token found in the incoming metadata of ctx.
// An empty want accepts every call.
func Check(ctx context.Context, want string) error {
	if want == "" {
		return nil
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ErrMissing
	}
	// The keys within metadata.MD are normalized to lowercase.
	values := md[header]
	if len(values) == 0 {
		return ErrMissing
	}
	got, ok := strings.CutPrefix(values[0], "Bearer ")
	if !ok {
		return ErrInvalid
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
		return ErrInvalid
	}
	return nil
}
