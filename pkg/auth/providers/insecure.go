package providers

import (
	"context"
	"fmt"
	"strings"
)

var _ AuthProvider = &InsecureAuthProvider{}

// InsecureAuthProvider treats the presented token as the user ID without
// any verification. It exists so a server can be run locally without a
// Firebase project and must never be used in production.
type InsecureAuthProvider struct{}

func NewInsecureAuthProvider() *InsecureAuthProvider {
	return &InsecureAuthProvider{}
}

func (p *InsecureAuthProvider) VerifyToken(_ context.Context, idToken string) (*TokenClaims, error) {
	uid := strings.TrimSpace(idToken)
	if uid == "" {
		return nil, fmt.Errorf("empty token")
	}

	return &TokenClaims{
		UID: uid,
	}, nil
}
