package authcore

import (
	"context"
	"fmt"

	"google.golang.org/api/idtoken"
)

// idTokenVerifier validates Google identity tokens against Google's
// published keys via the idtoken package.
type idTokenVerifier struct {
	clientID string
}

// NewGoogleVerifier returns a GoogleVerifier that checks tokens against
// the given OAuth client ID.
func NewGoogleVerifier(clientID string) GoogleVerifier {
	return &idTokenVerifier{clientID: clientID}
}

func (v *idTokenVerifier) Verify(ctx context.Context, token string) (*GoogleClaims, error) {
	payload, err := idtoken.Validate(ctx, token, v.clientID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims := &GoogleClaims{Subject: payload.Subject}
	if email, ok := payload.Claims["email"].(string); ok {
		claims.Email = email
	}
	if given, ok := payload.Claims["given_name"].(string); ok {
		claims.GivenName = given
	}
	if family, ok := payload.Claims["family_name"].(string); ok {
		claims.FamilyName = family
	}

	return claims, nil
}
