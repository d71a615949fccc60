package authclient

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// GoogleProfile is the subset of a Google ID token the backend needs.
type GoogleProfile struct {
	Email   string
	Name    string
	Subject string
	Picture string
}

func (p GoogleProfile) request() googleRequest {
	return googleRequest{
		Email:    p.Email,
		Name:     p.Name,
		GoogleID: p.Subject,
		Picture:  p.Picture,
	}
}

// DecodeGoogleCredential reads the profile claims of a Google Sign-In
// credential. The signature is not checked here; the backend owns that
// decision.
func DecodeGoogleCredential(credential string) (GoogleProfile, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(credential, claims); err != nil {
		return GoogleProfile{}, fmt.Errorf("parse google credential: %w", err)
	}

	str := func(key string) string {
		v, _ := claims[key].(string)
		return v
	}

	profile := GoogleProfile{
		Email:   str("email"),
		Name:    str("name"),
		Subject: str("sub"),
		Picture: str("picture"),
	}
	if profile.Email == "" || profile.Subject == "" {
		return GoogleProfile{}, errors.New("google credential lacks email or sub")
	}
	return profile, nil
}
