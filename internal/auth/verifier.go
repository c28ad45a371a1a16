package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/straywatch/straywatch-api/internal/identity"
)

var (
	// ErrMissingToken means no bearer token was sent.
	ErrMissingToken = errors.New("auth: missing bearer token")
	// ErrInvalidToken means the identity provider rejected the token.
	ErrInvalidToken = errors.New("auth: invalid or expired token")
	// ErrProviderUnavailable means the identity provider could not be asked.
	ErrProviderUnavailable = errors.New("auth: identity provider unavailable")
)

// User is the verified caller.
type User struct {
	ID      string           `json:"id"`
	Email   string           `json:"email"`
	Profile identity.Profile `json:"-"`
}

// MarshalJSON exposes the optional profile fields as nullable strings.
func (u User) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID     string  `json:"id"`
		Email  string  `json:"email"`
		Name   *string `json:"name"`
		Origin *string `json:"from"`
	}{u.ID, u.Email, u.Profile.Name.Ptr(), u.Profile.Origin.Ptr()})
}

// Verifier validates a bearer token with the identity provider.
type Verifier interface {
	Verify(ctx context.Context, token string) (User, error)
}

// userMetadata is the profile block the identity provider attaches to a user.
// Only these fields are read.
type userMetadata struct {
	Name *string `json:"name"`
	From *string `json:"from"`
}

func (m userMetadata) profile() identity.Profile {
	return identity.Profile{Name: identity.FromPtr(m.Name), Origin: identity.FromPtr(m.From)}
}

type providerClaims struct {
	Email        string       `json:"email"`
	UserMetadata userMetadata `json:"user_metadata"`
	jwt.RegisteredClaims
}

// JWTVerifier checks HMAC-signed access tokens issued by the identity provider.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier returns a verifier for tokens signed with secret.
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(_ context.Context, token string) (User, error) {
	if token == "" {
		return User{}, ErrMissingToken
	}

	var claims providerClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return User{}, fmt.Errorf("%w: no subject", ErrInvalidToken)
	}

	return User{ID: claims.Subject, Email: claims.Email, Profile: claims.UserMetadata.profile()}, nil
}

// RemoteVerifier asks the identity provider who owns the token.
type RemoteVerifier struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewRemoteVerifier calls GET {baseURL}/auth/v1/user for every verification.
func NewRemoteVerifier(baseURL, apiKey string, timeout time.Duration) *RemoteVerifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RemoteVerifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type remoteUser struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	UserMetadata userMetadata `json:"user_metadata"`
}

func (v *RemoteVerifier) Verify(ctx context.Context, token string) (User, error) {
	if token == "" {
		return User{}, ErrMissingToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if v.apiKey != "" {
		req.Header.Set("apikey", v.apiKey)
	}

	resp, err := v.http.Do(req)
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return User{}, ErrInvalidToken
	case resp.StatusCode != http.StatusOK:
		return User{}, fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var u remoteUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return User{}, fmt.Errorf("%w: decode user: %v", ErrProviderUnavailable, err)
	}
	if u.ID == "" {
		return User{}, ErrInvalidToken
	}
	return User{ID: u.ID, Email: u.Email, Profile: u.UserMetadata.profile()}, nil
}
