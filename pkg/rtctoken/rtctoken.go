// Package rtctoken issues short-lived access tokens for the real-time media
// server. A token scopes one identity to one room with explicit publish and
// subscribe grants; the media server validates it with the shared API secret.
package rtctoken

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotConfigured is returned when the issuer is missing its API credentials
var ErrNotConfigured = errors.New("rtctoken: api key or secret not configured")

// VideoGrant describes what the token holder may do inside a room
type VideoGrant struct {
	Room            string `json:"room"`
	RoomJoin        bool   `json:"roomJoin"`
	CanSubscribe    bool   `json:"canSubscribe"`
	CanPublishAudio bool   `json:"canPublishAudio"`
	CanPublishVideo bool   `json:"canPublishVideo"`
}

// Claims is the JWT payload understood by the media server
type Claims struct {
	Name  string     `json:"name"`
	Video VideoGrant `json:"video"`
	jwt.RegisteredClaims
}

// Request describes a token issuance request
type Request struct {
	RoomID   string
	UserID   string
	UserName string
	Audio    bool
	Video    bool
}

// Issuer signs room access tokens
type Issuer struct {
	apiKey    string
	apiSecret string
	ttl       time.Duration
}

// NewIssuer creates a token issuer. Key and secret may be empty; Issue then
// fails with ErrNotConfigured so callers can surface a configuration error
// instead of handing out unsigned tokens.
func NewIssuer(apiKey, apiSecret string, ttl time.Duration) *Issuer {
	return &Issuer{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		ttl:       ttl,
	}
}

// Issue creates a bearer credential scoped to (room, identity) with the
// requested publish grants
func (i *Issuer) Issue(req *Request) (string, error) {
	if i.apiKey == "" || i.apiSecret == "" {
		return "", ErrNotConfigured
	}
	if req.RoomID == "" {
		return "", fmt.Errorf("rtctoken: room id is empty")
	}
	if req.UserID == "" {
		return "", fmt.Errorf("rtctoken: user id is empty")
	}

	now := time.Now()
	claims := &Claims{
		Name: req.UserName,
		Video: VideoGrant{
			Room:            req.RoomID,
			RoomJoin:        true,
			CanSubscribe:    true,
			CanPublishAudio: req.Audio,
			CanPublishVideo: req.Video,
		},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.apiKey,
			Subject:   req.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(i.apiSecret))
	if err != nil {
		return "", fmt.Errorf("rtctoken: failed to sign token: %w", err)
	}

	return signed, nil
}

// Parse validates a token and returns its claims. Used by tests and by the
// debug tooling that inspects issued grants.
func (i *Issuer) Parse(tokenString string) (*Claims, error) {
	if i.apiSecret == "" {
		return nil, ErrNotConfigured
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(i.apiSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("rtctoken: failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("rtctoken: invalid token")
	}

	return claims, nil
}
