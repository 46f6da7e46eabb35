package jwt

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	HeaderType      = "JWT"
	HeaderAlgorithm = "HS256"
)

// Header is the JOSE header. Only HS256 tokens are issued or accepted.
type Header struct {
	Type      string `json:"typ"`
	Algorithm string `json:"alg"`
}

// StandardClaims holds the registered claims. Zero time values are unset.
type StandardClaims struct {
	ID        string `json:"jti,omitempty"`
	Subject   string `json:"sub,omitempty"`
	Issuer    string `json:"iss,omitempty"`
	Audience  string `json:"aud,omitempty"`
	ExpiresAt int64  `json:"exp,omitempty"`
	NotBefore int64  `json:"nbf,omitempty"`
	IssuedAt  int64  `json:"iat,omitempty"`
}

func (c StandardClaims) Valid() error { return c.ValidAt(time.Now()) }

func (c StandardClaims) ValidAt(now time.Time) error {
	ts := now.Unix()
	switch {
	case c.ExpiresAt > 0 && ts > c.ExpiresAt:
		return ErrExpiredToken
	case c.NotBefore > 0 && ts < c.NotBefore:
		return ErrInvalidToken
	}
	return nil
}

// Claims identifies a connected user. Role and Department decide which
// real-time rooms the connection joins and which API routes it may call.
type Claims struct {
	StandardClaims
	UserID     string `json:"uid"`
	Role       string `json:"role,omitempty"`
	Department string `json:"dept,omitempty"`
}

func (c Claims) Valid() error { return c.ValidAt(time.Now()) }

func (c Claims) ValidAt(now time.Time) error {
	if err := c.StandardClaims.ValidAt(now); err != nil {
		return err
	}
	if c.UserID == "" {
		return ErrInvalidClaims
	}
	return nil
}

// Service signs and verifies HS256 tokens with a shared secret.
type Service struct {
	key    []byte
	issuer string
	now    func() time.Time
}

type Option func(*Service)

// WithIssuer stamps issued tokens with iss and rejects tokens from other issuers.
func WithIssuer(iss string) Option {
	return func(s *Service) { s.issuer = iss }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(key []byte, opts ...Option) (*Service, error) {
	if len(key) == 0 {
		return nil, ErrMissingSigningKey
	}
	s := &Service{key: bytes.Clone(key), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func NewFromString(key string, opts ...Option) (*Service, error) {
	return New([]byte(key), opts...)
}

// Generate signs any JSON-serializable claims value.
func (s *Service) Generate(claims any) (string, error) {
	if claims == nil {
		return "", ErrMissingClaims
	}
	header, err := json.Marshal(Header{Type: HeaderType, Algorithm: HeaderAlgorithm})
	if err != nil {
		return "", fmt.Errorf("encode header: %w", err)
	}
	body, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("encode claims: %w", err)
	}
	signed := encode(header) + "." + encode(body)
	return signed + "." + encode(s.mac(signed)), nil
}

// Parse verifies the signature and algorithm, decodes the payload into
// claims and runs its ValidAt or Valid method when present.
func (s *Service) Parse(token string, claims any) error {
	head, rest, ok := strings.Cut(token, ".")
	if !ok {
		return ErrInvalidToken
	}
	body, sig, ok := strings.Cut(rest, ".")
	if !ok || strings.Contains(sig, ".") {
		return ErrInvalidToken
	}

	got, err := decode(sig)
	if err != nil || !hmac.Equal(got, s.mac(head+"."+body)) {
		return ErrInvalidSignature
	}

	var h Header
	if err := decodeJSON(head, &h); err != nil {
		return fmt.Errorf("%w: header: %w", ErrInvalidToken, err)
	}
	if h.Algorithm != HeaderAlgorithm {
		return ErrUnexpectedSigningMethod
	}
	if err := decodeJSON(body, claims); err != nil {
		return fmt.Errorf("%w: claims: %w", ErrInvalidToken, err)
	}

	switch v := claims.(type) {
	case interface{ ValidAt(time.Time) error }:
		return v.ValidAt(s.now())
	case interface{ Valid() error }:
		return v.Valid()
	}
	return nil
}

// Issue signs a token for a user that expires after ttl. A zero ttl issues a
// token without expiry.
func (s *Service) Issue(userID, role, department string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", ErrInvalidClaims
	}
	now := s.now()
	c := Claims{
		StandardClaims: StandardClaims{Subject: userID, Issuer: s.issuer, IssuedAt: now.Unix()},
		UserID:         userID,
		Role:           role,
		Department:     department,
	}
	if ttl > 0 {
		c.ExpiresAt = now.Add(ttl).Unix()
	}
	return s.Generate(c)
}

// Verify parses a token into Claims.
func (s *Service) Verify(token string) (Claims, error) {
	var c Claims
	if err := s.Parse(token, &c); err != nil {
		return Claims{}, err
	}
	if s.issuer != "" && c.Issuer != s.issuer {
		return Claims{}, ErrInvalidClaims
	}
	return c, nil
}

func (s *Service) mac(signed string) []byte {
	h := hmac.New(sha256.New, s.key)
	h.Write([]byte(signed))
	return h.Sum(nil)
}

func encode(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }

func decode(s string) ([]byte, error) { return base64.RawURLEncoding.DecodeString(s) }

func decodeJSON(segment string, v any) error {
	raw, err := decode(segment)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
