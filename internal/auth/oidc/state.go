package oidc

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/hkdf"
)

var (
	ErrInvalidState = errors.New("invalid login state")
	ErrStateExpired = errors.New("login state expired")
)

// StateTTL bounds how long a user may spend at the provider.
const StateTTL = 10 * time.Minute

// State is the round-trip data of one login attempt. It travels sealed in a
// cookie; the State value is also sent to the provider and must come back
// unchanged.
type State struct {
	Value    string    `json:"s"`
	Nonce    string    `json:"n"`
	Redirect string    `json:"r,omitempty"`
	Expires  time.Time `json:"e"`
}

// NewState creates a login attempt that returns the user to redirect.
func NewState(redirect string, now time.Time) (State, error) {
	value, err := randomToken()
	if err != nil {
		return State{}, err
	}
	nonce, err := randomToken()
	if err != nil {
		return State{}, err
	}
	return State{Value: value, Nonce: nonce, Redirect: redirect, Expires: now.Add(StateTTL)}, nil
}

func randomToken() (string, error) {
	b := make([]byte, 24)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Sealer encrypts State with AES-256-GCM under a key derived from an
// application secret.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives the cookie key from secret with HKDF-SHA256.
func NewSealer(secret []byte) (*Sealer, error) {
	if len(secret) == 0 {
		return nil, errors.New("state secret required")
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte("tripplanner oidc state")), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return &Sealer{aead: gcm}, nil
}

// Seal returns st as a URL-safe string (nonce + ciphertext).
func (s *Sealer) Seal(st State) (string, error) {
	plaintext, err := json.Marshal(st)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(s.aead.Seal(nonce, nonce, plaintext, nil)), nil
}

// Open reverses Seal and checks that the attempt has not expired and that
// returned matches the state value the provider echoed back.
func (s *Sealer) Open(sealed, returned string, now time.Time) (State, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil || len(raw) < s.aead.NonceSize() {
		return State{}, ErrInvalidState
	}
	nonce, data := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	plaintext, err := s.aead.Open(nil, nonce, data, nil)
	if err != nil {
		return State{}, ErrInvalidState
	}
	var st State
	if err := json.Unmarshal(plaintext, &st); err != nil {
		return State{}, ErrInvalidState
	}
	if now.After(st.Expires) {
		return State{}, ErrStateExpired
	}
	if returned == "" || returned != st.Value {
		return State{}, ErrInvalidState
	}
	return st, nil
}
