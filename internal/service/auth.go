package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidToken    = errors.New("invalid token")
	ErrExpiredToken    = errors.New("expired token")
	ErrInvalidCreds    = errors.New("invalid credentials")
	ErrWeakPassword    = errors.New("password does not meet requirements")
	ErrInvalidUsername = errors.New("invalid username")
	ErrNoCredentials   = errors.New("no password or password hash configured")
)

const TokenLifetime = 7 * 24 * time.Hour

func validateUsername(username string) error {
	if len(username) < 3 {
		return fmt.Errorf("must be at least 3 characters")
	}
	if len(username) > 50 {
		return fmt.Errorf("must be at most 50 characters")
	}
	for _, r := range username {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-' {
			return fmt.Errorf("must contain only letters, numbers, underscores, and hyphens")
		}
	}
	return nil
}

func validatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("%w: must be at least 8 characters", ErrWeakPassword)
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	var missing []string
	if !hasUpper {
		missing = append(missing, "uppercase letter")
	}
	if !hasLower {
		missing = append(missing, "lowercase letter")
	}
	if !hasNumber {
		missing = append(missing, "number")
	}
	if !hasSpecial {
		missing = append(missing, "special character")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: must contain at least one %s", ErrWeakPassword, formatMissingRequirements(missing))
	}

	return nil
}

func formatMissingRequirements(missing []string) string {
	switch len(missing) {
	case 1:
		return missing[0]
	case 2:
		return missing[0] + " and " + missing[1]
	}
	return strings.Join(missing[:len(missing)-1], ", ") + ", and " + missing[len(missing)-1]
}

// AuthService guards the API with a single operator account. Tokens are
// "<unix>:<username>:<hmac>" and expire after TokenLifetime.
type AuthService struct {
	username     string
	passwordHash []byte
	secretKey    []byte
	now          func() time.Time
}

// NewAuthService accepts either a bcrypt hash or a plaintext password. A
// plaintext password must pass the strength rules and is hashed once here.
func NewAuthService(username, password, passwordHash, secretKey string) (*AuthService, error) {
	if err := validateUsername(username); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidUsername, err)
	}
	if secretKey == "" {
		return nil, errors.New("secret key is required")
	}

	var hash []byte
	switch {
	case passwordHash != "":
		if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
			return nil, fmt.Errorf("parse password hash: %w", err)
		}
		hash = []byte(passwordHash)
	case password != "":
		if err := validatePasswordStrength(password); err != nil {
			return nil, err
		}
		h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		hash = h
	default:
		return nil, ErrNoCredentials
	}

	return &AuthService{
		username:     username,
		passwordHash: hash,
		secretKey:    []byte(secretKey),
		now:          time.Now,
	}, nil
}

func (s *AuthService) Username() string {
	return s.username
}

func (s *AuthService) ValidatePassword(username, password string) error {
	if !hmac.Equal([]byte(username), []byte(s.username)) {
		// Keep timing similar for unknown users.
		_ = bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password))
		return ErrInvalidCreds
	}
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)); err != nil {
		return ErrInvalidCreds
	}
	return nil
}

func (s *AuthService) GenerateToken(username string) (string, error) {
	if username != s.username {
		return "", ErrInvalidCreds
	}
	timestamp := strconv.FormatInt(s.now().Unix(), 10)
	return timestamp + ":" + username + ":" + s.sign(timestamp, username), nil
}

// ValidateToken returns the username the token was issued to.
func (s *AuthService) ValidateToken(token string) (string, error) {
	parts := strings.Split(token, ":")
	if len(parts) != 3 {
		return "", ErrInvalidToken
	}
	timestamp, username, signature := parts[0], parts[1], parts[2]

	if !hmac.Equal([]byte(signature), []byte(s.sign(timestamp, username))) {
		return "", ErrInvalidToken
	}
	if username != s.username {
		return "", ErrInvalidToken
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return "", ErrInvalidToken
	}
	if s.now().After(time.Unix(ts, 0).Add(TokenLifetime)) {
		return "", ErrExpiredToken
	}
	return username, nil
}

func (s *AuthService) sign(timestamp, username string) string {
	mac := hmac.New(sha256.New, s.secretKey)
	mac.Write([]byte(timestamp + ":" + username))
	return base64.URLEncoding.EncodeToString(mac.Sum(nil))
}
