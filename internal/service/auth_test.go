package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-key"

func newTestAuth(t *testing.T) *AuthService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("P@ssw0rd123"), bcrypt.MinCost)
	require.NoError(t, err)
	svc, err := NewAuthService("admin", "", string(hash), testSecret)
	require.NoError(t, err)
	return svc
}

func signedToken(ts int64, username string) string {
	timestamp := strconv.FormatInt(ts, 10)
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(timestamp + ":" + username))
	return timestamp + ":" + username + ":" + base64.URLEncoding.EncodeToString(mac.Sum(nil))
}

func TestNewAuthService(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("whatever"), bcrypt.MinCost)

	tests := []struct {
		name     string
		username string
		password string
		hash     string
		secret   string
		wantErr  error
		errText  string
	}{
		{name: "hash", username: "admin", hash: string(hash), secret: testSecret},
		{name: "strong password", username: "admin", password: "P@ssw0rd123", secret: testSecret},
		{name: "weak password", username: "admin", password: "password", secret: testSecret, wantErr: ErrWeakPassword},
		{name: "short password", username: "admin", password: "Ab1!", secret: testSecret, wantErr: ErrWeakPassword},
		{name: "no credentials", username: "admin", secret: testSecret, wantErr: ErrNoCredentials},
		{name: "bad username", username: "a b", password: "P@ssw0rd123", secret: testSecret, wantErr: ErrInvalidUsername},
		{name: "bad hash", username: "admin", hash: "not-a-hash", secret: testSecret, errText: "parse password hash"},
		{name: "no secret", username: "admin", password: "P@ssw0rd123", errText: "secret key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewAuthService(tt.username, tt.password, tt.hash, tt.secret)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.errText != "":
				assert.ErrorContains(t, err, tt.errText)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.username, svc.Username())
			}
		})
	}
}

func TestValidatePasswordStrength_ListsMissing(t *testing.T) {
	err := validatePasswordStrength("abcdefgh")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "uppercase letter, number, and special character")

	err = validatePasswordStrength("abcdefgH1")
	assert.Contains(t, err.Error(), "at least one special character")
}

func TestAuthService_ValidatePassword(t *testing.T) {
	svc := newTestAuth(t)

	assert.NoError(t, svc.ValidatePassword("admin", "P@ssw0rd123"))
	assert.ErrorIs(t, svc.ValidatePassword("admin", "wrong"), ErrInvalidCreds)
	assert.ErrorIs(t, svc.ValidatePassword("root", "P@ssw0rd123"), ErrInvalidCreds)
}

func TestAuthService_GenerateToken(t *testing.T) {
	svc := newTestAuth(t)
	svc.now = func() time.Time { return time.Unix(1700000000, 0) }

	token, err := svc.GenerateToken("admin")
	require.NoError(t, err)
	parts := strings.Split(token, ":")
	require.Len(t, parts, 3)
	assert.Equal(t, "1700000000", parts[0])
	assert.Equal(t, "admin", parts[1])
	assert.Equal(t, signedToken(1700000000, "admin"), token)

	_, err = svc.GenerateToken("someone")
	assert.ErrorIs(t, err, ErrInvalidCreds)
}

func TestAuthService_ValidateToken(t *testing.T) {
	svc := newTestAuth(t)
	now := time.Now()
	svc.now = func() time.Time { return now }

	valid, err := svc.GenerateToken("admin")
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "valid", token: valid},
		{name: "within window", token: signedToken(now.Add(-6*24*time.Hour).Unix(), "admin")},
		{name: "expired", token: signedToken(now.Add(-8*24*time.Hour).Unix(), "admin"), wantErr: ErrExpiredToken},
		{name: "empty", token: "", wantErr: ErrInvalidToken},
		{name: "missing parts", token: "ts:sig", wantErr: ErrInvalidToken},
		{name: "extra parts", token: "a:b:c:d", wantErr: ErrInvalidToken},
		{name: "wrong signature", token: strconv.FormatInt(now.Unix(), 10) + ":admin:" + base64.URLEncoding.EncodeToString([]byte("wrong")), wantErr: ErrInvalidToken},
		{name: "other user", token: signedToken(now.Unix(), "mallory"), wantErr: ErrInvalidToken},
		{name: "bad timestamp", token: signedToken(0, "admin")[1:], wantErr: ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := svc.ValidateToken(tt.token)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, user)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "admin", user)
		})
	}
}

func TestAuthService_TokenFromOtherSecretRejected(t *testing.T) {
	svc := newTestAuth(t)
	other, err := NewAuthService("admin", "P@ssw0rd123", "", "another-secret")
	require.NoError(t, err)

	token, err := other.GenerateToken("admin")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
