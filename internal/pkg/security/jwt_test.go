package security

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type memoryRevocations struct {
	keys map[string]time.Duration
}

func (m *memoryRevocations) Revoke(_ context.Context, signature string, ttl time.Duration) error {
	m.keys[signature] = ttl
	return nil
}

func (m *memoryRevocations) IsRevoked(_ context.Context, signature string) (bool, error) {
	_, ok := m.keys[signature]
	return ok, nil
}

func TestVerifyValidToken(t *testing.T) {
	v := NewVerifier("secret", "chatapp", time.Hour, nil)
	token, err := v.Issue("alice-id", "alice@example.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	identity, err := v.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if identity.UserID != "alice-id" || identity.Email != "alice@example.com" {
		t.Fatalf("Verify() identity = %+v", identity)
	}
	if identity.Signature == "" {
		t.Fatalf("Verify() identity has empty signature")
	}
}

func TestVerifyRejectsInvalidTokens(t *testing.T) {
	v := NewVerifier("secret", "chatapp", time.Hour, nil)
	valid, err := v.Issue("alice-id", "alice@example.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	expiredIssuer := NewVerifier("secret", "chatapp", time.Hour, nil)
	expiredIssuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _ := expiredIssuer.Issue("alice-id", "alice@example.com")

	otherSecret, _ := NewVerifier("other", "chatapp", time.Hour, nil).Issue("alice-id", "a@x")
	otherIssuer, _ := NewVerifier("secret", "someone-else", time.Hour, nil).Issue("alice-id", "a@x")

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &UserClaims{
		UserID: "alice-id",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "chatapp",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("SignedString(none) error = %v", err)
	}

	hs512, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, &UserClaims{
		UserID: "alice-id",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "chatapp",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("secret"))

	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, &UserClaims{
		UserID:           "alice-id",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "chatapp"},
	}).SignedString([]byte("secret"))

	tampered := valid[:len(valid)-2] + "xx"
	if tampered == valid {
		tampered = valid[:len(valid)-2] + "yy"
	}

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-token"},
		{"expired", expired},
		{"tampered signature", tampered},
		{"wrong secret", otherSecret},
		{"wrong issuer", otherIssuer},
		{"alg none", unsigned},
		{"unexpected algorithm", hs512},
		{"missing expiry", noExpiry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity, err := v.Verify(context.Background(), tt.token)
			if !errors.Is(err, ErrInvalidCredential) {
				t.Fatalf("Verify() error = %v, want ErrInvalidCredential", err)
			}
			if identity != nil {
				t.Fatalf("Verify() identity = %+v, want nil", identity)
			}
		})
	}
}

func TestRevokedTokenIsRejected(t *testing.T) {
	store := &memoryRevocations{keys: map[string]time.Duration{}}
	v := NewVerifier("secret", "chatapp", time.Hour, store)

	token, _ := v.Issue("alice-id", "alice@example.com")
	identity, err := v.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if err := v.Revoke(context.Background(), identity); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if ttl := store.keys[identity.Signature]; ttl <= 0 || ttl > time.Hour {
		t.Fatalf("Revoke() ttl = %v, want within token lifetime", ttl)
	}

	if _, err := v.Verify(context.Background(), token); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("Verify() after revoke error = %v, want ErrInvalidCredential", err)
	}
}

func TestParseBearer(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"bearer abc", "abc", true},
		{"Bearer ", "", false},
		{"Basic abc", "", false},
		{"abc.def.ghi", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		token, ok := ParseBearer(tt.header)
		if token != tt.token || ok != tt.ok {
			t.Errorf("ParseBearer(%q) = (%q, %v), want (%q, %v)", tt.header, token, ok, tt.token, tt.ok)
		}
	}
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("s3cret!")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if err := CheckPasswordHash("s3cret!", hash); err != nil {
		t.Fatalf("CheckPasswordHash() error = %v", err)
	}
	if err := CheckPasswordHash("wrong", hash); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("CheckPasswordHash() error = %v, want ErrPasswordMismatch", err)
	}

	if _, err := HashPassword(""); !errors.Is(err, ErrEmptyPassword) {
		t.Errorf("HashPassword(empty) error = %v, want ErrEmptyPassword", err)
	}
	// 24 个三字节字符恰好 72 字节
	if _, err := HashPassword(strings.Repeat("密", 24)); err != nil {
		t.Errorf("HashPassword(72 bytes) error = %v", err)
	}
	if _, err := HashPassword(strings.Repeat("密", 25)); !errors.Is(err, ErrPasswordTooLong) {
		t.Errorf("HashPassword(75 bytes) error = %v, want ErrPasswordTooLong", err)
	}
}
