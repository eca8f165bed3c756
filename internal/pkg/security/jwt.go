package security

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidCredential 令牌缺失、格式错误、签名不符、过期或已注销
var ErrInvalidCredential = errors.New("invalid credential")

// RevocationStore 已注销令牌存储
type RevocationStore interface {
	Revoke(ctx context.Context, signature string, ttl time.Duration) error
	IsRevoked(ctx context.Context, signature string) (bool, error)
}

// Verifier 签发与校验 HS256 令牌，无副作用
type Verifier struct {
	secret     []byte
	issuer     string
	expiration time.Duration
	revoked    RevocationStore
	now        func() time.Time
}

// NewVerifier revoked 可为 nil，此时不检查注销状态
func NewVerifier(secret, issuer string, expiration time.Duration, revoked RevocationStore) *Verifier {
	return &Verifier{
		secret:     []byte(secret),
		issuer:     issuer,
		expiration: expiration,
		revoked:    revoked,
		now:        time.Now,
	}
}

// Issue 生成一个新的 JWT Token
func (v *Verifier) Issue(userID, email string) (string, error) {
	now := v.now()
	claims := &UserClaims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(v.expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    v.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return tokenString, nil
}

// Verify 校验 Token 字符串并返回身份，所有失败均为 ErrInvalidCredential
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, ErrInvalidCredential
	}

	claims := &UserClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil || !token.Valid {
		log.DebugContext(ctx, "token rejected", "err", err)
		return nil, ErrInvalidCredential
	}
	if claims.UserID == "" {
		return nil, ErrInvalidCredential
	}

	signature, err := ExtractSignature(tokenString)
	if err != nil {
		return nil, ErrInvalidCredential
	}

	if v.revoked != nil {
		revoked, err := v.revoked.IsRevoked(ctx, signature)
		if err != nil {
			log.ErrorContext(ctx, "check token revocation failed", "err", err)
			return nil, ErrInvalidCredential
		}
		if revoked {
			return nil, ErrInvalidCredential
		}
	}

	return &Identity{
		UserID:    claims.UserID,
		Email:     claims.Email,
		Signature: signature,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Revoke 注销令牌直至其自然过期
func (v *Verifier) Revoke(ctx context.Context, identity *Identity) error {
	if v.revoked == nil || identity == nil {
		return nil
	}
	return v.revoked.Revoke(ctx, identity.Signature, identity.ExpiresAt.Sub(v.now()))
}

// ParseBearer 解析 Authorization 头，格式必须为 "Bearer <token>"
func ParseBearer(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}

// ExtractSignature 从 Token 字符串中提取签名
func ExtractSignature(tokenString string) (string, error) {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 || parts[2] == "" {
		return "", errors.New("malformed token")
	}
	return parts[2], nil
}
