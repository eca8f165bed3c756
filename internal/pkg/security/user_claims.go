package security

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserClaims 定义了 Token 中需要包含的业务信息
type UserClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Identity 校验通过后的身份，绑定到连接后不可变
type Identity struct {
	UserID    string
	Email     string
	Signature string
	ExpiresAt time.Time
}
