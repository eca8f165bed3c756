package security

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt 只处理前 72 字节，校验规则按字符数计，多字节密码可能超出
const maxPasswordBytes = 72

var (
	ErrPasswordMismatch = errors.New("invalid credentials")
	ErrEmptyPassword    = errors.New("password cannot be empty")
	ErrPasswordTooLong  = fmt.Errorf("password exceeds %d bytes", maxPasswordBytes)
)

// HashPassword 注册与修改密码时生成存入 users.password 的 bcrypt 哈希
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if len(password) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// CheckPasswordHash 登录与修改密码前核对明文，不匹配时返回 ErrPasswordMismatch
// 存储的哈希损坏时返回 bcrypt 的原始错误
func CheckPasswordHash(password, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	return err
}
