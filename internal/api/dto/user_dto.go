package dto

import "time"

// UserDTO 用户公开信息
type UserDTO struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	AvatarURL string     `json:"avatarUrl"`
	Bio       string     `json:"bio"`
	Online    bool       `json:"online"`
	LastSeen  *time.Time `json:"lastSeen"`
}

// RegisterDTO 注册
type RegisterDTO struct {
	Name     string `json:"name" binding:"required" validate:"min=1,max=50"`
	Username string `json:"username" binding:"required" validate:"min=3,max=30,alphanumunicode"`
	Email    string `json:"email" binding:"required" validate:"email,max=255"`
	Password string `json:"password" binding:"required" validate:"min=6,max=64"`
}

// CredentialDTO 登录凭证
type CredentialDTO struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthDTO 登录与注册的返回
type AuthDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Token    string `json:"token"`
}

// UpdateProfileDTO 修改资料，nil 字段保持不变
type UpdateProfileDTO struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,min=1,max=50"`
	Username *string `json:"username,omitempty" validate:"omitempty,min=3,max=30,alphanumunicode"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Bio      *string `json:"bio,omitempty" validate:"omitempty,max=255"`
}

// ChangePasswordDTO 修改密码
type ChangePasswordDTO struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required" validate:"min=6,max=64"`
}

// SearchUserDTO 搜索用户
type SearchUserDTO struct {
	Query string `form:"query" binding:"required"`
	Limit int    `form:"limit"`
}
