package model

import (
	"time"
)

type User struct {
	ID        string     `gorm:"primaryKey;type:char(36)"`
	Name      string     `gorm:"type:varchar(100);not null;default:''"`
	Username  string     `gorm:"type:varchar(50);not null;uniqueIndex:idx_username"`
	Email     string     `gorm:"type:varchar(255);not null;uniqueIndex:idx_email"`
	Password  string     `gorm:"type:varchar(255);not null"`
	AvatarURL string     `gorm:"type:varchar(512);not null;default:''"`
	AvatarKey string     `gorm:"type:varchar(255);not null;default:''"` // MinIO 对象名
	Bio       string     `gorm:"type:varchar(255);not null;default:''"`
	Online    bool       `gorm:"not null;default:false;index:idx_online"`
	LastSeen  *time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (User) TableName() string {
	return "users"
}
