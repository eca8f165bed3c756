package repository

import (
	"ChatApp/internal/model"
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

var ErrUserConflict = errors.New("username or email already exists")

type UserRepo interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserById(ctx context.Context, id string) (*model.User, error)
	GetUserByIds(ctx context.Context, ids []string) ([]*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)
	SearchUsers(ctx context.Context, query string, excludeID string, limit int) ([]*model.User, error)
	UpdateUserFields(ctx context.Context, id string, fields map[string]any) error
	UpdatePassword(ctx context.Context, id string, hash string) error
	UpdateAvatar(ctx context.Context, id string, url string, key string) error
	UpdatePresence(ctx context.Context, id string, online bool, lastSeen time.Time) error
	ListOnlineUserIDs(ctx context.Context) ([]string, error)
}

type userRepoImpl struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) UserRepo {
	return &userRepoImpl{db: db}
}

func (s *userRepoImpl) CreateUser(ctx context.Context, user *model.User) error {
	err := s.db.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrUserConflict
	}
	return err
}

// GetUserById 用户不存在时返回 nil, nil
func (s *userRepoImpl) GetUserById(ctx context.Context, id string) (*model.User, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *userRepoImpl) GetUserByIds(ctx context.Context, ids []string) ([]*model.User, error) {
	users := make([]*model.User, 0, len(ids))
	if len(ids) == 0 {
		return users, nil
	}
	err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error
	return users, err
}

func (s *userRepoImpl) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.first(ctx, "email = ?", email)
}

func (s *userRepoImpl) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.first(ctx, "username = ?", username)
}

func (s *userRepoImpl) ListUsers(ctx context.Context) ([]*model.User, error) {
	users := make([]*model.User, 0)
	err := s.db.WithContext(ctx).Order("username ASC").Find(&users).Error
	return users, err
}

// SearchUsers 按用户名或姓名模糊匹配，排除当前用户
func (s *userRepoImpl) SearchUsers(ctx context.Context, query string, excludeID string, limit int) ([]*model.User, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	users := make([]*model.User, 0)
	err := s.db.WithContext(ctx).
		Where("id <> ?", excludeID).
		Where("(LOWER(username) LIKE ? ESCAPE '!' OR LOWER(name) LIKE ? ESCAPE '!')", pattern, pattern).
		Order("username ASC").
		Limit(limit).
		Find(&users).Error
	return users, err
}

func (s *userRepoImpl) UpdateUserFields(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(fields).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrUserConflict
	}
	return err
}

func (s *userRepoImpl) UpdatePassword(ctx context.Context, id string, hash string) error {
	return s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Update("password", hash).Error
}

func (s *userRepoImpl) UpdateAvatar(ctx context.Context, id string, url string, key string) error {
	return s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).
		Updates(map[string]any{"avatar_url": url, "avatar_key": key}).Error
}

// UpdatePresence 只写 online 与 last_seen
func (s *userRepoImpl) UpdatePresence(ctx context.Context, id string, online bool, lastSeen time.Time) error {
	return s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).
		Updates(map[string]any{"online": online, "last_seen": lastSeen}).Error
}

func (s *userRepoImpl) ListOnlineUserIDs(ctx context.Context) ([]string, error) {
	ids := make([]string, 0)
	err := s.db.WithContext(ctx).Model(&model.User{}).Where("online = ?", true).Pluck("id", &ids).Error
	return ids, err
}

func (s *userRepoImpl) first(ctx context.Context, query string, args ...any) (*model.User, error) {
	user := &model.User{}
	err := s.db.WithContext(ctx).Where(query, args...).First(user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`).Replace(s)
}
