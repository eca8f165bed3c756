package service

import (
	"ChatApp/internal/api/dto"
	"ChatApp/internal/model"
	"ChatApp/internal/pkg/consts"
	"ChatApp/internal/pkg/minio"
	"ChatApp/internal/pkg/security"
	"ChatApp/internal/pkg/util"
	"ChatApp/internal/repository"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	log "log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
)

// TokenManager 令牌签发与注销
type TokenManager interface {
	Issue(userID, email string) (string, error)
	Revoke(ctx context.Context, identity *security.Identity) error
}

type UserService interface {
	Register(ctx context.Context, dto *dto.RegisterDTO) (*dto.AuthDTO, error)
	Login(ctx context.Context, dto *dto.CredentialDTO) (*dto.AuthDTO, error)
	Logout(ctx context.Context, identity *security.Identity) error
	GetUser(ctx context.Context, id string) (*dto.UserDTO, error)
	ListUsers(ctx context.Context) ([]*dto.UserDTO, error)
	SearchUsers(ctx context.Context, currentUserID string, dto *dto.SearchUserDTO) ([]*dto.UserDTO, error)
	UpdateProfile(ctx context.Context, id string, dto *dto.UpdateProfileDTO) (*dto.UserDTO, error)
	ChangePassword(ctx context.Context, id string, dto *dto.ChangePasswordDTO) error
	UpdateAvatar(ctx context.Context, id string, file io.Reader, size int64, contentType string) (*dto.UserDTO, error)
	DeleteAvatar(ctx context.Context, id string) error
}

type userServiceImpl struct {
	userRepo repository.UserRepo
	tokens   TokenManager
	storage  minio.ObjectStorage
}

func NewUserService(userRepo repository.UserRepo, tokens TokenManager, storage minio.ObjectStorage) UserService {
	return &userServiceImpl{
		userRepo: userRepo,
		tokens:   tokens,
		storage:  storage,
	}
}

func (s *userServiceImpl) Register(ctx context.Context, regDTO *dto.RegisterDTO) (*dto.AuthDTO, error) {
	if err := util.ValidateDTO(regDTO); err != nil {
		log.InfoContext(ctx, "register rejected", "err", err)
		return nil, ErrParamInvalid
	}
	email := strings.ToLower(strings.TrimSpace(regDTO.Email))

	byEmail, err := s.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if byEmail != nil {
		return nil, ErrEmailExist
	}
	byUsername, err := s.userRepo.GetUserByUsername(ctx, regDTO.Username)
	if err != nil {
		return nil, err
	}
	if byUsername != nil {
		return nil, ErrUsernameExist
	}

	passwordHash, err := security.HashPassword(regDTO.Password)
	if errors.Is(err, security.ErrPasswordTooLong) {
		return nil, ErrParamInvalid
	}
	if err != nil {
		return nil, err
	}

	user := &model.User{}
	if err = copier.Copy(user, regDTO); err != nil {
		return nil, err
	}
	user.ID = uuid.NewString()
	user.Email = email
	user.Password = passwordHash

	if err = s.userRepo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserConflict) {
			return nil, ErrUserExist
		}
		return nil, err
	}
	log.InfoContext(ctx, "user registered", "user_id", user.ID)
	return s.authResult(user)
}

func (s *userServiceImpl) Login(ctx context.Context, credential *dto.CredentialDTO) (*dto.AuthDTO, error) {
	user, err := s.userRepo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(credential.Email)))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrPasswordIncorrect
	}
	if err = security.CheckPasswordHash(credential.Password, user.Password); err != nil {
		return nil, ErrPasswordIncorrect
	}
	return s.authResult(user)
}

// Logout 注销当前令牌
func (s *userServiceImpl) Logout(ctx context.Context, identity *security.Identity) error {
	return s.tokens.Revoke(ctx, identity)
}

func (s *userServiceImpl) GetUser(ctx context.Context, id string) (*dto.UserDTO, error) {
	user, err := s.userRepo.GetUserById(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return toUserDTO(user)
}

func (s *userServiceImpl) ListUsers(ctx context.Context) ([]*dto.UserDTO, error) {
	users, err := s.userRepo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	return toUserDTOs(users)
}

// SearchUsers 按用户名或姓名模糊搜索，不返回当前用户
func (s *userServiceImpl) SearchUsers(ctx context.Context, currentUserID string, search *dto.SearchUserDTO) ([]*dto.UserDTO, error) {
	query := strings.TrimSpace(search.Query)
	if query == "" {
		return []*dto.UserDTO{}, nil
	}
	limit := search.Limit
	if limit <= 0 {
		limit = consts.SearchDefaultLimit
	}
	if limit > consts.SearchMaxLimit {
		limit = consts.SearchMaxLimit
	}

	users, err := s.userRepo.SearchUsers(ctx, query, currentUserID, limit)
	if err != nil {
		return nil, err
	}
	return toUserDTOs(users)
}

// UpdateProfile 只更新非 nil 字段，用户名与邮箱需保持唯一
func (s *userServiceImpl) UpdateProfile(ctx context.Context, id string, req *dto.UpdateProfileDTO) (*dto.UserDTO, error) {
	if err := util.ValidateDTO(req); err != nil {
		log.InfoContext(ctx, "profile update rejected", "user_id", id, "err", err)
		return nil, ErrParamInvalid
	}
	user, err := s.userRepo.GetUserById(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	fields := make(map[string]any)
	if req.Username != nil && *req.Username != user.Username {
		existing, err := s.userRepo.GetUserByUsername(ctx, *req.Username)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, ErrUsernameExist
		}
		fields["username"] = *req.Username
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		if email != user.Email {
			existing, err := s.userRepo.GetUserByEmail(ctx, email)
			if err != nil {
				return nil, err
			}
			if existing != nil {
				return nil, ErrEmailExist
			}
			fields["email"] = email
		}
	}
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.Bio != nil {
		fields["bio"] = *req.Bio
	}

	if err = s.userRepo.UpdateUserFields(ctx, id, fields); err != nil {
		if errors.Is(err, repository.ErrUserConflict) {
			return nil, ErrUserExist
		}
		return nil, err
	}
	return s.GetUser(ctx, id)
}

func (s *userServiceImpl) ChangePassword(ctx context.Context, id string, req *dto.ChangePasswordDTO) error {
	if len(req.NewPassword) < consts.MinPasswordLength {
		return ErrParamInvalid
	}
	user, err := s.userRepo.GetUserById(ctx, id)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if err = security.CheckPasswordHash(req.CurrentPassword, user.Password); err != nil {
		return ErrCurrentPassword
	}
	passwordHash, err := security.HashPassword(req.NewPassword)
	if errors.Is(err, security.ErrPasswordTooLong) {
		return ErrParamInvalid
	}
	if err != nil {
		return err
	}
	return s.userRepo.UpdatePassword(ctx, id, passwordHash)
}

// UpdateAvatar 裁剪为正方形 JPEG 后上传，替换并删除旧头像
func (s *userServiceImpl) UpdateAvatar(ctx context.Context, id string, file io.Reader, size int64, contentType string) (*dto.UserDTO, error) {
	if !strings.HasPrefix(contentType, consts.MimePrefixImage+"/") {
		return nil, ErrFileNotSupported
	}
	if size <= 0 {
		return nil, ErrParamInvalid
	}
	if size > consts.MaxAvatarSize {
		return nil, ErrFileTooLarge
	}
	user, err := s.userRepo.GetUserById(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	resized, err := util.ResizeAvatar(io.LimitReader(file, consts.MaxAvatarSize), consts.AvatarEdge)
	if err != nil {
		return nil, ErrFileNotSupported
	}

	objectName := fmt.Sprintf("avatars/%s_%s.jpg", id, uuid.NewString()[:8])
	key, err := s.storage.Upload(ctx, objectName, bytes.NewReader(resized), int64(len(resized)), "image/jpeg")
	if err != nil {
		return nil, err
	}
	if err = s.userRepo.UpdateAvatar(ctx, id, s.storage.PublicURL(key), key); err != nil {
		return nil, err
	}
	s.removeObject(ctx, user.AvatarKey)

	return s.GetUser(ctx, id)
}

func (s *userServiceImpl) DeleteAvatar(ctx context.Context, id string) error {
	user, err := s.userRepo.GetUserById(ctx, id)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if user.AvatarKey == "" {
		return nil
	}
	if err = s.userRepo.UpdateAvatar(ctx, id, "", ""); err != nil {
		return err
	}
	s.removeObject(ctx, user.AvatarKey)
	return nil
}

// 删除失败不影响主流程
func (s *userServiceImpl) removeObject(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.storage.Delete(ctx, key); err != nil {
		log.WarnContext(ctx, "failed to delete old avatar", "key", key, "err", err)
	}
}

func (s *userServiceImpl) authResult(user *model.User) (*dto.AuthDTO, error) {
	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &dto.AuthDTO{
		ID:       user.ID,
		Name:     user.Name,
		Username: user.Username,
		Email:    user.Email,
		Token:    token,
	}, nil
}

func toUserDTO(user *model.User) (*dto.UserDTO, error) {
	userDTO := &dto.UserDTO{}
	if err := copier.Copy(userDTO, user); err != nil {
		return nil, err
	}
	return userDTO, nil
}

func toUserDTOs(users []*model.User) ([]*dto.UserDTO, error) {
	list := make([]*dto.UserDTO, 0, len(users))
	for _, u := range users {
		userDTO, err := toUserDTO(u)
		if err != nil {
			return nil, err
		}
		list = append(list, userDTO)
	}
	return list, nil
}
