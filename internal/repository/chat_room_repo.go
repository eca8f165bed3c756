package repository

import (
	"ChatApp/internal/model"
	"context"
	"errors"

	"gorm.io/gorm"
)

// ErrRoomExists 并发创建同一用户对的会话时，唯一索引冲突
var ErrRoomExists = errors.New("chat room already exists")

type ChatRoomRepo interface {
	CreateRoom(ctx context.Context, room *model.ChatRoom) error
	GetRoom(ctx context.Context, id string) (*model.ChatRoom, error)
	GetRoomByUsers(ctx context.Context, firstUserID, secondUserID string) (*model.ChatRoom, error)
	GetRoomByPairKey(ctx context.Context, pairKey string) (*model.ChatRoom, error)
	GetRoomsByUser(ctx context.Context, userID string) ([]*model.ChatRoom, error)
}

type chatRoomRepoImpl struct {
	db *gorm.DB
}

func NewChatRoomRepo(db *gorm.DB) ChatRoomRepo {
	return &chatRoomRepoImpl{db: db}
}

// CreateRoom 唯一索引冲突时返回 ErrRoomExists
func (s *chatRoomRepoImpl) CreateRoom(ctx context.Context, room *model.ChatRoom) error {
	room.PairKey = model.PairKey(room.FirstUserID, room.SecondUserID)
	err := s.db.WithContext(ctx).Create(room).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrRoomExists
	}
	return err
}

func (s *chatRoomRepoImpl) GetRoom(ctx context.Context, id string) (*model.ChatRoom, error) {
	return s.first(ctx, "id = ?", id)
}

// GetRoomByUsers 按 (first, second) 有序查询，不存在时返回 nil, nil
func (s *chatRoomRepoImpl) GetRoomByUsers(ctx context.Context, firstUserID, secondUserID string) (*model.ChatRoom, error) {
	return s.first(ctx, "first_user_id = ? AND second_user_id = ?", firstUserID, secondUserID)
}

func (s *chatRoomRepoImpl) GetRoomByPairKey(ctx context.Context, pairKey string) (*model.ChatRoom, error) {
	return s.first(ctx, "pair_key = ?", pairKey)
}

func (s *chatRoomRepoImpl) GetRoomsByUser(ctx context.Context, userID string) ([]*model.ChatRoom, error) {
	rooms := make([]*model.ChatRoom, 0)
	err := s.db.WithContext(ctx).
		Where("(first_user_id = ? OR second_user_id = ?)", userID, userID).
		Order("created_at ASC").
		Find(&rooms).Error
	return rooms, err
}

func (s *chatRoomRepoImpl) first(ctx context.Context, query string, args ...any) (*model.ChatRoom, error) {
	room := &model.ChatRoom{}
	err := s.db.WithContext(ctx).Where(query, args...).First(room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return room, nil
}
