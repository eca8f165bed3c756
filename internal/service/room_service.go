package service

import (
	"ChatApp/internal/model"
	"ChatApp/internal/repository"
	"context"
	"errors"
	log "log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	resolveAttempts = 3
	resolveBackoff  = 20 * time.Millisecond
)

// RoomService 单聊会话解析，一对用户至多对应一个会话
type RoomService interface {
	Resolve(ctx context.Context, userA, userB string) (*model.ChatRoom, error)
	Lookup(ctx context.Context, userA, userB string) (*model.ChatRoom, error)
	GetRoom(ctx context.Context, roomID string) (*model.ChatRoom, error)
}

type roomServiceImpl struct {
	roomRepo repository.ChatRoomRepo
}

func NewRoomService(roomRepo repository.ChatRoomRepo) RoomService {
	return &roomServiceImpl{roomRepo: roomRepo}
}

// Resolve 先查 (A,B) 再查 (B,A)，都不存在时创建 (A,B)
// 并发创建冲突时重新读取胜出的会话，最多尝试 resolveAttempts 次
func (s *roomServiceImpl) Resolve(ctx context.Context, userA, userB string) (*model.ChatRoom, error) {
	for attempt := 1; attempt <= resolveAttempts; attempt++ {
		room, err := s.Lookup(ctx, userA, userB)
		if err != nil {
			return nil, err
		}
		if room != nil {
			return room, nil
		}

		room = &model.ChatRoom{
			ID:           uuid.NewString(),
			FirstUserID:  userA,
			SecondUserID: userB,
		}
		err = s.roomRepo.CreateRoom(ctx, room)
		if err == nil {
			log.InfoContext(ctx, "chat room created", "room_id", room.ID, "first", userA, "second", userB)
			return room, nil
		}
		if !errors.Is(err, repository.ErrRoomExists) {
			return nil, err
		}

		log.WarnContext(ctx, "chat room creation conflict, re-reading", "attempt", attempt, "first", userA, "second", userB)
		winner, err := s.roomRepo.GetRoomByPairKey(ctx, model.PairKey(userA, userB))
		if err != nil {
			return nil, err
		}
		if winner != nil {
			return winner, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * resolveBackoff):
		}
	}
	return nil, ErrRoomCreationConflict
}

// Lookup 只读查询，不存在时返回 nil, nil
func (s *roomServiceImpl) Lookup(ctx context.Context, userA, userB string) (*model.ChatRoom, error) {
	room, err := s.roomRepo.GetRoomByUsers(ctx, userA, userB)
	if err != nil || room != nil {
		return room, err
	}
	return s.roomRepo.GetRoomByUsers(ctx, userB, userA)
}

func (s *roomServiceImpl) GetRoom(ctx context.Context, roomID string) (*model.ChatRoom, error) {
	room, err := s.roomRepo.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}
	return room, nil
}
