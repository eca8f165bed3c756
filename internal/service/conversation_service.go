package service

import (
	"ChatApp/internal/api/dto"
	"ChatApp/internal/pkg/mongo"
	"ChatApp/internal/repository"
	"context"
	log "log/slog"
	"sort"
)

// ConversationService 会话列表，每次调用实时计算
type ConversationService interface {
	ListConversations(ctx context.Context, userID string) ([]*dto.ConversationDTO, error)
}

type conversationServiceImpl struct {
	userRepo    repository.UserRepo
	roomRepo    repository.ChatRoomRepo
	messageRepo mongo.MessageRepo
}

func NewConversationService(userRepo repository.UserRepo, roomRepo repository.ChatRoomRepo, messageRepo mongo.MessageRepo) ConversationService {
	return &conversationServiceImpl{
		userRepo:    userRepo,
		roomRepo:    roomRepo,
		messageRepo: messageRepo,
	}
}

// ListConversations 按最后一条消息时间倒序，没有消息的会话排在最后
// 对方用户已不存在的会话会被跳过
func (s *conversationServiceImpl) ListConversations(ctx context.Context, userID string) ([]*dto.ConversationDTO, error) {
	rooms, err := s.roomRepo.GetRoomsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	otherIDs := make([]string, 0, len(rooms))
	for _, room := range rooms {
		otherIDs = append(otherIDs, room.OtherUserID(userID))
	}
	others, err := s.userRepo.GetUserByIds(ctx, otherIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]int, len(others))
	for i, u := range others {
		byID[u.ID] = i
	}

	list := make([]*dto.ConversationDTO, 0, len(rooms))
	for _, room := range rooms {
		idx, ok := byID[room.OtherUserID(userID)]
		if !ok {
			log.WarnContext(ctx, "skipping conversation with missing user", "room_id", room.ID)
			continue
		}
		other := others[idx]

		item := &dto.ConversationDTO{
			ChatID:      room.ID,
			OtherUserID: other.ID,
			Name:        other.Name,
			Username:    other.Username,
			AvatarURL:   other.AvatarURL,
			Online:      other.Online,
			UnreadCount: 0,
		}

		latest, err := s.messageRepo.GetLatestMessage(ctx, room.ID)
		if err != nil {
			return nil, err
		}
		if latest != nil {
			ts := latest.Timestamp
			item.LastMessage = latest.Content
			item.LastMessageTime = &ts
			item.LastMessageSenderID = latest.SenderID
		}
		list = append(list, item)
	}

	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i].LastMessageTime, list[j].LastMessageTime
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return a.After(*b)
	})
	return list, nil
}
