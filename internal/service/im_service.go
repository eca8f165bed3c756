package service

import (
	"ChatApp/internal/api/dto"
	"ChatApp/internal/pkg/consts"
	"ChatApp/internal/pkg/kafka"
	"ChatApp/internal/pkg/mongo"
	"ChatApp/internal/repository"
	"context"
	log "log/slog"

	"github.com/goccy/go-json"
)

// IMService 私聊消息路由与公共频道
type IMService interface {
	Route(ctx context.Context, senderID, receiverID string, content *string) (*dto.MessageDTO, error)
	AnnounceJoin(ctx context.Context, payload json.RawMessage) error
	BroadcastPublic(ctx context.Context, message, sender string) error
	GetMessageHistory(ctx context.Context, requesterID, roomID string) ([]*dto.MessageDTO, error)
	GetHistoryWith(ctx context.Context, userID, otherID string) ([]*dto.MessageDTO, error)
}

type imServiceImpl struct {
	userRepo    repository.UserRepo
	rooms       RoomService
	messageRepo mongo.MessageRepo
	presence    PresenceService
	publisher   kafka.EventPublisher
}

func NewIMService(
	userRepo repository.UserRepo,
	rooms RoomService,
	messageRepo mongo.MessageRepo,
	presence PresenceService,
	publisher kafka.EventPublisher,
) IMService {
	return &imServiceImpl{
		userRepo:    userRepo,
		rooms:       rooms,
		messageRepo: messageRepo,
		presence:    presence,
		publisher:   publisher,
	}
}

// Route 解析会话、持久化后投递给接收者；接收者离线不视为错误
// senderID 必须来自已认证的会话身份
func (s *imServiceImpl) Route(ctx context.Context, senderID, receiverID string, content *string) (*dto.MessageDTO, error) {
	if content == nil || receiverID == "" {
		return nil, ErrParamInvalid
	}
	if senderID == receiverID {
		return nil, ErrTargetUserInvalid
	}

	receiver, err := s.userRepo.GetUserById(ctx, receiverID)
	if err != nil {
		return nil, err
	}
	if receiver == nil {
		return nil, ErrUserNotFound
	}

	room, err := s.rooms.Resolve(ctx, senderID, receiverID)
	if err != nil {
		return nil, err
	}

	msg := &mongo.ChatMessage{
		ID:         mongo.NewMessageID(),
		ChatID:     room.ID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    *content,
		Timestamp:  mongo.Now(),
	}
	if err = s.messageRepo.SaveMessage(ctx, msg); err != nil {
		return nil, err
	}

	msgDTO := toMessageDTO(msg)
	delivered := false
	if frame, err := EncodeFrame(consts.ChannelPrivateMessages, msgDTO); err != nil {
		log.ErrorContext(ctx, "encode private message failed", "message_id", msg.ID, "err", err)
	} else {
		delivered = s.presence.SendToUser(ctx, receiverID, frame)
	}

	if err = s.publisher.PublishMessageCreated(ctx, msg); err != nil {
		log.WarnContext(ctx, "publish message event failed", "message_id", msg.ID, "err", err)
	}

	log.InfoContext(ctx, "message routed",
		"message_id", msg.ID,
		"chat_id", msg.ChatID,
		"sender_id", senderID,
		"receiver_id", receiverID,
		"delivered", delivered,
	)
	return msgDTO, nil
}

// AnnounceJoin 原样转发到公共频道，不持久化
func (s *imServiceImpl) AnnounceJoin(ctx context.Context, payload json.RawMessage) error {
	if len(payload) == 0 || !json.Valid(payload) {
		return ErrParamInvalid
	}
	frame, err := EncodeFrame(consts.ChannelPublic, payload)
	if err != nil {
		return err
	}
	s.presence.Broadcast(ctx, frame)
	return nil
}

// BroadcastPublic 转发到公共频道，不持久化
func (s *imServiceImpl) BroadcastPublic(ctx context.Context, message, sender string) error {
	frame, err := EncodeFrame(consts.ChannelPublic, &dto.PublicMessageReq{Message: message, Sender: sender})
	if err != nil {
		return err
	}
	s.presence.Broadcast(ctx, frame)
	return nil
}

// GetMessageHistory 会话全部消息，按时间升序，仅会话成员可读
func (s *imServiceImpl) GetMessageHistory(ctx context.Context, requesterID, roomID string) ([]*dto.MessageDTO, error) {
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasMember(requesterID) {
		return nil, ErrNotRoomMember
	}
	return s.history(ctx, room.ID)
}

// GetHistoryWith 与指定用户的消息记录，对方不存在时返回 ErrUserNotFound
// 尚无会话时返回空列表且不创建会话
func (s *imServiceImpl) GetHistoryWith(ctx context.Context, userID, otherID string) ([]*dto.MessageDTO, error) {
	if userID == otherID {
		return nil, ErrTargetUserInvalid
	}
	other, err := s.userRepo.GetUserById(ctx, otherID)
	if err != nil {
		return nil, err
	}
	if other == nil {
		return nil, ErrUserNotFound
	}
	room, err := s.rooms.Lookup(ctx, userID, otherID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return []*dto.MessageDTO{}, nil
	}
	return s.history(ctx, room.ID)
}

func (s *imServiceImpl) history(ctx context.Context, chatID string) ([]*dto.MessageDTO, error) {
	messages, err := s.messageRepo.GetHistory(ctx, chatID)
	if err != nil {
		return nil, err
	}
	list := make([]*dto.MessageDTO, 0, len(messages))
	for _, m := range messages {
		list = append(list, toMessageDTO(m))
	}
	return list, nil
}

func toMessageDTO(m *mongo.ChatMessage) *dto.MessageDTO {
	return &dto.MessageDTO{
		ID:         m.ID,
		ChatID:     m.ChatID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		Timestamp:  m.Timestamp,
	}
}
