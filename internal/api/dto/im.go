package dto

import (
	"time"

	"github.com/goccy/go-json"
)

// InboundFrame 客户端发送的 websocket 帧
type InboundFrame struct {
	Destination string          `json:"destination"`
	Payload     json.RawMessage `json:"payload"`
}

// OutboundFrame 服务端推送的 websocket 帧
type OutboundFrame struct {
	Channel string `json:"channel"`
	Payload any    `json:"payload"`
}

// PrivateMessageReq 私聊消息，senderId 即使存在也会被忽略
type PrivateMessageReq struct {
	ReceiverID string  `json:"receiverId"`
	Content    *string `json:"content"`
}

// PublicMessageReq 公共频道消息
type PublicMessageReq struct {
	Message string `json:"message"`
	Sender  string `json:"sender"`
}

// MessageDTO 消息明细
type MessageDTO struct {
	ID         string    `json:"id"`
	ChatID     string    `json:"chatId"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}

// PresenceUserDTO 在线列表中的用户
type PresenceUserDTO struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Username  string     `json:"username"`
	AvatarURL string     `json:"avatarUrl"`
	Online    bool       `json:"online"`
	LastSeen  *time.Time `json:"lastSeen"`
}

// StatusEventDTO 单个用户的上下线事件
type StatusEventDTO struct {
	UserID   string    `json:"userId"`
	IsOnline bool      `json:"isOnline"`
	LastSeen time.Time `json:"lastSeen"`
}

// ConversationDTO 会话列表项
type ConversationDTO struct {
	ChatID              string     `json:"chatId"`
	OtherUserID         string     `json:"otherUserId"`
	Name                string     `json:"name"`
	Username            string     `json:"username"`
	AvatarURL           string     `json:"avatarUrl"`
	Online              bool       `json:"online"`
	LastMessage         string     `json:"lastMessage"`
	LastMessageTime     *time.Time `json:"lastMessageTime"`
	LastMessageSenderID string     `json:"lastMessageSenderId"`
	UnreadCount         int        `json:"unreadCount"`
}

// ErrorFrameDTO 帧被拒绝时推送到 /user/queue/errors
type ErrorFrameDTO struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
