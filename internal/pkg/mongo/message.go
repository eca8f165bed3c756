package mongo

import (
	"time"
)

// ChatMessage 单聊消息，写入后不可变
type ChatMessage struct {
	ID         string    `bson:"_id" json:"id"`                 // ObjectID hex，写入前由服务端生成
	ChatID     string    `bson:"chat_id" json:"chatId"`         // 关联 MySQL 的 chat_rooms.id
	SenderID   string    `bson:"sender_id" json:"senderId"`     // 来自会话身份，不信任客户端
	ReceiverID string    `bson:"receiver_id" json:"receiverId"` // 接收者 UID
	Content    string    `bson:"content" json:"content"`        // 允许为空字符串
	Timestamp  time.Time `bson:"timestamp" json:"timestamp"`    // 服务端 UTC 时间
}
