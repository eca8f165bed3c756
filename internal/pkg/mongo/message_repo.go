package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const messageCollection = "chat_messages"

type MessageRepo interface {
	SaveMessage(ctx context.Context, msg *ChatMessage) error
	GetHistory(ctx context.Context, chatID string) ([]*ChatMessage, error)
	GetLatestMessage(ctx context.Context, chatID string) (*ChatMessage, error)
	EnsureIndexes(ctx context.Context) error
}

type messageRepoImpl struct {
	col *mongo.Collection
}

func NewMessageRepo(db *mongo.Database) MessageRepo {
	return &messageRepoImpl{
		col: db.Collection(messageCollection),
	}
}

// NewMessageID 生成消息 ID
func NewMessageID() string {
	return primitive.NewObjectID().Hex()
}

// Now 消息时间戳，截断到毫秒与 BSON 精度一致
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// SaveMessage 单条插入，ID 与时间戳为空时补齐
func (s *messageRepoImpl) SaveMessage(ctx context.Context, msg *ChatMessage) error {
	if msg.ID == "" {
		msg.ID = NewMessageID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = Now()
	}
	_, err := s.col.InsertOne(ctx, msg)
	return err
}

// GetHistory 按时间升序返回会话全部消息
func (s *messageRepoImpl) GetHistory(ctx context.Context, chatID string) ([]*ChatMessage, error) {
	findOptions := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := s.col.Find(ctx, bson.M{"chat_id": chatID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	messages := make([]*ChatMessage, 0)
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// GetLatestMessage 会话最新一条消息，没有消息时返回 nil, nil
func (s *messageRepoImpl) GetLatestMessage(ctx context.Context, chatID string) (*ChatMessage, error) {
	opts := options.FindOne().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}})

	var msg ChatMessage
	err := s.col.FindOne(ctx, bson.M{"chat_id": chatID}, opts).Decode(&msg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

// EnsureIndexes 创建 (chat_id, timestamp) 复合索引
func (s *messageRepoImpl) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "chat_id", Value: 1}, {Key: "timestamp", Value: 1}},
		Options: options.Index().SetName("idx_chat_timestamp"),
	})
	return err
}
