package testutil

import (
	"ChatApp/internal/api/dto"
	"ChatApp/internal/pkg/mongo"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// MemoryMessageRepo 内存版消息存储
type MemoryMessageRepo struct {
	mu       sync.Mutex
	messages []*mongo.ChatMessage
	SaveErr  error
}

func NewMemoryMessageRepo() *MemoryMessageRepo {
	return &MemoryMessageRepo{}
}

func (r *MemoryMessageRepo) SaveMessage(_ context.Context, msg *mongo.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.SaveErr != nil {
		return r.SaveErr
	}
	if msg.ID == "" {
		msg.ID = mongo.NewMessageID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = mongo.Now()
	}
	cp := *msg
	r.messages = append(r.messages, &cp)
	return nil
}

func (r *MemoryMessageRepo) GetHistory(_ context.Context, chatID string) ([]*mongo.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := make([]*mongo.ChatMessage, 0)
	for _, m := range r.messages {
		if m.ChatID == chatID {
			cp := *m
			list = append(list, &cp)
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].Timestamp.Equal(list[j].Timestamp) {
			return list[i].Timestamp.Before(list[j].Timestamp)
		}
		return list[i].ID < list[j].ID
	})
	return list, nil
}

func (r *MemoryMessageRepo) GetLatestMessage(ctx context.Context, chatID string) (*mongo.ChatMessage, error) {
	list, _ := r.GetHistory(ctx, chatID)
	if len(list) == 0 {
		return nil, nil
	}
	return list[len(list)-1], nil
}

func (r *MemoryMessageRepo) EnsureIndexes(context.Context) error { return nil }

// All 返回全部已保存消息
func (r *MemoryMessageRepo) All() []*mongo.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*mongo.ChatMessage(nil), r.messages...)
}

// FakeSession 记录收到的帧
type FakeSession struct {
	ID string

	mu     sync.Mutex
	frames [][]byte
	closed bool
	full   bool
}

func NewFakeSession(userID string) *FakeSession {
	return &FakeSession{ID: userID}
}

func (f *FakeSession) UserID() string { return f.ID }

func (f *FakeSession) Send(frame []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.full {
		return false
	}
	f.frames = append(f.frames, frame)
	return true
}

func (f *FakeSession) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

// SetFull 模拟发送缓冲已满
func (f *FakeSession) SetFull(full bool) {
	f.mu.Lock()
	f.full = full
	f.mu.Unlock()
}

func (f *FakeSession) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Frames 解码后的出站帧，payload 保留原始 JSON
func (f *FakeSession) Frames() []Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Frame, 0, len(f.frames))
	for _, raw := range f.frames {
		var fr Frame
		if err := json.Unmarshal(raw, &fr); err != nil {
			panic(fmt.Sprintf("invalid frame %s: %v", raw, err))
		}
		out = append(out, fr)
	}
	return out
}

// OnChannel 指定频道上的帧
func (f *FakeSession) OnChannel(channel string) []Frame {
	out := make([]Frame, 0)
	for _, fr := range f.Frames() {
		if fr.Channel == channel {
			out = append(out, fr)
		}
	}
	return out
}

// Frame 测试中解码的出站帧
type Frame struct {
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload"`
}

// Decode 将 payload 解码到 v
func (fr Frame) Decode(v any) error {
	return json.Unmarshal(fr.Payload, v)
}

// OnlineIDs 解码 /topic/online 快照中的用户 ID
func (fr Frame) OnlineIDs() []string {
	var users []*dto.PresenceUserDTO
	_ = fr.Decode(&users)
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids
}

// MemoryStorage 内存版对象存储
type MemoryStorage struct {
	mu      sync.Mutex
	Objects map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{Objects: make(map[string][]byte)}
}

func (m *MemoryStorage) Upload(_ context.Context, objectName string, reader io.Reader, _ int64, _ string) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.Objects[objectName] = data
	m.mu.Unlock()
	return objectName, nil
}

func (m *MemoryStorage) Delete(_ context.Context, objectName string) error {
	m.mu.Lock()
	delete(m.Objects, objectName)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStorage) PublicURL(objectName string) string {
	return "http://cdn.test/avatars/" + objectName
}

func (m *MemoryStorage) Has(objectName string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.Objects[objectName]
	return ok
}

// MemoryRevocations 内存版令牌注销表
type MemoryRevocations struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
}

func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{revoked: make(map[string]time.Duration)}
}

func (m *MemoryRevocations) Revoke(_ context.Context, signature string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[signature] = ttl
	return nil
}

func (m *MemoryRevocations) IsRevoked(_ context.Context, signature string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[signature]
	return ok, nil
}
