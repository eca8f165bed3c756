package service

import (
	"ChatApp/internal/api/dto"
	"ChatApp/internal/model"
	"ChatApp/internal/pkg/consts"
	"ChatApp/internal/pkg/kafka"
	"ChatApp/internal/repository"
	"ChatApp/internal/testutil"
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type imFixture struct {
	db       *gorm.DB
	im       IMService
	presence PresenceService
	messages *testutil.MemoryMessageRepo
	alice    *model.User
	bob      *model.User
}

func newIMFixture(t *testing.T, publisher kafka.EventPublisher) *imFixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	userRepo := repository.NewUserRepo(db)
	messages := testutil.NewMemoryMessageRepo()
	presence := startPresence(t, db)
	if publisher == nil {
		publisher = kafka.NopPublisher{}
	}

	return &imFixture{
		db:       db,
		im:       NewIMService(userRepo, NewRoomService(repository.NewChatRoomRepo(db)), messages, presence, publisher),
		presence: presence,
		messages: messages,
		alice:    testutil.CreateUser(t, db, "alice"),
		bob:      testutil.CreateUser(t, db, "bob"),
	}
}

func mockProducerConfig() *sarama.Config {
	c := sarama.NewConfig()
	c.Producer.Return.Successes = true
	return c
}

func TestIMService_RouteDeliversToOnlineReceiver(t *testing.T) {
	producer := mocks.NewAsyncProducer(t, mockProducerConfig())
	producer.ExpectInputAndSucceed()
	pub := kafka.NewSaramaPublisher(producer, "chat.events")
	f := newIMFixture(t, pub)
	ctx := context.Background()

	aliceSession := testutil.NewFakeSession(f.alice.ID)
	bobSession := testutil.NewFakeSession(f.bob.ID)
	if err := f.presence.Connect(ctx, aliceSession); err != nil {
		t.Fatalf("Connect(alice) error = %v", err)
	}
	if err := f.presence.Connect(ctx, bobSession); err != nil {
		t.Fatalf("Connect(bob) error = %v", err)
	}

	msg, err := f.im.Route(ctx, f.alice.ID, f.bob.ID, testutil.Ptr("hello"))
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if msg.SenderID != f.alice.ID || msg.ReceiverID != f.bob.ID || msg.Content != "hello" {
		t.Fatalf("Route() = %+v", msg)
	}
	if msg.ID == "" || msg.ChatID == "" || msg.Timestamp.IsZero() {
		t.Fatalf("Route() missing server fields: %+v", msg)
	}

	delivered := bobSession.OnChannel(consts.ChannelPrivateMessages)
	if len(delivered) != 1 {
		t.Fatalf("bob received %d private frames, want 1", len(delivered))
	}
	var got dto.MessageDTO
	if err := delivered[0].Decode(&got); err != nil {
		t.Fatalf("decode delivered message: %v", err)
	}
	if got.ID != msg.ID || got.SenderID != f.alice.ID || got.Content != "hello" {
		t.Fatalf("delivered = %+v, want %+v", got, msg)
	}
	if n := len(aliceSession.OnChannel(consts.ChannelPrivateMessages)); n != 0 {
		t.Fatalf("sender received %d private frames, want 0", n)
	}

	history, err := f.im.GetHistoryWith(ctx, f.bob.ID, f.alice.ID)
	if err != nil {
		t.Fatalf("GetHistoryWith() error = %v", err)
	}
	if len(history) != 1 || history[0].ID != msg.ID {
		t.Fatalf("GetHistoryWith() = %+v", history)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("publisher Close() error = %v", err)
	}
}

func TestIMService_RouteToOfflineReceiverIsStored(t *testing.T) {
	f := newIMFixture(t, nil)
	ctx := context.Background()

	msg, err := f.im.Route(ctx, f.alice.ID, f.bob.ID, testutil.Ptr("are you there?"))
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if all := f.messages.All(); len(all) != 1 || all[0].ID != msg.ID {
		t.Fatalf("stored messages = %+v", all)
	}
}

func TestIMService_RouteValidation(t *testing.T) {
	f := newIMFixture(t, nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		receiver string
		content  *string
		wantErr  error
	}{
		{"absent content", f.bob.ID, nil, ErrParamInvalid},
		{"missing receiver id", "", testutil.Ptr("x"), ErrParamInvalid},
		{"self message", f.alice.ID, testutil.Ptr("x"), ErrTargetUserInvalid},
		{"unknown receiver", "ghost", testutil.Ptr("x"), ErrUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.im.Route(ctx, f.alice.ID, tt.receiver, tt.content)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Route() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if n := len(f.messages.All()); n != 0 {
		t.Fatalf("rejected messages were stored: %d", n)
	}

	// 空字符串是合法内容
	if _, err := f.im.Route(ctx, f.alice.ID, f.bob.ID, testutil.Ptr("")); err != nil {
		t.Fatalf("Route(empty content) error = %v", err)
	}
}

func TestIMService_PublishFailureDoesNotFailRoute(t *testing.T) {
	producer := mocks.NewAsyncProducer(t, mockProducerConfig())
	producer.ExpectInputAndFail(sarama.ErrOutOfBrokers)
	pub := kafka.NewSaramaPublisher(producer, "chat.events")
	f := newIMFixture(t, pub)

	if _, err := f.im.Route(context.Background(), f.alice.ID, f.bob.ID, testutil.Ptr("hi")); err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if n := len(f.messages.All()); n != 1 {
		t.Fatalf("stored messages = %d, want 1", n)
	}
	if err := pub.Close(); !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Fatalf("publisher Close() error = %v, want ErrOutOfBrokers", err)
	}
}

func TestIMService_HistoryOrderingAndSharedRoom(t *testing.T) {
	f := newIMFixture(t, nil)
	ctx := context.Background()

	contents := []string{"one", "two", "three"}
	senders := []*model.User{f.alice, f.bob, f.alice}
	for i, c := range contents {
		to := f.bob
		if senders[i] == f.bob {
			to = f.alice
		}
		if _, err := f.im.Route(ctx, senders[i].ID, to.ID, testutil.Ptr(c)); err != nil {
			t.Fatalf("Route(%s) error = %v", c, err)
		}
	}

	all := f.messages.All()
	for _, m := range all {
		if m.ChatID != all[0].ChatID {
			t.Fatalf("messages span rooms %s and %s", all[0].ChatID, m.ChatID)
		}
	}

	history, err := f.im.GetMessageHistory(ctx, f.bob.ID, all[0].ChatID)
	if err != nil {
		t.Fatalf("GetMessageHistory() error = %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("GetMessageHistory() len = %d, want 3", len(history))
	}
	for i := 1; i < len(history); i++ {
		if history[i].Timestamp.Before(history[i-1].Timestamp) {
			t.Fatalf("history not ascending at %d", i)
		}
	}
}

func TestIMService_HistoryAccess(t *testing.T) {
	f := newIMFixture(t, nil)
	ctx := context.Background()
	carol := testutil.CreateUser(t, f.db, "carol")

	msg, err := f.im.Route(ctx, f.alice.ID, f.bob.ID, testutil.Ptr("secret"))
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	if _, err := f.im.GetMessageHistory(ctx, carol.ID, msg.ChatID); !errors.Is(err, ErrNotRoomMember) {
		t.Fatalf("GetMessageHistory(non-member) error = %v, want ErrNotRoomMember", err)
	}
	if _, err := f.im.GetMessageHistory(ctx, f.alice.ID, "missing"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("GetMessageHistory(missing) error = %v, want ErrRoomNotFound", err)
	}

	empty, err := f.im.GetHistoryWith(ctx, carol.ID, f.alice.ID)
	if err != nil {
		t.Fatalf("GetHistoryWith() error = %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("GetHistoryWith() = %+v, want empty", empty)
	}
	if _, err := f.im.GetHistoryWith(ctx, f.alice.ID, uuid.NewString()); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("GetHistoryWith(unknown) error = %v, want ErrUserNotFound", err)
	}
	var count int64
	f.db.Model(&model.ChatRoom{}).Count(&count)
	if count != 1 {
		t.Fatalf("history lookup created a room: count = %d", count)
	}
}

func TestIMService_PublicChannel(t *testing.T) {
	f := newIMFixture(t, nil)
	ctx := context.Background()

	bobSession := testutil.NewFakeSession(f.bob.ID)
	if err := f.presence.Connect(ctx, bobSession); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := f.im.AnnounceJoin(ctx, json.RawMessage(`{"sender":"alice","type":"JOIN"}`)); err != nil {
		t.Fatalf("AnnounceJoin() error = %v", err)
	}
	if err := f.im.BroadcastPublic(ctx, "hello all", "alice"); err != nil {
		t.Fatalf("BroadcastPublic() error = %v", err)
	}
	if err := f.im.AnnounceJoin(ctx, json.RawMessage(`{broken`)); !errors.Is(err, ErrParamInvalid) {
		t.Fatalf("AnnounceJoin(invalid) error = %v, want ErrParamInvalid", err)
	}

	// 事件循环串行处理，Snapshot 返回时之前的广播已投递完成
	if _, err := f.presence.Snapshot(ctx); err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	public := bobSession.OnChannel(consts.ChannelPublic)
	if len(public) != 2 {
		t.Fatalf("public frames = %d, want 2", len(public))
	}
	var join map[string]string
	_ = public[0].Decode(&join)
	if join["type"] != "JOIN" {
		t.Fatalf("join payload = %v", join)
	}
	var pub dto.PublicMessageReq
	_ = public[1].Decode(&pub)
	if pub.Message != "hello all" || pub.Sender != "alice" {
		t.Fatalf("public payload = %+v", pub)
	}
	if n := len(f.messages.All()); n != 0 {
		t.Fatalf("public messages must not be persisted, got %d", n)
	}
}
