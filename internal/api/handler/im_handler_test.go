package handler_test

import (
	"ChatApp/internal/api/dto"
	"ChatApp/internal/testutil"
	"net/http"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

func TestIMHandler_ConversationsAndHistory(t *testing.T) {
	f := newFixture(t)
	alice := testutil.CreateUser(t, f.db, "alice")
	bob := testutil.CreateUser(t, f.db, "bob")
	carol := testutil.CreateUser(t, f.db, "carol")

	aliceConn := f.dial(t, alice)
	for _, content := range []string{"first", "second"} {
		writeFrame(t, aliceConn, "send-private-message", map[string]any{"receiverId": bob.ID, "content": content})
	}
	testutil.WaitFor(t, 2*time.Second, func() bool { return len(f.messages.All()) == 2 })

	env := f.call(t, http.MethodGet, "/api/im/conversations", f.token(t, bob), nil)
	var conversations []dto.ConversationDTO
	if err := json.Unmarshal(env.Data, &conversations); err != nil {
		t.Fatalf("decode conversations: %v (%s)", err, env.Data)
	}
	if len(conversations) != 1 {
		t.Fatalf("conversations = %+v, want 1", conversations)
	}
	conv := conversations[0]
	if conv.OtherUserID != alice.ID || conv.LastMessage != "second" || conv.LastMessageSenderID != alice.ID {
		t.Errorf("conversation = %+v", conv)
	}
	if !conv.Online {
		t.Errorf("alice should be reported online")
	}

	env = f.call(t, http.MethodGet, "/api/im/rooms/"+conv.ChatID+"/messages", f.token(t, bob), nil)
	var messages []dto.MessageDTO
	if err := json.Unmarshal(env.Data, &messages); err != nil {
		t.Fatalf("decode messages: %v", err)
	}
	if len(messages) != 2 || messages[0].Content != "first" || messages[1].Content != "second" {
		t.Errorf("room messages = %+v", messages)
	}

	if env = f.call(t, http.MethodGet, "/api/im/rooms/"+conv.ChatID+"/messages", f.token(t, carol), nil); env.Code != 403 {
		t.Errorf("non-member code = %d, want 403", env.Code)
	}
	if env = f.call(t, http.MethodGet, "/api/im/rooms/no-such-room/messages", f.token(t, bob), nil); env.Code != 404 {
		t.Errorf("missing room code = %d, want 404", env.Code)
	}

	env = f.call(t, http.MethodGet, "/api/im/history/"+bob.ID, f.token(t, alice), nil)
	messages = nil
	if err := json.Unmarshal(env.Data, &messages); err != nil || len(messages) != 2 {
		t.Errorf("history with bob = %s", env.Data)
	}

	env = f.call(t, http.MethodGet, "/api/im/history/"+carol.ID, f.token(t, alice), nil)
	messages = nil
	if err := json.Unmarshal(env.Data, &messages); err != nil || len(messages) != 0 || env.Code != 200 {
		t.Errorf("history with carol = %s (code %d)", env.Data, env.Code)
	}

	if env = f.call(t, http.MethodGet, "/api/im/history/"+uuid.NewString(), f.token(t, alice), nil); env.Code != 404 {
		t.Errorf("history with unknown user code = %d, want 404", env.Code)
	}
}

func TestIMHandler_OnlineSnapshot(t *testing.T) {
	f := newFixture(t)
	alice := testutil.CreateUser(t, f.db, "alice")
	bob := testutil.CreateUser(t, f.db, "bob")
	f.dial(t, bob)

	env := f.call(t, http.MethodGet, "/api/im/online", f.token(t, alice), nil)
	var users []dto.PresenceUserDTO
	if err := json.Unmarshal(env.Data, &users); err != nil {
		t.Fatalf("decode online: %v", err)
	}
	if len(users) != 1 || users[0].ID != bob.ID || !users[0].Online {
		t.Errorf("online = %+v, want only bob", users)
	}
}
