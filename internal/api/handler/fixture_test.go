package handler_test

import (
	"ChatApp/internal/api"
	"ChatApp/internal/api/config"
	"ChatApp/internal/api/handler"
	"ChatApp/internal/model"
	"ChatApp/internal/pkg/kafka"
	"ChatApp/internal/pkg/security"
	"ChatApp/internal/repository"
	"ChatApp/internal/service"
	"ChatApp/internal/testutil"
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"
)

const (
	testSecret = "handler-test-secret"
	testIssuer = "chatapp-test"
)

type fixture struct {
	db       *gorm.DB
	verifier *security.Verifier
	presence service.PresenceService
	messages *testutil.MemoryMessageRepo
	storage  *testutil.MemoryStorage
	server   *httptest.Server
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewTestDB(t)
	userRepo := repository.NewUserRepo(db)
	roomRepo := repository.NewChatRoomRepo(db)
	verifier := security.NewVerifier(testSecret, testIssuer, time.Hour, testutil.NewMemoryRevocations())
	messages := testutil.NewMemoryMessageRepo()
	storage := testutil.NewMemoryStorage()

	presence := service.NewPresenceService(userRepo)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		_ = presence.Run(ctx)
		close(stopped)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})

	userSvc := service.NewUserService(userRepo, verifier, storage)
	imSvc := service.NewIMService(userRepo, service.NewRoomService(roomRepo), messages, presence, kafka.NopPublisher{})
	convSvc := service.NewConversationService(userRepo, roomRepo, messages)

	router := api.SetupRouter(&api.HandlersGroup{
		Verifier:    verifier,
		UserHandler: handler.NewUserHandler(userSvc),
		IMHandler:   handler.NewIMHandler(imSvc, convSvc, presence),
		WSHandler: handler.NewWsHandler(verifier, userSvc, presence, imSvc,
			config.WebSocketConfig{SendBuffer: 64, MaxMessageSize: 8192}, nil),
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &fixture{
		db:       db,
		verifier: verifier,
		presence: presence,
		messages: messages,
		storage:  storage,
		server:   server,
	}
}

func (f *fixture) token(t *testing.T, user *model.User) string {
	t.Helper()
	token, err := f.verifier.Issue(user.ID, user.Email)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return token
}

// call 发送 JSON 请求并解码统一返回结构
func (f *fixture) call(t *testing.T, method, path, token string, body any) envelope {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, f.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return f.send(t, req, token)
}

func (f *fixture) send(t *testing.T, req *http.Request, token string) envelope {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var env envelope
	if err = json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode %s %s: %v", req.Method, req.URL.Path, err)
	}
	return env
}

func (f *fixture) wsURL() string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http") + "/api/im/ws"
}

// dial 建立连接并等待自己的上线事件，确保已登记到在线表
func (f *fixture) dial(t *testing.T, user *model.User) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	header.Set("Authorization", "Bearer "+f.token(t, user))

	conn, resp, err := websocket.DefaultDialer.Dial(f.wsURL(), header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial as %s: %v (status %d)", user.Username, err, status)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})

	waitStatus(t, conn, user.ID, true)
	return conn
}

type wsFrame struct {
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload"`
}

// readUntil 读取帧直到 match 返回 true
func readUntil(t *testing.T, conn *websocket.Conn, match func(wsFrame) bool) wsFrame {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read frame: %v", err)
		}
		var frame wsFrame
		if err = json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("invalid frame %s: %v", data, err)
		}
		if match(frame) {
			return frame
		}
	}
}

func readChannel(t *testing.T, conn *websocket.Conn, channel string) wsFrame {
	t.Helper()
	return readUntil(t, conn, func(f wsFrame) bool { return f.Channel == channel })
}

func waitStatus(t *testing.T, conn *websocket.Conn, userID string, online bool) {
	t.Helper()
	readUntil(t, conn, func(f wsFrame) bool {
		if f.Channel != "/topic/status" {
			return false
		}
		var status struct {
			UserID   string `json:"userId"`
			IsOnline bool   `json:"isOnline"`
		}
		_ = json.Unmarshal(f.Payload, &status)
		return status.UserID == userID && status.IsOnline == online
	})
}

func writeFrame(t *testing.T, conn *websocket.Conn, destination string, payload any) {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"destination": destination, "payload": payload})
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	if err = conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}
