package handler

import (
	"ChatApp/internal/api/dto"
	"ChatApp/internal/pkg/consts"
	"ChatApp/internal/service"
	"context"
	"errors"
	log "log/slog"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var errUnknownDestination = errors.New("unknown destination")

// wsClient 一条已认证的 websocket 连接，身份在握手时确定且不可变
type wsClient struct {
	conn      *websocket.Conn
	userID    string
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newWsClient(conn *websocket.Conn, userID string, buffer int) *wsClient {
	return &wsClient{
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, buffer),
		done:   make(chan struct{}),
	}
}

func (c *wsClient) UserID() string {
	return c.userID
}

// Send 不阻塞；send 通道永不关闭，关闭信号只走 done
func (c *wsClient) Send(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

func (c *wsClient) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// writePump 是唯一写连接的 goroutine
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Debug("ws write failed", "user_id", c.userID, "err", err)
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// readPump 读取并分发入站帧，返回即代表连接结束
func (c *wsClient) readPump(ctx context.Context, h *WsHandler) {
	defer func() {
		h.presence.Disconnect(ctx, c)
		c.Close()
	}()

	c.conn.SetReadLimit(h.maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WarnContext(ctx, "ws closed unexpectedly", "user_id", c.userID, "err", err)
			}
			return
		}
		c.dispatch(ctx, h, data)
	}
}

func (c *wsClient) dispatch(ctx context.Context, h *WsHandler, data []byte) {
	var frame dto.InboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.reject(ctx, service.ErrParamInvalid)
		return
	}

	var err error
	switch frame.Destination {
	case consts.DestSendPrivateMessage:
		var req dto.PrivateMessageReq
		if err = json.Unmarshal(frame.Payload, &req); err != nil {
			err = service.ErrParamInvalid
			break
		}
		// 发送者永远取连接身份，载荷中的 senderId 被忽略
		_, err = h.im.Route(ctx, c.userID, req.ReceiverID, req.Content)
	case consts.DestAnnounceJoin:
		err = h.im.AnnounceJoin(ctx, frame.Payload)
	case consts.DestBroadcastPublic:
		var req dto.PublicMessageReq
		if err = json.Unmarshal(frame.Payload, &req); err != nil {
			err = service.ErrParamInvalid
			break
		}
		err = h.im.BroadcastPublic(ctx, req.Message, req.Sender)
	default:
		err = errUnknownDestination
	}

	if err != nil {
		c.reject(ctx, err)
	}
}

// reject 通过 /user/queue/errors 告知客户端帧被拒绝
func (c *wsClient) reject(ctx context.Context, err error) {
	errFrame := &dto.ErrorFrameDTO{Code: service.BadRequest, Message: err.Error()}
	if !errors.Is(err, errUnknownDestination) {
		code, ok := service.CodeOf(err)
		errFrame.Code = code
		if !ok {
			log.ErrorContext(ctx, "ws frame failed", "user_id", c.userID, "err", err)
			errFrame.Message = service.UnExpectedError.Error()
		}
	}

	frame, encErr := service.EncodeFrame(consts.ChannelErrors, errFrame)
	if encErr != nil {
		return
	}
	if !c.Send(frame) {
		log.WarnContext(ctx, "error frame dropped", "user_id", c.userID)
	}
}
