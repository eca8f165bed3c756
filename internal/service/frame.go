package service

import (
	"ChatApp/internal/api/dto"

	"github.com/goccy/go-json"
)

// EncodeFrame 编码出站 websocket 帧
func EncodeFrame(channel string, payload any) ([]byte, error) {
	return json.Marshal(&dto.OutboundFrame{Channel: channel, Payload: payload})
}
