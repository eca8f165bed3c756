package handler

import (
	"ChatApp/internal/pkg/consts"
	"ChatApp/internal/pkg/response"
	"ChatApp/internal/service"

	"github.com/gin-gonic/gin"
)

type IMHandler struct {
	imService    service.IMService
	conversation service.ConversationService
	presence     service.PresenceService
}

func NewIMHandler(imService service.IMService, conversation service.ConversationService, presence service.PresenceService) *IMHandler {
	return &IMHandler{
		imService:    imService,
		conversation: conversation,
		presence:     presence,
	}
}

// GetConversationList 当前用户的会话列表，按最后一条消息时间倒序
func (s *IMHandler) GetConversationList(c *gin.Context) {
	list, err := s.conversation.ListConversations(c.Request.Context(), c.GetString(consts.CtxUserID))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, list)
}

// GetRoomMessages 会话内全部消息，仅会话成员可读
func (s *IMHandler) GetRoomMessages(c *gin.Context) {
	messages, err := s.imService.GetMessageHistory(c.Request.Context(), c.GetString(consts.CtxUserID), c.Param("room_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, messages)
}

// GetChatHistory 与指定用户的历史消息
func (s *IMHandler) GetChatHistory(c *gin.Context) {
	messages, err := s.imService.GetHistoryWith(c.Request.Context(), c.GetString(consts.CtxUserID), c.Param("user_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, messages)
}

// GetOnlineUsers 当前在线用户快照
func (s *IMHandler) GetOnlineUsers(c *gin.Context) {
	users, err := s.presence.Snapshot(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, users)
}
