package handler

import (
	"ChatApp/internal/api/dto"
	"ChatApp/internal/api/middleware"
	"ChatApp/internal/pkg/consts"
	"ChatApp/internal/pkg/response"
	"ChatApp/internal/service"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userSvc service.UserService
}

func NewUserHandler(userSvc service.UserService) *UserHandler {
	return &UserHandler{userSvc: userSvc}
}

func (s *UserHandler) Register(c *gin.Context) {
	var registerDTO dto.RegisterDTO
	if !bindJSON(c, &registerDTO) {
		return
	}
	auth, err := s.userSvc.Register(c.Request.Context(), &registerDTO)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, auth)
}

func (s *UserHandler) Login(c *gin.Context) {
	var loginDTO dto.CredentialDTO
	if !bindJSON(c, &loginDTO) {
		return
	}
	auth, err := s.userSvc.Login(c.Request.Context(), &loginDTO)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, auth)
}

func (s *UserHandler) Logout(c *gin.Context) {
	if err := s.userSvc.Logout(c.Request.Context(), middleware.CurrentIdentity(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

func (s *UserHandler) GetUser(c *gin.Context) {
	user, err := s.userSvc.GetUser(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, user)
}

// GetSelf 当前登录用户
func (s *UserHandler) GetSelf(c *gin.Context) {
	user, err := s.userSvc.GetUser(c.Request.Context(), c.GetString(consts.CtxUserID))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, user)
}

func (s *UserHandler) ListUsers(c *gin.Context) {
	users, err := s.userSvc.ListUsers(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, users)
}

// SearchUser 按用户名或姓名搜索，排除自己
func (s *UserHandler) SearchUser(c *gin.Context) {
	var req dto.SearchUserDTO
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	users, err := s.userSvc.SearchUsers(c.Request.Context(), c.GetString(consts.CtxUserID), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, users)
}

func (s *UserHandler) UpdateProfile(c *gin.Context) {
	var req dto.UpdateProfileDTO
	if !bindJSON(c, &req) {
		return
	}
	user, err := s.userSvc.UpdateProfile(c.Request.Context(), c.GetString(consts.CtxUserID), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, user)
}

func (s *UserHandler) ChangePassword(c *gin.Context) {
	var req dto.ChangePasswordDTO
	if !bindJSON(c, &req) {
		return
	}
	if err := s.userSvc.ChangePassword(c.Request.Context(), c.GetString(consts.CtxUserID), &req); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

func (s *UserHandler) UploadAvatar(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil || file == nil {
		response.Fail(c, response.BadRequest, service.ErrParamInvalid.Error())
		return
	}
	if file.Size > consts.MaxAvatarSize {
		response.Error(c, service.ErrFileTooLarge)
		return
	}

	reader, err := file.Open()
	if err != nil {
		response.Error(c, err)
		return
	}
	defer func() {
		_ = reader.Close()
	}()

	// 以文件内容判断类型，不信任客户端声明
	head := make([]byte, 512)
	n, err := io.ReadFull(reader, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	contentType := http.DetectContentType(head[:n])
	if _, err = reader.Seek(0, io.SeekStart); err != nil {
		response.Error(c, err)
		return
	}

	user, err := s.userSvc.UpdateAvatar(c.Request.Context(), c.GetString(consts.CtxUserID), reader, file.Size, contentType)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, user)
}

func (s *UserHandler) DeleteAvatar(c *gin.Context) {
	if err := s.userSvc.DeleteAvatar(c.Request.Context(), c.GetString(consts.CtxUserID)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
