package handler

import (
	"ChatApp/internal/pkg/response"
	"ChatApp/internal/service"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// bindJSON 绑定请求体，非校验类错误统一视为参数错误
func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			err = service.ErrParamInvalid
		}
		response.Error(c, err)
		return false
	}
	return true
}
