package middleware

import (
	"ChatApp/internal/pkg/consts"
	"ChatApp/internal/pkg/response"
	"ChatApp/internal/pkg/security"
	"context"

	"github.com/gin-gonic/gin"
)

// IdentityVerifier 校验 Bearer Token
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (*security.Identity, error)
}

// AuthMiddleware 负责验证 JWT 并将用户身份信息注入 Context
func AuthMiddleware(verifier IdentityVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := security.ParseBearer(c.GetHeader("Authorization"))
		if !ok {
			response.Fail(c, response.Unauthorized, "missing or malformed token")
			c.Abort()
			return
		}

		identity, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			response.Fail(c, response.Unauthorized, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(consts.CtxUserID, identity.UserID)
		c.Set(consts.CtxEmail, identity.Email)
		c.Set(consts.CtxToken, identity)

		c.Next()
	}
}

// CurrentIdentity 取出 AuthMiddleware 注入的身份
func CurrentIdentity(c *gin.Context) *security.Identity {
	if v, ok := c.Get(consts.CtxToken); ok {
		if identity, ok := v.(*security.Identity); ok {
			return identity
		}
	}
	return nil
}
