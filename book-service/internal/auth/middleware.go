package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/azaliaz/bookcatalog/book-service/internal/domain/consts"
	"github.com/azaliaz/bookcatalog/book-service/internal/domain/models"
)

const principalKey = "principal"

// Middleware attaches the caller's principal to the gin context. Requests
// without an Authorization header continue as anonymous; malformed or wrong
// credentials are rejected.
func Middleware(dir *Directory, issuer *Issuer) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		if header == "" {
			ctx.Next()
			return
		}

		scheme, _, _ := strings.Cut(header, " ")
		var (
			principal models.Principal
			err       error
		)
		switch strings.ToLower(scheme) {
		case "basic":
			username, password, ok := ctx.Request.BasicAuth()
			if !ok {
				Unauthorized(ctx, "Invalid authorization header")
				return
			}
			principal, err = dir.Authenticate(username, password)
		case "bearer":
			principal, err = issuer.Parse(strings.TrimSpace(header[len(scheme):]))
		default:
			Unauthorized(ctx, "Unsupported authorization scheme")
			return
		}
		if err != nil {
			Unauthorized(ctx, err.Error())
			return
		}

		ctx.Set(principalKey, principal)
		ctx.Next()
	}
}

// RequireAuthenticated rejects anonymous callers.
func RequireAuthenticated() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !PrincipalFrom(ctx).Authenticated() {
			Unauthorized(ctx, "Authentication is required")
			return
		}
		ctx.Next()
	}
}

func PrincipalFrom(ctx *gin.Context) models.Principal {
	if v, ok := ctx.Get(principalKey); ok {
		if p, ok := v.(models.Principal); ok {
			return p
		}
	}
	return models.Principal{}
}

func WithPrincipal(ctx *gin.Context, p models.Principal) {
	ctx.Set(principalKey, p)
}

func Unauthorized(ctx *gin.Context, message string) {
	ctx.Header("WWW-Authenticate", `Basic realm="book-service"`)
	ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": consts.CategoryUnauthorized, "message": message})
}
