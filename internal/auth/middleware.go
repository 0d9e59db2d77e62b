package auth

import (
	"net/http"
	"os"
	"strings"

	"chatplan/internal/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ContextUserKey — ключ, под которым внешний ID пользователя лежит в
// контексте gin после прохождения middleware.
const ContextUserKey = "externalUserID"

func accessSecret() []byte {
	return []byte(os.Getenv("JWT_ACCESS_SECRET"))
}

// Middleware проверяет подпись токена внешнего провайдера идентификации
// и извлекает из него внешний ID пользователя (claim "sub"). Сервис сам
// не проверяет учётные данные.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, response.ErrorResponse{
				Code:    "UNAUTHENTICATED",
				Message: "Unauthorized",
			})
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			return accessSecret(), nil
		})

		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, response.ErrorResponse{
				Code:    "UNAUTHENTICATED",
				Message: "Unauthorized",
			})
			c.Abort()
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.JSON(http.StatusUnauthorized, response.ErrorResponse{
				Code:    "UNAUTHENTICATED",
				Message: "Unauthorized",
			})
			c.Abort()
			return
		}

		externalUserID, ok := claims["sub"].(string)
		if !ok || externalUserID == "" {
			c.JSON(http.StatusUnauthorized, response.ErrorResponse{
				Code:    "UNAUTHENTICATED",
				Message: "Unauthorized",
			})
			c.Abort()
			return
		}

		c.Set(ContextUserKey, externalUserID)
		c.Next()
	}
}
