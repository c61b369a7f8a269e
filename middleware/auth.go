package middleware

import (
	"net/http"

	"github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"

	"github.com/answerhive/answerhive_api/services"
	"github.com/answerhive/answerhive_api/shared"
)

type AuthMiddleware struct {
	context.DefaultService

	postgresSvc *services.PostgresService
	jwtSvc      *services.JWTService
}

func (svc AuthMiddleware) Id() string {
	return services.AUTH_GUARD_SVC
}

func (svc *AuthMiddleware) Start() error {
	svc.postgresSvc = svc.Service(services.POSTGRES_SVC).(*services.PostgresService)
	svc.jwtSvc = svc.Service(services.JWT_SVC).(*services.JWTService)
	return nil
}

func (svc *AuthMiddleware) RequiredAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		token, err := svc.jwtSvc.ExtractTokenFromHeader(authHeader)
		if err != nil {
			return shared.ResponseJSON(c, http.StatusUnauthorized, "Unauthorized", err.Error())
		}

		userID, err := svc.jwtSvc.VerifyJWTToken(token)
		if err != nil {
			return shared.ResponseJSON(c, http.StatusUnauthorized, "Unauthorized", "Invalid JWT token")
		}

		if userID == "" {
			return shared.ResponseJSON(c, http.StatusUnauthorized, "Unauthorized", "Invalid user ID in token")
		}

		c.Locals(shared.UserID, userID)
		return c.Next()
	}
}

// RequireRole layers on top of RequiredAuth for the operator-only surface.
func (svc *AuthMiddleware) RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := c.Locals(shared.UserID).(string)
		if !ok || userID == "" {
			return shared.ResponseJSON(c, http.StatusUnauthorized, "Unauthorized", "Authentication required")
		}

		user, err := svc.postgresSvc.GetUser(userID)
		if err != nil {
			return shared.NewUnauthorizedError(err, "User not found")
		}

		if user.Role != role {
			return shared.ResponseJSON(c, http.StatusForbidden, "Forbidden", "Insufficient permissions")
		}

		return c.Next()
	}
}
