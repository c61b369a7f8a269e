package services

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"

	appContext "github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	log "github.com/sirupsen/logrus"

	"github.com/answerhive/answerhive_api/model"
	"github.com/answerhive/answerhive_api/services/handlers"
	"github.com/answerhive/answerhive_api/shared"
)

// AUTH_GUARD_SVC identifies the JWT middleware service. The constant lives
// here so the middleware package's dependency on services stays one-way.
const AUTH_GUARD_SVC = "auth"

// AuthGuard is the slice of the middleware service the router needs.
type AuthGuard interface {
	RequiredAuth() fiber.Handler
	RequireRole(role string) fiber.Handler
}

type HttpService struct {
	appContext.DefaultService

	chatSvc      *ChatService
	authSvc      *AuthService
	postgresSvc  *PostgresService
	throttleSvc  *ThrottleService
	blocklistSvc *BlocklistService
	documentSvc  *DocumentService
	billingSvc   *BillingService

	port   int
	server *fiber.App
}

const HTTP_SVC = "http_svc"

func (svc HttpService) Id() string {
	return HTTP_SVC
}

func (svc *HttpService) Configure(ctx *appContext.Context) error {
	if port := os.Getenv("HTTP_PORT"); port != "" {
		var err error
		if svc.port, err = strconv.Atoi(port); err != nil {
			return err
		}
	} else {
		svc.port = 8000
	}

	return svc.DefaultService.Configure(ctx)
}

func (svc *HttpService) Start() error {
	svc.chatSvc = svc.Service(CHAT_SVC).(*ChatService)
	svc.authSvc = svc.Service(AUTH_SVC).(*AuthService)
	svc.postgresSvc = svc.Service(POSTGRES_SVC).(*PostgresService)
	svc.throttleSvc = svc.Service(THROTTLE_SVC).(*ThrottleService)
	svc.blocklistSvc = svc.Service(BLOCKLIST_SVC).(*BlocklistService)
	svc.documentSvc = svc.Service(DOCUMENT_SVC).(*DocumentService)
	svc.billingSvc = svc.Service(BILLING_SVC).(*BillingService)
	monitoringSvc := svc.Service(MONITORING_SVC).(*MonitoringService)
	authGuard := svc.Service(AUTH_GUARD_SVC).(AuthGuard)

	app := fiber.New(fiber.Config{
		AppName:      "answerhive_api",
		JSONEncoder:  shared.JSONMarshal,
		JSONDecoder:  shared.JSONUnmarshal,
		ErrorHandler: svc.handleError,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	app.Use(MonitoringMiddleware(monitoringSvc))

	// Block flags come first so a blocked visitor never touches a counter.
	app.Use(svc.blocklistSvc.Middleware())
	app.Use(svc.throttleSvc.Middleware())

	app.Get("/ping", svc.ping)
	app.Get("/swagger/*", swagger.HandlerDefault)

	chatHandler := handlers.NewChatHandler(svc.chatSvc)
	authHandler := handlers.NewAuthHandler(svc.authSvc)
	adminHandler := handlers.NewAdminHandler(svc.postgresSvc, svc.throttleSvc, svc.blocklistSvc, svc.authSvc)
	documentHandler := handlers.NewDocumentHandler(svc.documentSvc)
	billingHandler := handlers.NewBillingHandler(svc.billingSvc)

	v1 := app.Group("/api/v1")
	v1.Get("/ping", svc.ping)

	// Widget surface, unauthenticated
	v1.Post("/chat", chatHandler.Create)
	v1.Get("/chat/:id/last_messages", chatHandler.LastMessages)

	v1.Post("/auth/register", authHandler.Register)
	v1.Post("/auth/login", authHandler.Login)

	v1.Post("/billing/webhook", billingHandler.Webhook)

	admin := v1.Group("/admin", authGuard.RequiredAuth())
	admin.Get("/me", adminHandler.Me)

	admin.Get("/conversations", adminHandler.ListConversations)
	admin.Get("/conversations/review", adminHandler.ReviewQueue)
	admin.Get("/conversations/:id", adminHandler.GetConversation)
	admin.Post("/conversations/flag", adminHandler.FlagConversations)
	admin.Post("/conversations/resolve", adminHandler.ResolveConversations)
	admin.Post("/conversations/dismiss", adminHandler.DismissConversations)
	admin.Post("/conversations/delete", adminHandler.DeleteConversations)

	// Block flags are keyed by visitor fingerprint across all tenants, so
	// the mitigation controls are operator-only.
	throttle := admin.Group("/throttle", authGuard.RequireRole(model.RoleAdmin))
	throttle.Get("/stats", adminHandler.ThrottleStats)
	throttle.Get("/blocked", adminHandler.BlockStatus)
	throttle.Post("/unblock", adminHandler.Unblock)

	admin.Post("/documents", documentHandler.Upload)
	admin.Get("/documents", documentHandler.List)
	admin.Delete("/documents/:name", documentHandler.Delete)
	admin.Get("/documents/:name/url", documentHandler.DownloadURL)

	admin.Post("/widget", adminHandler.WidgetCode)

	svc.server = app

	log.WithField("port", svc.port).Info("HTTP server starting")
	return app.Listen(fmt.Sprintf(":%v", svc.port))
}

func (svc *HttpService) Shutdown() {
	if svc.server != nil {
		_ = svc.server.Shutdown()
	}
}

// @Summary Ping
// @Description This endpoint checks the health of the service
// @Tags health
// @Accept  json
// @Produce json
// @Success 200 {object} shared.Response{data=string}
// @Router /ping [get]
func (svc *HttpService) ping(c *fiber.Ctx) error {
	c.Set("Cache-Control", "max-age=10")

	return shared.ResponseJSON(c, http.StatusOK, "Success", "pong")
}

func (svc *HttpService) handleError(c *fiber.Ctx, err error) error {
	if appErr, ok := shared.GetAppError(err); ok {
		return shared.ResponseJSON(c, appErr.StatusCode, appErr.Message, appErr.Data)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return shared.ResponseJSON(c, fiberErr.Code, fiberErr.Message, nil)
	}

	return shared.ResponseInternalError(c, err)
}
