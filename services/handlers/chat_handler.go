package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/answerhive/answerhive_api/dto"
	"github.com/answerhive/answerhive_api/shared"
)

// ChatHandler serves the embeddable widget. Its responses are flat JSON
// bodies, not the admin envelope, and errors always come back as
// {"error": ...} so the widget has one shape to render.
type ChatHandler struct {
	chatSvc ChatServiceInterface
}

func NewChatHandler(chatSvc ChatServiceInterface) *ChatHandler {
	return &ChatHandler{chatSvc: chatSvc}
}

// @Summary Submit a chat turn
// @Description Send a visitor message to the account's assistant and receive the cleaned response
// @Tags chat
// @Accept json
// @Produce json
// @Param chatRequest body dto.ChatRequest true "Turn submission"
// @Success 200 {object} dto.ChatResponse
// @Failure 400 {object} dto.ChatErrorResponse
// @Router /api/v1/chat [post]
func (h *ChatHandler) Create(c *fiber.Ctx) error {
	var req dto.ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.RawJSON(c, http.StatusBadRequest, dto.ChatErrorResponse{Error: "Invalid request body"})
	}

	if err := req.Validate(); err != nil {
		return shared.RawJSON(c, http.StatusBadRequest, dto.ChatErrorResponse{Error: "Invalid request"})
	}

	resp, err := h.chatSvc.ProcessTurn(c.Context(), req)
	if err != nil {
		return h.widgetError(c, err)
	}

	return shared.RawJSON(c, http.StatusOK, resp)
}

// @Summary Fetch recent conversation history
// @Description Return up to the last 10 turns for a widget session, oldest first
// @Tags chat
// @Produce json
// @Param id path string true "Widget session identifier"
// @Success 200 {object} dto.LastMessagesResponse
// @Router /api/v1/chat/{id}/last_messages [get]
func (h *ChatHandler) LastMessages(c *fiber.Ctx) error {
	resp, err := h.chatSvc.LastMessages(c.Params("id"))
	if err != nil {
		return h.widgetError(c, err)
	}

	return shared.RawJSON(c, http.StatusOK, resp)
}

func (h *ChatHandler) widgetError(c *fiber.Ctx, err error) error {
	if appErr, ok := shared.GetAppError(err); ok {
		return shared.RawJSON(c, appErr.StatusCode, dto.ChatErrorResponse{Error: appErr.Message})
	}

	log.WithError(err).Error("Chat turn failed")
	return shared.RawJSON(c, http.StatusInternalServerError, dto.ChatErrorResponse{
		Error: "Something went wrong. Please try again later.",
	})
}
