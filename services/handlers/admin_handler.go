package handlers

import (
	"fmt"
	"html"
	"os"

	"github.com/gofiber/fiber/v2"

	"github.com/answerhive/answerhive_api/dto"
	"github.com/answerhive/answerhive_api/shared"
)

// AdminHandler is the owner console surface: conversation management, the
// review queue, abuse-mitigation controls and the widget snippet generator.
// Everything here sits behind the JWT middleware.
type AdminHandler struct {
	conversationSvc ConversationAdminInterface
	throttleSvc     ThrottleAdminInterface
	blocklistSvc    BlocklistAdminInterface
	authSvc         AuthServiceInterface
}

func NewAdminHandler(conversationSvc ConversationAdminInterface, throttleSvc ThrottleAdminInterface, blocklistSvc BlocklistAdminInterface, authSvc AuthServiceInterface) *AdminHandler {
	return &AdminHandler{
		conversationSvc: conversationSvc,
		throttleSvc:     throttleSvc,
		blocklistSvc:    blocklistSvc,
		authSvc:         authSvc,
	}
}

func userIDFromLocals(c *fiber.Ctx) string {
	userID, _ := c.Locals(shared.UserID).(string)
	return userID
}

// @Summary Current account
// @Description Profile and subscription state for the authenticated owner
// @Tags admin
// @Produce json
// @Security Bearer
// @Success 200 {object} shared.Response{data=dto.UserInfo}
// @Router /api/v1/admin/me [get]
func (h *AdminHandler) Me(c *fiber.Ctx) error {
	user, err := h.conversationSvc.GetUser(userIDFromLocals(c))
	if err != nil {
		return err
	}

	return shared.ResponseOK(c, dto.UserInfo{
		ID:                 user.ID,
		Email:              user.Email,
		Role:               user.Role,
		PlanName:           user.PlanName(h.authSvc.PriceCodes()),
		SubscriptionStatus: user.SubscriptionStatus,
		QueriesRemaining:   user.QueriesRemaining,
	})
}

// @Summary List conversations
// @Description List the account's conversations with optional full-text search
// @Tags admin
// @Produce json
// @Security Bearer
// @Param search query string false "Search term"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} shared.Response{data=dto.ConversationListResponse}
// @Router /api/v1/admin/conversations [get]
func (h *AdminHandler) ListConversations(c *fiber.Ctx) error {
	req := dto.ConversationListRequest{
		Search: c.Query("search"),
		Page:   c.QueryInt("page", 1),
		Limit:  c.QueryInt("limit", 25),
	}
	if err := req.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	conversations, total, err := h.conversationSvc.ListConversations(userIDFromLocals(c), req.Search, req.Page, req.Limit)
	if err != nil {
		return err
	}

	return shared.ResponseOK(c, dto.ConversationListResponse{
		Conversations: conversations,
		Total:         total,
		Page:          req.Page,
		Limit:         req.Limit,
	})
}

// @Summary Get a conversation
// @Description Fetch one conversation with its full turn history
// @Tags admin
// @Produce json
// @Security Bearer
// @Param id path string true "Conversation ID"
// @Success 200 {object} shared.Response
// @Router /api/v1/admin/conversations/{id} [get]
func (h *AdminHandler) GetConversation(c *fiber.Ctx) error {
	conversation, err := h.conversationSvc.GetConversation(c.Params("id"))
	if err != nil {
		return err
	}
	if conversation.UserID != userIDFromLocals(c) {
		return shared.NewNotFoundError(nil, "Not Found")
	}

	turns, err := h.conversationSvc.GetConversationTurns(conversation.ID)
	if err != nil {
		return err
	}
	conversation.QueryAndResponses = turns

	return shared.ResponseOK(c, conversation)
}

// @Summary Review queue
// @Description Conversations flagged for review and not yet resolved or dismissed
// @Tags admin
// @Produce json
// @Security Bearer
// @Success 200 {object} shared.Response
// @Router /api/v1/admin/conversations/review [get]
func (h *AdminHandler) ReviewQueue(c *fiber.Ctx) error {
	conversations, err := h.conversationSvc.GetConversationsForReview(userIDFromLocals(c))
	if err != nil {
		return err
	}
	return shared.ResponseOK(c, conversations)
}

func (h *AdminHandler) batchIDs(c *fiber.Ctx) (*dto.ConversationIDsRequest, error) {
	var req dto.ConversationIDsRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, shared.NewBadRequestError(err, "Invalid request")
	}
	return &req, nil
}

// @Summary Flag conversations
// @Tags admin
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body dto.ConversationIDsRequest true "Conversation IDs"
// @Success 200 {object} shared.Response
// @Router /api/v1/admin/conversations/flag [post]
func (h *AdminHandler) FlagConversations(c *fiber.Ctx) error {
	req, err := h.batchIDs(c)
	if err != nil {
		return err
	}
	if err := h.conversationSvc.FlagConversations(userIDFromLocals(c), req.IDs); err != nil {
		return err
	}
	return shared.ResponseOK(c, nil)
}

// @Summary Resolve conversations
// @Tags admin
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body dto.ConversationIDsRequest true "Conversation IDs"
// @Success 200 {object} shared.Response
// @Router /api/v1/admin/conversations/resolve [post]
func (h *AdminHandler) ResolveConversations(c *fiber.Ctx) error {
	req, err := h.batchIDs(c)
	if err != nil {
		return err
	}
	if err := h.conversationSvc.ResolveConversations(userIDFromLocals(c), req.IDs); err != nil {
		return err
	}
	return shared.ResponseOK(c, nil)
}

// @Summary Dismiss conversations
// @Tags admin
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body dto.ConversationIDsRequest true "Conversation IDs"
// @Success 200 {object} shared.Response
// @Router /api/v1/admin/conversations/dismiss [post]
func (h *AdminHandler) DismissConversations(c *fiber.Ctx) error {
	req, err := h.batchIDs(c)
	if err != nil {
		return err
	}
	if err := h.conversationSvc.DismissConversations(userIDFromLocals(c), req.IDs); err != nil {
		return err
	}
	return shared.ResponseOK(c, nil)
}

// @Summary Delete conversations
// @Tags admin
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body dto.ConversationIDsRequest true "Conversation IDs"
// @Success 200 {object} shared.Response
// @Router /api/v1/admin/conversations/delete [post]
func (h *AdminHandler) DeleteConversations(c *fiber.Ctx) error {
	req, err := h.batchIDs(c)
	if err != nil {
		return err
	}
	if err := h.conversationSvc.DeleteConversations(userIDFromLocals(c), req.IDs); err != nil {
		return err
	}
	return shared.ResponseOK(c, nil)
}

// @Summary Throttle stats
// @Description Current throttle rule set
// @Tags admin
// @Produce json
// @Security Bearer
// @Success 200 {object} shared.Response{data=dto.ThrottleStatsResponse}
// @Router /api/v1/admin/throttle/stats [get]
func (h *AdminHandler) ThrottleStats(c *fiber.Ctx) error {
	return shared.ResponseOK(c, h.throttleSvc.Stats())
}

// @Summary Unblock an identifier
// @Description Clear a block flag before its TTL expires
// @Tags admin
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body dto.UnblockRequest true "Identifier to unblock"
// @Success 200 {object} shared.Response
// @Router /api/v1/admin/throttle/unblock [post]
func (h *AdminHandler) Unblock(c *fiber.Ctx) error {
	var req dto.UnblockRequest
	if err := c.BodyParser(&req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	if err := h.blocklistSvc.Unblock(c.Context(), req.IdentifierType, req.Identifier); err != nil {
		return err
	}

	return shared.ResponseOK(c, nil)
}

// @Summary Block status
// @Description Check whether an identifier currently carries a block flag
// @Tags admin
// @Produce json
// @Security Bearer
// @Param type query string true "Identifier type (ip or visitor)"
// @Param id query string true "Identifier"
// @Success 200 {object} shared.Response
// @Router /api/v1/admin/throttle/blocked [get]
func (h *AdminHandler) BlockStatus(c *fiber.Ctx) error {
	req := dto.UnblockRequest{
		IdentifierType: c.Query("type"),
		Identifier:     c.Query("id"),
	}
	if err := req.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	blocked, err := h.blocklistSvc.IsBlocked(c.Context(), req.IdentifierType, req.Identifier)
	if err != nil {
		return err
	}

	return shared.ResponseOK(c, fiber.Map{
		"identifier_type": req.IdentifierType,
		"identifier":      req.Identifier,
		"blocked":         blocked,
	})
}

// @Summary Widget snippet
// @Description Generate the embeddable widget script tag for the account
// @Tags admin
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body dto.WidgetCodeRequest true "Widget options"
// @Success 200 {object} shared.Response{data=dto.WidgetCodeResponse}
// @Router /api/v1/admin/widget [post]
func (h *AdminHandler) WidgetCode(c *fiber.Ctx) error {
	var req dto.WidgetCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	user, err := h.conversationSvc.GetUser(userIDFromLocals(c))
	if err != nil {
		return err
	}

	baseURL := os.Getenv("WIDGET_BASE_URL")
	if baseURL == "" {
		baseURL = os.Getenv("BASE_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}

	snippet := fmt.Sprintf(
		`<script src="%s/chat_widget.js" data-account-email="%s" data-accent-color="%s" data-greeting="%s" defer></script>`,
		baseURL,
		html.EscapeString(user.Email),
		html.EscapeString(req.AccentColor),
		html.EscapeString(req.Greeting),
	)

	return shared.ResponseOK(c, dto.WidgetCodeResponse{Snippet: snippet})
}
