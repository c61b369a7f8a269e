package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/answerhive/answerhive_api/dto"
	"github.com/answerhive/answerhive_api/shared"
)

type BillingHandler struct {
	billingSvc BillingServiceInterface
}

func NewBillingHandler(billingSvc BillingServiceInterface) *BillingHandler {
	return &BillingHandler{billingSvc: billingSvc}
}

// @Summary Billing webhook
// @Description Receive subscription lifecycle events from the payment provider
// @Tags billing
// @Accept json
// @Produce json
// @Param event body dto.BillingEvent true "Billing event"
// @Success 200 {object} shared.Response
// @Router /api/v1/billing/webhook [post]
func (h *BillingHandler) Webhook(c *fiber.Ctx) error {
	var event dto.BillingEvent
	if err := c.BodyParser(&event); err != nil {
		return shared.NewBadRequestError(err, "Invalid event payload")
	}

	if err := event.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	if err := h.billingSvc.HandleEvent(event); err != nil {
		return err
	}

	return shared.ResponseOK(c, nil)
}
