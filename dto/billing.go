package dto

// BillingEvent is the narrow webhook contract with the payment provider.
// Only the event types the quota logic cares about are modeled; everything
// else is acknowledged and ignored.
type BillingEvent struct {
	Type          string `json:"type" validate:"required"`
	CustomerEmail string `json:"customer_email" validate:"required,email"`
	PlanCode      string `json:"plan_code"`
}

func (r BillingEvent) Validate() error {
	return validate.Struct(r)
}

const (
	BillingPaymentSucceeded = "invoice.payment_succeeded"
	BillingPaymentFailed    = "invoice.payment_failed"
)
