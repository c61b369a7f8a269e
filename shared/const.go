package shared

const (
	UserID = "user_id"

	IdentifierTypeIP      = "ip"
	IdentifierTypeVisitor = "visitor"

	SubscriptionActive     = "active"
	SubscriptionInactive   = "inactive"
	SubscriptionIncomplete = "incomplete"

	PlanTest     = "Test"
	PlanBasic    = "Basic"
	PlanStandard = "Standard"
	PlanPro      = "Pro"
)
