package model

import (
	"time"

	"github.com/answerhive/answerhive_api/shared"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is a subscriber account: the tenant owning an assistant, its widget
// and its conversations.
type User struct {
	ID           string `json:"id" gorm:"primaryKey;type:text;not null"`
	Email        string `json:"email" gorm:"uniqueIndex;not null;size:255"`
	PasswordHash string `json:"-" gorm:"not null"`
	Role         string `json:"role" gorm:"default:user;not null;size:20"`

	// Billing collaborator fields. The subscription state machine itself
	// lives in the payment provider; we only mirror the outcome.
	StripeCustomerID   string `json:"stripe_customer_id,omitempty" gorm:"size:255"`
	PlanCode           string `json:"plan_code,omitempty" gorm:"size:255"`
	SubscriptionStatus string `json:"subscription_status" gorm:"default:incomplete;not null;size:20"`
	QueriesRemaining   int    `json:"queries_remaining" gorm:"default:0;not null"`

	EmailNotificationsEnabled bool `json:"email_notifications_enabled" gorm:"default:true;not null"`

	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

// PlanQueryLimits maps plan names to the monthly query allowance.
var PlanQueryLimits = map[string]int{
	shared.PlanTest:     100,
	shared.PlanBasic:    1000,
	shared.PlanStandard: 5000,
	shared.PlanPro:      10000,
}

// PlanName resolves the provider price code to a human plan name.
// Price codes are environment-specific, so the mapping is injected.
func (u *User) PlanName(priceCodes map[string]string) string {
	if name, ok := priceCodes[u.PlanCode]; ok {
		return name
	}
	return "No Plan"
}

func (u *User) QueryLimit(priceCodes map[string]string) int {
	return PlanQueryLimits[u.PlanName(priceCodes)]
}

// CanMakeQuery gates turn processing: quota left and an active subscription.
func (u *User) CanMakeQuery() bool {
	return u.QueriesRemaining > 0 && u.SubscriptionStatus == shared.SubscriptionActive
}

// AssistantName is the per-tenant upstream assistant identifier.
func (u *User) AssistantName() string {
	return "assistant-" + u.ID
}
