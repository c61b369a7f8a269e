package dto

import "time"

// RateLimitInfo is returned by the throttle engine alongside the
// allow/deny decision; the middleware turns it into response headers.
type RateLimitInfo struct {
	Allowed   bool       `json:"allowed"`
	Rule      string     `json:"rule,omitempty"`
	Remaining int64      `json:"remaining"`
	ResetTime *time.Time `json:"reset_time,omitempty"`
}

// RuleTrippedEvent is published when a throttle rule rejects a request.
// The auto-block listener consumes these.
type RuleTrippedEvent struct {
	RuleName      string    `json:"rule_name"`
	Discriminator string    `json:"discriminator"`
	MatchType     string    `json:"match_type"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type RuleStats struct {
	Name   string `json:"name"`
	Limit  int64  `json:"limit"`
	Period int    `json:"period_seconds"`
}

type ThrottleStatsResponse struct {
	Rules     []RuleStats `json:"rules"`
	Timestamp time.Time   `json:"timestamp"`
}

type UnblockRequest struct {
	IdentifierType string `json:"identifier_type" validate:"required,oneof=ip visitor"`
	Identifier     string `json:"identifier" validate:"required"`
}

func (r UnblockRequest) Validate() error {
	return validate.Struct(r)
}
