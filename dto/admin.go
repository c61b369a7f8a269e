package dto

import (
	"time"

	"github.com/answerhive/answerhive_api/model"
)

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

func (r RegisterRequest) Validate() error {
	return validate.Struct(r)
}

type RegisterResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

func (r LoginRequest) Validate() error {
	return validate.Struct(r)
}

type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        UserInfo  `json:"user"`
}

type UserInfo struct {
	ID                 string `json:"id"`
	Email              string `json:"email"`
	Role               string `json:"role"`
	PlanName           string `json:"plan_name"`
	SubscriptionStatus string `json:"subscription_status"`
	QueriesRemaining   int    `json:"queries_remaining"`
}

type ConversationListRequest struct {
	Search string `json:"search" validate:"max=255"`
	Page   int    `json:"page" validate:"min=0"`
	Limit  int    `json:"limit" validate:"min=0,max=100"`
}

func (r ConversationListRequest) Validate() error {
	return validate.Struct(r)
}

type ConversationListResponse struct {
	Conversations []model.Conversation `json:"conversations"`
	Total         int64                `json:"total"`
	Page          int                  `json:"page"`
	Limit         int                  `json:"limit"`
}

type ConversationIDsRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}

func (r ConversationIDsRequest) Validate() error {
	return validate.Struct(r)
}

type WidgetCodeRequest struct {
	AccentColor string `json:"accent_color" validate:"omitempty,hexcolor"`
	Greeting    string `json:"greeting" validate:"max=255"`
}

func (r WidgetCodeRequest) Validate() error {
	return validate.Struct(r)
}

type WidgetCodeResponse struct {
	Snippet string `json:"snippet"`
}
