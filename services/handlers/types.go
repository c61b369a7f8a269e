package handlers

import (
	"context"
	"io"
	"time"

	"github.com/answerhive/answerhive_api/dto"
	"github.com/answerhive/answerhive_api/model"
)

type ChatServiceInterface interface {
	ProcessTurn(ctx context.Context, req dto.ChatRequest) (*dto.ChatResponse, error)
	LastMessages(uniqueIdentifier string) (*dto.LastMessagesResponse, error)
}

type AuthServiceInterface interface {
	Register(req dto.RegisterRequest) (*dto.RegisterResponse, error)
	Login(req dto.LoginRequest) (*dto.LoginResponse, error)
	PriceCodes() map[string]string
}

type ConversationAdminInterface interface {
	GetUser(userID string) (*model.User, error)
	ListConversations(userID, search string, page, limit int) ([]model.Conversation, int64, error)
	GetConversationsForReview(userID string) ([]model.Conversation, error)
	GetConversation(id string) (*model.Conversation, error)
	GetConversationTurns(conversationID string) ([]model.QueryAndResponse, error)
	FlagConversations(userID string, ids []string) error
	ResolveConversations(userID string, ids []string) error
	DismissConversations(userID string, ids []string) error
	DeleteConversations(userID string, ids []string) error
}

type ThrottleAdminInterface interface {
	Stats() dto.ThrottleStatsResponse
}

type BlocklistAdminInterface interface {
	Unblock(ctx context.Context, identifierType, identifier string) error
	IsBlocked(ctx context.Context, identifierType, identifier string) (bool, error)
}

type DocumentServiceInterface interface {
	Upload(ctx context.Context, userID, fileName string, reader io.Reader, size int64, contentType string) (*dto.DocumentUploadResponse, error)
	List(ctx context.Context, userID string) (*dto.DocumentListResponse, error)
	Delete(ctx context.Context, userID, fileName string) error
	PresignedURL(ctx context.Context, userID, fileName string, expiry time.Duration) (string, error)
}

type BillingServiceInterface interface {
	HandleEvent(event dto.BillingEvent) error
}
