package model

import "time"

// Conversation groups the turns exchanged through one widget session.
// The (unique_identifier, user_id) unique index is the correctness backstop
// for concurrent find-or-create; the application never takes locks.
type Conversation struct {
	ID               string `json:"id" gorm:"primaryKey;type:text;not null"`
	UserID           string `json:"user_id" gorm:"not null;uniqueIndex:idx_conversations_identifier_user;size:255"`
	UniqueIdentifier string `json:"unique_identifier" gorm:"not null;uniqueIndex:idx_conversations_identifier_user;size:255"`

	Title            string `json:"title" gorm:"type:text"`
	Summary          string `json:"summary" gorm:"type:text"`
	FlaggedForReview bool   `json:"flagged_for_review" gorm:"default:false;not null;index"`

	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	DismissedAt *time.Time `json:"dismissed_at,omitempty"`

	LastMessageAt *time.Time `json:"last_message_at,omitempty" gorm:"index"`
	CreatedAt     time.Time  `json:"created_at" gorm:"not null"`
	UpdatedAt     time.Time  `json:"updated_at" gorm:"not null"`

	QueryAndResponses []QueryAndResponse `json:"query_and_responses,omitempty" gorm:"foreignKey:ConversationID"`
}

// QueryAndResponse is one turn: immutable once written.
type QueryAndResponse struct {
	ID                string    `json:"id" gorm:"primaryKey;type:text;not null"`
	ConversationID    string    `json:"conversation_id" gorm:"not null;index;size:255"`
	UserQuery         string    `json:"user_query" gorm:"type:text;not null"`
	AssistantResponse string    `json:"assistant_response" gorm:"type:text;not null"`
	CreatedAt         time.Time `json:"created_at" gorm:"not null;index"`
}

func (c *Conversation) TitleMissing() bool {
	return c.Title == ""
}

func (c *Conversation) SummaryMissing() bool {
	return c.Summary == ""
}

// IdleFor reports whether no message has arrived for at least d as of now.
// The idle-summary job re-checks this at execution time, which is what makes
// the debounce safe under duplicate or delayed delivery.
func (c *Conversation) IdleFor(d time.Duration, now time.Time) bool {
	last := c.CreatedAt
	if c.LastMessageAt != nil {
		last = *c.LastMessageAt
	}
	return now.Sub(last) >= d
}
