package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	appContext "github.com/alphabatem/common/context"
	openai "github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/answerhive/answerhive_api/dto"
	"github.com/answerhive/answerhive_api/model"
	"github.com/answerhive/answerhive_api/shared"
)

const (
	idleSummaryDelay    = 5 * time.Minute
	idleSummaryMaxTurns = 100
	lastMessagesLimit   = 10

	declineMessage = "We are unable to process your request at this time. Please try again later."
)

const referencesDelimiter = "References:"

var (
	citationPattern      = regexp.MustCompile(`\s*\[\d+, pp?\.? ?\d+(-\d+)?(, \d+)*\]`)
	danglingSpacePattern = regexp.MustCompile(`\s+([.,!?])`)
)

// chatStore is the slice of PostgresService the processor needs. Tests
// implement it with an in-memory fake.
type chatStore interface {
	GetUser(userID string) (*model.User, error)
	GetUserByEmail(email string) (*model.User, error)
	DecrementQueries(userID string) (bool, error)
	FindOrCreateConversation(userID, uniqueIdentifier string) (*model.Conversation, error)
	GetConversation(id string) (*model.Conversation, error)
	GetConversationByUniqueIdentifier(uniqueIdentifier string) (*model.Conversation, error)
	GetConversationTurns(conversationID string) ([]model.QueryAndResponse, error)
	GetLastTurns(conversationID string, limit int) ([]model.QueryAndResponse, error)
	AppendTurn(conversationID, userQuery, assistantResponse string) (*model.QueryAndResponse, error)
	UpdateConversationTitle(id, title string) error
	UpdateConversationSummary(id, summary string) error
	FlagConversationForReview(id string) (bool, error)
}

type chatAssistant interface {
	Query(ctx context.Context, assistantName string, messages []openai.ChatCompletionMessage) (string, error)
	FollowupQueries(ctx context.Context, messages []openai.ChatCompletionMessage) ([]string, error)
	GenerateTitle(ctx context.Context, userInput string) (string, error)
	Summarize(ctx context.Context, turns []model.QueryAndResponse) (string, error)
	EvaluateUsefulness(ctx context.Context, question, response string) (bool, error)
}

type chatMailer interface {
	SendFlaggedForReview(user *model.User, conversation *model.Conversation) error
	SendQueryLimitReached(user *model.User) error
}

type chatScheduler interface {
	Schedule(jobType JobType, payload interface{}, delay time.Duration) string
}

type ModerationCheckPayload struct {
	ConversationID string
	UserID         string
	UserQuery      string
	Response       string
}

type TitlePayload struct {
	ConversationID string
	UserInput      string
}

type IdleSummaryPayload struct {
	ConversationID string
}

// ChatProcessor runs one conversation turn end to end. Only the upstream
// assistant call and, when citations are present, the follow-up call block
// the request; moderation, title and summary go through the job dispatcher.
type ChatProcessor struct {
	store     chatStore
	assistant chatAssistant
	mailer    chatMailer
	jobs      chatScheduler
	now       func() time.Time
}

func NewChatProcessor(store chatStore, assistant chatAssistant, mailer chatMailer, jobs chatScheduler) *ChatProcessor {
	return &ChatProcessor{
		store:     store,
		assistant: assistant,
		mailer:    mailer,
		jobs:      jobs,
		now:       time.Now,
	}
}

// CleanResponse strips the upstream's citation apparatus: everything after
// the references delimiter is split off, inline citation markers are removed
// and whitespace left in front of punctuation is collapsed. The returned
// flag reports whether a references section existed at all; its absence is
// the grounding-failure signal.
func CleanResponse(raw string) (cleaned string, hasReferences bool) {
	main := raw
	if idx := strings.Index(raw, referencesDelimiter); idx >= 0 {
		main = raw[:idx]
		hasReferences = true
	}

	cleaned = citationPattern.ReplaceAllString(strings.TrimSpace(main), "")
	cleaned = danglingSpacePattern.ReplaceAllString(cleaned, "$1")
	return strings.TrimSpace(cleaned), hasReferences
}

// ProcessTurn is the turn state machine. The quota decrement happens before
// the upstream call, so an upstream failure still costs one query.
func (p *ChatProcessor) ProcessTurn(ctx context.Context, req dto.ChatRequest) (*dto.ChatResponse, error) {
	if strings.TrimSpace(req.UserInput) == "" {
		return nil, shared.NewBadRequestError(nil, "No user input provided")
	}

	user, err := p.store.GetUserByEmail(req.AdminAccountEmail)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError(err, "Account not found")
		}
		return nil, err
	}

	if !user.CanMakeQuery() {
		return p.declineTurn(user), nil
	}

	decremented, err := p.store.DecrementQueries(user.ID)
	if err != nil {
		return nil, err
	}
	if !decremented {
		// A concurrent turn spent the last query between the read and here.
		return p.declineTurn(user), nil
	}

	conversation, err := p.store.FindOrCreateConversation(user.ID, req.UniqueIdentifier)
	if err != nil {
		return nil, err
	}

	history, err := p.store.GetConversationTurns(conversation.ID)
	if err != nil {
		return nil, err
	}

	messages := append(HistoryMessages(history), openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.UserInput,
	})

	raw, err := p.assistant.Query(ctx, user.AssistantName(), messages)
	if err != nil {
		recordChatTurn("upstream_error")
		return nil, err
	}

	cleaned, hasReferences := CleanResponse(raw)

	p.jobs.Schedule(JobModerationCheck, ModerationCheckPayload{
		ConversationID: conversation.ID,
		UserID:         user.ID,
		UserQuery:      req.UserInput,
		Response:       cleaned,
	}, 0)

	var potentialQueries []string
	if !hasReferences {
		// No references section means the assistant answered without its
		// knowledge base; surface the conversation to the owner.
		p.flagForReview(conversation.ID, user.ID)
	} else {
		potentialQueries, err = p.assistant.FollowupQueries(ctx, messages)
		if err != nil {
			log.WithError(err).Warn("Failed to generate follow-up queries")
			potentialQueries = nil
		}
	}

	if conversation.TitleMissing() {
		p.jobs.Schedule(JobConversationTitle, TitlePayload{
			ConversationID: conversation.ID,
			UserInput:      req.UserInput,
		}, 0)
	}

	if _, err := p.store.AppendTurn(conversation.ID, req.UserInput, cleaned); err != nil {
		return nil, err
	}

	p.jobs.Schedule(JobIdleSummary, IdleSummaryPayload{ConversationID: conversation.ID}, idleSummaryDelay)

	recordChatTurn("ok")
	return &dto.ChatResponse{
		CleanedResponse:  cleaned,
		PotentialQueries: potentialQueries,
	}, nil
}

// declineTurn is the quota-exhausted path: no upstream call, no decrement,
// a static message in the normal response shape so the widget renders it as
// an ordinary assistant reply.
func (p *ChatProcessor) declineTurn(user *model.User) *dto.ChatResponse {
	recordChatTurn("quota_exhausted")

	go func() {
		if err := p.mailer.SendQueryLimitReached(user); err != nil {
			log.WithError(err).WithField("user_id", user.ID).Warn("Failed to send query limit mail")
		}
	}()

	return &dto.ChatResponse{CleanedResponse: declineMessage}
}

// LastMessages returns up to the 10 most recent turns oldest first. An
// unknown identifier yields an empty list, not an error: a fresh widget
// session has no conversation yet and that is not a client mistake.
func (p *ChatProcessor) LastMessages(uniqueIdentifier string) (*dto.LastMessagesResponse, error) {
	conversation, err := p.store.GetConversationByUniqueIdentifier(uniqueIdentifier)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &dto.LastMessagesResponse{Messages: []model.QueryAndResponse{}}, nil
		}
		return nil, err
	}

	turns, err := p.store.GetLastTurns(conversation.ID, lastMessagesLimit)
	if err != nil {
		return nil, err
	}
	if turns == nil {
		turns = []model.QueryAndResponse{}
	}

	return &dto.LastMessagesResponse{Messages: turns}, nil
}

func (p *ChatProcessor) flagForReview(conversationID, userID string) {
	changed, err := p.store.FlagConversationForReview(conversationID)
	if err != nil {
		log.WithError(err).WithField("conversation_id", conversationID).Error("Failed to flag conversation")
		return
	}
	if !changed {
		return
	}

	user, err := p.store.GetUser(userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Failed to load user for review mail")
		return
	}
	if !user.EmailNotificationsEnabled {
		return
	}

	conversation, err := p.store.GetConversation(conversationID)
	if err != nil {
		log.WithError(err).WithField("conversation_id", conversationID).Error("Failed to load conversation for review mail")
		return
	}

	if err := p.mailer.SendFlaggedForReview(user, conversation); err != nil {
		log.WithError(err).WithField("conversation_id", conversationID).Warn("Failed to send review mail")
	}
}

// HandleModerationCheck asks the utility model whether the response was
// useful and flags the conversation when it was not. Safe to re-run: the
// flag transition happens at most once.
func (p *ChatProcessor) HandleModerationCheck(ctx context.Context, job Job) error {
	payload, ok := job.Payload.(ModerationCheckPayload)
	if !ok {
		return errors.New("moderation job carries wrong payload type")
	}

	needsReview, err := p.assistant.EvaluateUsefulness(ctx, payload.UserQuery, payload.Response)
	if err != nil {
		return err
	}

	if needsReview {
		p.flagForReview(payload.ConversationID, payload.UserID)
	}
	return nil
}

// HandleConversationTitle generates the title from the opening message.
// Re-checks that the title is still blank, so duplicate delivery or a racing
// second turn cannot overwrite an existing one.
func (p *ChatProcessor) HandleConversationTitle(ctx context.Context, job Job) error {
	payload, ok := job.Payload.(TitlePayload)
	if !ok {
		return errors.New("title job carries wrong payload type")
	}

	conversation, err := p.store.GetConversation(payload.ConversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if !conversation.TitleMissing() {
		return nil
	}

	title, err := p.assistant.GenerateTitle(ctx, payload.UserInput)
	if err != nil {
		return err
	}

	return p.store.UpdateConversationTitle(conversation.ID, title)
}

// HandleIdleSummary runs after the debounce delay. Every turn schedules one
// of these; only the execution that finds the conversation actually idle and
// still unsummarized does any work, which is what collapses the N scheduled
// jobs into one summary.
func (p *ChatProcessor) HandleIdleSummary(ctx context.Context, job Job) error {
	payload, ok := job.Payload.(IdleSummaryPayload)
	if !ok {
		return errors.New("summary job carries wrong payload type")
	}

	conversation, err := p.store.GetConversation(payload.ConversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	if !conversation.IdleFor(idleSummaryDelay, p.now()) || !conversation.SummaryMissing() {
		return nil
	}

	turns, err := p.store.GetLastTurns(conversation.ID, idleSummaryMaxTurns)
	if err != nil {
		return err
	}
	if len(turns) == 0 {
		return nil
	}

	summary, err := p.assistant.Summarize(ctx, turns)
	if err != nil {
		return err
	}

	return p.store.UpdateConversationSummary(conversation.ID, summary)
}

// ChatService exposes the processor through the service container and wires
// the job handlers at startup.
type ChatService struct {
	appContext.DefaultService

	processor *ChatProcessor
}

const CHAT_SVC = "chat_svc"

func (svc ChatService) Id() string {
	return CHAT_SVC
}

func (svc *ChatService) Start() error {
	postgresSvc := svc.Service(POSTGRES_SVC).(*PostgresService)
	assistantSvc := svc.Service(ASSISTANT_SVC).(*AssistantService)
	emailSvc := svc.Service(EMAIL_SVC).(*EmailService)
	jobSvc := svc.Service(JOB_SVC).(*JobService)

	svc.processor = NewChatProcessor(postgresSvc, assistantSvc, emailSvc, jobSvc)

	jobSvc.Register(JobModerationCheck, svc.processor.HandleModerationCheck)
	jobSvc.Register(JobConversationTitle, svc.processor.HandleConversationTitle)
	jobSvc.Register(JobIdleSummary, svc.processor.HandleIdleSummary)

	return nil
}

func (svc *ChatService) ProcessTurn(ctx context.Context, req dto.ChatRequest) (*dto.ChatResponse, error) {
	return svc.processor.ProcessTurn(ctx, req)
}

func (svc *ChatService) LastMessages(uniqueIdentifier string) (*dto.LastMessagesResponse, error) {
	return svc.processor.LastMessages(uniqueIdentifier)
}
