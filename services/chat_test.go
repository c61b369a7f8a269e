package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"gorm.io/gorm"

	"github.com/answerhive/answerhive_api/dto"
	"github.com/answerhive/answerhive_api/model"
	"github.com/answerhive/answerhive_api/shared"
)

type fakeChatStore struct {
	mu sync.Mutex

	user         *model.User
	conversation *model.Conversation
	turns        []model.QueryAndResponse

	decrementResult bool
	decrementCalls  int
}

func (s *fakeChatStore) GetUser(userID string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user != nil && s.user.ID == userID {
		return s.user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *fakeChatStore) GetUserByEmail(email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user != nil && s.user.Email == email {
		return s.user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *fakeChatStore) DecrementQueries(userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decrementCalls++
	if s.decrementResult {
		s.user.QueriesRemaining--
	}
	return s.decrementResult, nil
}

func (s *fakeChatStore) FindOrCreateConversation(userID, uniqueIdentifier string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conversation == nil {
		s.conversation = &model.Conversation{
			ID:               "conv-1",
			UserID:           userID,
			UniqueIdentifier: uniqueIdentifier,
			CreatedAt:        time.Now(),
		}
	}
	return s.conversation, nil
}

func (s *fakeChatStore) GetConversation(id string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conversation != nil && s.conversation.ID == id {
		return s.conversation, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *fakeChatStore) GetConversationByUniqueIdentifier(uniqueIdentifier string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conversation != nil && s.conversation.UniqueIdentifier == uniqueIdentifier {
		return s.conversation, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *fakeChatStore) GetConversationTurns(conversationID string) ([]model.QueryAndResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.QueryAndResponse{}, s.turns...), nil
}

func (s *fakeChatStore) GetLastTurns(conversationID string, limit int) ([]model.QueryAndResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.turns) <= limit {
		return append([]model.QueryAndResponse{}, s.turns...), nil
	}
	return append([]model.QueryAndResponse{}, s.turns[len(s.turns)-limit:]...), nil
}

func (s *fakeChatStore) AppendTurn(conversationID, userQuery, assistantResponse string) (*model.QueryAndResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	turn := model.QueryAndResponse{
		ID:                fmt.Sprintf("turn-%d", len(s.turns)+1),
		ConversationID:    conversationID,
		UserQuery:         userQuery,
		AssistantResponse: assistantResponse,
		CreatedAt:         time.Now(),
	}
	s.turns = append(s.turns, turn)
	now := time.Now()
	s.conversation.LastMessageAt = &now
	return &turn, nil
}

func (s *fakeChatStore) UpdateConversationTitle(id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversation.Title = title
	return nil
}

func (s *fakeChatStore) UpdateConversationSummary(id, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversation.Summary = summary
	return nil
}

func (s *fakeChatStore) FlagConversationForReview(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conversation.FlaggedForReview {
		return false, nil
	}
	s.conversation.FlaggedForReview = true
	return true, nil
}

type fakeAssistant struct {
	queryResponse string
	queryErr      error
	queryCalls    int

	followups     []string
	followupErr   error
	followupCalls int

	title        string
	titleCalls   int
	summary      string
	summaryCalls int

	needsReview bool
	evalErr     error
}

func (a *fakeAssistant) Query(ctx context.Context, assistantName string, messages []openai.ChatCompletionMessage) (string, error) {
	a.queryCalls++
	return a.queryResponse, a.queryErr
}

func (a *fakeAssistant) FollowupQueries(ctx context.Context, messages []openai.ChatCompletionMessage) ([]string, error) {
	a.followupCalls++
	return a.followups, a.followupErr
}

func (a *fakeAssistant) GenerateTitle(ctx context.Context, userInput string) (string, error) {
	a.titleCalls++
	return a.title, nil
}

func (a *fakeAssistant) Summarize(ctx context.Context, turns []model.QueryAndResponse) (string, error) {
	a.summaryCalls++
	return a.summary, nil
}

func (a *fakeAssistant) EvaluateUsefulness(ctx context.Context, question, response string) (bool, error) {
	return a.needsReview, a.evalErr
}

type fakeMailer struct {
	mu           sync.Mutex
	reviewCalls  int
	limitReached chan struct{}
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{limitReached: make(chan struct{}, 4)}
}

func (m *fakeMailer) SendFlaggedForReview(user *model.User, conversation *model.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reviewCalls++
	return nil
}

func (m *fakeMailer) ReviewCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reviewCalls
}

func (m *fakeMailer) SendQueryLimitReached(user *model.User) error {
	m.limitReached <- struct{}{}
	return nil
}

type scheduledJob struct {
	Type    JobType
	Payload interface{}
	Delay   time.Duration
}

type fakeScheduler struct {
	mu   sync.Mutex
	jobs []scheduledJob
}

func (s *fakeScheduler) Schedule(jobType JobType, payload interface{}, delay time.Duration) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, scheduledJob{Type: jobType, Payload: payload, Delay: delay})
	return fmt.Sprintf("job-%d", len(s.jobs))
}

func (s *fakeScheduler) byType(jobType JobType) []scheduledJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []scheduledJob
	for _, job := range s.jobs {
		if job.Type == jobType {
			out = append(out, job)
		}
	}
	return out
}

func activeUser() *model.User {
	return &model.User{
		ID:                        "user-1",
		Email:                     "owner@example.com",
		SubscriptionStatus:        shared.SubscriptionActive,
		QueriesRemaining:          10,
		EmailNotificationsEnabled: true,
	}
}

func newTestProcessor(store *fakeChatStore, assistant *fakeAssistant, mailer *fakeMailer, jobs *fakeScheduler) *ChatProcessor {
	return NewChatProcessor(store, assistant, mailer, jobs)
}

func chatTurnRequest() dto.ChatRequest {
	return dto.ChatRequest{
		UserInput:         "What are your opening hours?",
		UniqueIdentifier:  "widget-session-1",
		VisitorID:         "fp-1",
		AdminAccountEmail: "owner@example.com",
	}
}

func TestCleanResponse(t *testing.T) {
	tests := []struct {
		name          string
		raw           string
		want          string
		hasReferences bool
	}{
		{
			name:          "citation and references section stripped",
			raw:           "Paris is the capital of France [1, p. 42] .\n\nReferences:\n[1] geography.pdf",
			want:          "Paris is the capital of France.",
			hasReferences: true,
		},
		{
			name:          "page range citation",
			raw:           "See the refund policy [2, pp. 3-5].\n\nReferences:\n[2] policy.pdf",
			want:          "See the refund policy.",
			hasReferences: true,
		},
		{
			name:          "multi page citation",
			raw:           "Open weekdays [1, p. 4, 6].\n\nReferences:\n[1] hours.pdf",
			want:          "Open weekdays.",
			hasReferences: true,
		},
		{
			name:          "no references section",
			raw:           "I believe the answer is yes.",
			want:          "I believe the answer is yes.",
			hasReferences: false,
		},
		{
			name:          "space before punctuation collapsed",
			raw:           "Yes , that is correct !\n\nReferences:\n[1] faq.pdf",
			want:          "Yes, that is correct!",
			hasReferences: true,
		},
		{
			name:          "empty input",
			raw:           "",
			want:          "",
			hasReferences: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, hasReferences := CleanResponse(tc.raw)
			if got != tc.want {
				t.Errorf("cleaned = %q, want %q", got, tc.want)
			}
			if hasReferences != tc.hasReferences {
				t.Errorf("hasReferences = %v, want %v", hasReferences, tc.hasReferences)
			}
		})
	}
}

func TestProcessTurnBlankInput(t *testing.T) {
	p := newTestProcessor(&fakeChatStore{}, &fakeAssistant{}, newFakeMailer(), &fakeScheduler{})

	_, err := p.ProcessTurn(context.Background(), dto.ChatRequest{UserInput: "   "})
	appErr, ok := shared.GetAppError(err)
	if !ok {
		t.Fatalf("error = %v, want AppError", err)
	}
	if appErr.StatusCode != 400 {
		t.Errorf("status = %d, want 400", appErr.StatusCode)
	}
}

func TestProcessTurnUnknownAccount(t *testing.T) {
	p := newTestProcessor(&fakeChatStore{}, &fakeAssistant{}, newFakeMailer(), &fakeScheduler{})

	_, err := p.ProcessTurn(context.Background(), chatTurnRequest())
	appErr, ok := shared.GetAppError(err)
	if !ok {
		t.Fatalf("error = %v, want AppError", err)
	}
	if appErr.StatusCode != 404 {
		t.Errorf("status = %d, want 404", appErr.StatusCode)
	}
}

func TestProcessTurnQuotaExhausted(t *testing.T) {
	user := activeUser()
	user.QueriesRemaining = 0
	store := &fakeChatStore{user: user}
	assistant := &fakeAssistant{}
	mailer := newFakeMailer()
	p := newTestProcessor(store, assistant, mailer, &fakeScheduler{})

	resp, err := p.ProcessTurn(context.Background(), chatTurnRequest())
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if resp.CleanedResponse != declineMessage {
		t.Errorf("response = %q, want decline message", resp.CleanedResponse)
	}
	if assistant.queryCalls != 0 {
		t.Errorf("upstream calls = %d, want 0", assistant.queryCalls)
	}
	if store.decrementCalls != 0 {
		t.Errorf("decrement calls = %d, want 0", store.decrementCalls)
	}

	select {
	case <-mailer.limitReached:
	case <-time.After(time.Second):
		t.Error("query limit mail never sent")
	}
}

func TestProcessTurnDecrementRace(t *testing.T) {
	store := &fakeChatStore{user: activeUser(), decrementResult: false}
	assistant := &fakeAssistant{}
	mailer := newFakeMailer()
	p := newTestProcessor(store, assistant, mailer, &fakeScheduler{})

	resp, err := p.ProcessTurn(context.Background(), chatTurnRequest())
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if resp.CleanedResponse != declineMessage {
		t.Errorf("response = %q, want decline message", resp.CleanedResponse)
	}
	if store.decrementCalls != 1 {
		t.Errorf("decrement calls = %d, want 1", store.decrementCalls)
	}
	if assistant.queryCalls != 0 {
		t.Errorf("upstream calls = %d, want 0", assistant.queryCalls)
	}
}

func TestProcessTurnUpstreamErrorStillSpendsQuery(t *testing.T) {
	store := &fakeChatStore{user: activeUser(), decrementResult: true}
	assistant := &fakeAssistant{queryErr: errors.New("upstream down")}
	p := newTestProcessor(store, assistant, newFakeMailer(), &fakeScheduler{})

	_, err := p.ProcessTurn(context.Background(), chatTurnRequest())
	if err == nil {
		t.Fatal("ProcessTurn succeeded, want upstream error")
	}
	if store.decrementCalls != 1 {
		t.Errorf("decrement calls = %d, want 1 (quota spent before the call)", store.decrementCalls)
	}
	if len(store.turns) != 0 {
		t.Errorf("turns stored = %d, want 0", len(store.turns))
	}
}

func TestProcessTurnWithReferences(t *testing.T) {
	store := &fakeChatStore{user: activeUser(), decrementResult: true}
	assistant := &fakeAssistant{
		queryResponse: "We open at 9am [1, p. 2].\n\nReferences:\n[1] hours.pdf",
		followups:     []string{"Do you open on weekends?"},
	}
	mailer := newFakeMailer()
	jobs := &fakeScheduler{}
	p := newTestProcessor(store, assistant, mailer, jobs)

	resp, err := p.ProcessTurn(context.Background(), chatTurnRequest())
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}

	if resp.CleanedResponse != "We open at 9am." {
		t.Errorf("cleaned = %q", resp.CleanedResponse)
	}
	if len(resp.PotentialQueries) != 1 || resp.PotentialQueries[0] != "Do you open on weekends?" {
		t.Errorf("potential queries = %v", resp.PotentialQueries)
	}
	if store.conversation.FlaggedForReview {
		t.Error("conversation flagged although references were present")
	}
	if len(store.turns) != 1 {
		t.Fatalf("turns stored = %d, want 1", len(store.turns))
	}
	if store.turns[0].AssistantResponse != "We open at 9am." {
		t.Errorf("stored response = %q, want cleaned text", store.turns[0].AssistantResponse)
	}

	if got := jobs.byType(JobModerationCheck); len(got) != 1 || got[0].Delay != 0 {
		t.Errorf("moderation jobs = %v, want one immediate", got)
	}
	if got := jobs.byType(JobConversationTitle); len(got) != 1 {
		t.Errorf("title jobs = %d, want 1 for a fresh conversation", len(got))
	}
	summaries := jobs.byType(JobIdleSummary)
	if len(summaries) != 1 || summaries[0].Delay != idleSummaryDelay {
		t.Errorf("summary jobs = %v, want one delayed by %v", summaries, idleSummaryDelay)
	}
}

func TestProcessTurnWithoutReferencesFlagsForReview(t *testing.T) {
	store := &fakeChatStore{user: activeUser(), decrementResult: true}
	assistant := &fakeAssistant{queryResponse: "I think the answer is probably yes."}
	mailer := newFakeMailer()
	p := newTestProcessor(store, assistant, mailer, &fakeScheduler{})

	resp, err := p.ProcessTurn(context.Background(), chatTurnRequest())
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}

	if len(resp.PotentialQueries) != 0 {
		t.Errorf("potential queries = %v, want none on a grounding failure", resp.PotentialQueries)
	}
	if assistant.followupCalls != 0 {
		t.Errorf("followup calls = %d, want 0", assistant.followupCalls)
	}
	if !store.conversation.FlaggedForReview {
		t.Error("conversation not flagged for review")
	}
	if mailer.ReviewCalls() != 1 {
		t.Errorf("review mails = %d, want 1", mailer.ReviewCalls())
	}

	// A second ungrounded turn must not re-notify: the flag transition
	// already happened.
	if _, err := p.ProcessTurn(context.Background(), chatTurnRequest()); err != nil {
		t.Fatalf("second ProcessTurn: %v", err)
	}
	if mailer.ReviewCalls() != 1 {
		t.Errorf("review mails after second turn = %d, want 1", mailer.ReviewCalls())
	}
}

func TestProcessTurnSkipsTitleJobWhenTitleExists(t *testing.T) {
	store := &fakeChatStore{
		user:            activeUser(),
		decrementResult: true,
		conversation: &model.Conversation{
			ID:               "conv-1",
			UserID:           "user-1",
			UniqueIdentifier: "widget-session-1",
			Title:            "Opening hours",
			CreatedAt:        time.Now(),
		},
	}
	assistant := &fakeAssistant{queryResponse: "At 9am.\n\nReferences:\n[1] hours.pdf"}
	jobs := &fakeScheduler{}
	p := newTestProcessor(store, assistant, newFakeMailer(), jobs)

	if _, err := p.ProcessTurn(context.Background(), chatTurnRequest()); err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if got := jobs.byType(JobConversationTitle); len(got) != 0 {
		t.Errorf("title jobs = %d, want 0 when a title exists", len(got))
	}
}

func TestLastMessagesUnknownIdentifier(t *testing.T) {
	p := newTestProcessor(&fakeChatStore{}, &fakeAssistant{}, newFakeMailer(), &fakeScheduler{})

	resp, err := p.LastMessages("never-seen")
	if err != nil {
		t.Fatalf("LastMessages: %v", err)
	}
	if resp.Messages == nil || len(resp.Messages) != 0 {
		t.Errorf("messages = %v, want empty list", resp.Messages)
	}
}

func TestLastMessagesReturnsMostRecentTen(t *testing.T) {
	store := &fakeChatStore{
		conversation: &model.Conversation{ID: "conv-1", UniqueIdentifier: "widget-session-1"},
	}
	for i := 0; i < 12; i++ {
		store.turns = append(store.turns, model.QueryAndResponse{
			ID:        fmt.Sprintf("turn-%d", i+1),
			UserQuery: fmt.Sprintf("question %d", i+1),
		})
	}
	p := newTestProcessor(store, &fakeAssistant{}, newFakeMailer(), &fakeScheduler{})

	resp, err := p.LastMessages("widget-session-1")
	if err != nil {
		t.Fatalf("LastMessages: %v", err)
	}
	if len(resp.Messages) != 10 {
		t.Fatalf("messages = %d, want 10", len(resp.Messages))
	}
	if resp.Messages[0].ID != "turn-3" {
		t.Errorf("first message = %s, want turn-3 (oldest of the last ten)", resp.Messages[0].ID)
	}
	if resp.Messages[9].ID != "turn-12" {
		t.Errorf("last message = %s, want turn-12", resp.Messages[9].ID)
	}
}

func TestHandleModerationCheck(t *testing.T) {
	tests := []struct {
		name        string
		needsReview bool
		wantFlagged bool
	}{
		{"useful response stays unflagged", false, false},
		{"useless response gets flagged", true, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := &fakeChatStore{
				user:         activeUser(),
				conversation: &model.Conversation{ID: "conv-1", UserID: "user-1"},
			}
			assistant := &fakeAssistant{needsReview: tc.needsReview}
			p := newTestProcessor(store, assistant, newFakeMailer(), &fakeScheduler{})

			err := p.HandleModerationCheck(context.Background(), Job{
				Type: JobModerationCheck,
				Payload: ModerationCheckPayload{
					ConversationID: "conv-1",
					UserID:         "user-1",
					UserQuery:      "q",
					Response:       "r",
				},
			})
			if err != nil {
				t.Fatalf("HandleModerationCheck: %v", err)
			}
			if store.conversation.FlaggedForReview != tc.wantFlagged {
				t.Errorf("flagged = %v, want %v", store.conversation.FlaggedForReview, tc.wantFlagged)
			}
		})
	}
}

func TestHandleConversationTitleRechecksPrecondition(t *testing.T) {
	store := &fakeChatStore{
		conversation: &model.Conversation{ID: "conv-1", Title: "Already titled"},
	}
	assistant := &fakeAssistant{title: "New title"}
	p := newTestProcessor(store, assistant, newFakeMailer(), &fakeScheduler{})

	err := p.HandleConversationTitle(context.Background(), Job{
		Type:    JobConversationTitle,
		Payload: TitlePayload{ConversationID: "conv-1", UserInput: "hello"},
	})
	if err != nil {
		t.Fatalf("HandleConversationTitle: %v", err)
	}
	if assistant.titleCalls != 0 {
		t.Errorf("title generated %d times, want 0 when a title exists", assistant.titleCalls)
	}
	if store.conversation.Title != "Already titled" {
		t.Errorf("title = %q, want unchanged", store.conversation.Title)
	}
}

func TestHandleConversationTitleGeneratesWhenMissing(t *testing.T) {
	store := &fakeChatStore{conversation: &model.Conversation{ID: "conv-1"}}
	assistant := &fakeAssistant{title: "Opening hours"}
	p := newTestProcessor(store, assistant, newFakeMailer(), &fakeScheduler{})

	err := p.HandleConversationTitle(context.Background(), Job{
		Type:    JobConversationTitle,
		Payload: TitlePayload{ConversationID: "conv-1", UserInput: "when do you open?"},
	})
	if err != nil {
		t.Fatalf("HandleConversationTitle: %v", err)
	}
	if store.conversation.Title != "Opening hours" {
		t.Errorf("title = %q, want generated title", store.conversation.Title)
	}
}

func TestHandleConversationTitleMissingConversation(t *testing.T) {
	p := newTestProcessor(&fakeChatStore{}, &fakeAssistant{}, newFakeMailer(), &fakeScheduler{})

	err := p.HandleConversationTitle(context.Background(), Job{
		Type:    JobConversationTitle,
		Payload: TitlePayload{ConversationID: "gone", UserInput: "hello"},
	})
	if err != nil {
		t.Errorf("HandleConversationTitle = %v, want nil for a deleted conversation", err)
	}
}

func TestHandleIdleSummary(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	idle := now.Add(-10 * time.Minute)
	recent := now.Add(-time.Minute)

	tests := []struct {
		name          string
		lastMessageAt *time.Time
		summary       string
		turns         int
		wantSummary   string
		wantCalls     int
	}{
		{
			name:          "idle conversation gets summarized",
			lastMessageAt: &idle,
			turns:         2,
			wantSummary:   "Visitor asked about hours.",
			wantCalls:     1,
		},
		{
			name:          "recent activity debounces the job",
			lastMessageAt: &recent,
			turns:         2,
			wantSummary:   "",
			wantCalls:     0,
		},
		{
			name:          "existing summary is not overwritten",
			lastMessageAt: &idle,
			summary:       "Old summary.",
			turns:         2,
			wantSummary:   "Old summary.",
			wantCalls:     0,
		},
		{
			name:          "empty conversation is skipped",
			lastMessageAt: &idle,
			turns:         0,
			wantSummary:   "",
			wantCalls:     0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := &fakeChatStore{
				conversation: &model.Conversation{
					ID:            "conv-1",
					Summary:       tc.summary,
					CreatedAt:     now.Add(-time.Hour),
					LastMessageAt: tc.lastMessageAt,
				},
			}
			for i := 0; i < tc.turns; i++ {
				store.turns = append(store.turns, model.QueryAndResponse{ID: fmt.Sprintf("turn-%d", i+1)})
			}

			assistant := &fakeAssistant{summary: "Visitor asked about hours."}
			p := newTestProcessor(store, assistant, newFakeMailer(), &fakeScheduler{})
			p.now = fixedClock(now)

			err := p.HandleIdleSummary(context.Background(), Job{
				Type:    JobIdleSummary,
				Payload: IdleSummaryPayload{ConversationID: "conv-1"},
			})
			if err != nil {
				t.Fatalf("HandleIdleSummary: %v", err)
			}
			if assistant.summaryCalls != tc.wantCalls {
				t.Errorf("summarize calls = %d, want %d", assistant.summaryCalls, tc.wantCalls)
			}
			if store.conversation.Summary != tc.wantSummary {
				t.Errorf("summary = %q, want %q", store.conversation.Summary, tc.wantSummary)
			}
		})
	}
}

func TestJobHandlersRejectWrongPayloadType(t *testing.T) {
	p := newTestProcessor(&fakeChatStore{}, &fakeAssistant{}, newFakeMailer(), &fakeScheduler{})

	handlers := map[string]func(context.Context, Job) error{
		"moderation": p.HandleModerationCheck,
		"title":      p.HandleConversationTitle,
		"summary":    p.HandleIdleSummary,
	}

	for name, handler := range handlers {
		if err := handler(context.Background(), Job{Payload: "wrong"}); err == nil {
			t.Errorf("%s handler accepted a mistyped payload", name)
		}
	}
}
