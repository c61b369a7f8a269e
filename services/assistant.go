package services

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	appContext "github.com/alphabatem/common/context"
	openai "github.com/sashabaranov/go-openai"

	"github.com/answerhive/answerhive_api/model"
	"github.com/answerhive/answerhive_api/shared"
)

const (
	assistantModel = openai.GPT4o
	utilityModel   = openai.GPT4oMini

	defaultAssistantBaseURL = "https://prod-1-data.ke.pinecone.io/assistant/chat"
)

// AssistantService wraps the two upstream LLM surfaces: the per-user
// knowledge-base assistant (an OpenAI-compatible chat-completions endpoint,
// one base URL per assistant) and the utility model used for titles,
// summaries, follow-up questions and the usefulness check.
type AssistantService struct {
	appContext.DefaultService

	utility          *openai.Client
	assistantAPIKey  string
	assistantBaseURL string
	httpClient       *http.Client
}

const ASSISTANT_SVC = "assistant_svc"

func (svc AssistantService) Id() string {
	return ASSISTANT_SVC
}

func (svc *AssistantService) Start() error {
	openaiKey := os.Getenv("OPENAI_API_KEY")
	if openaiKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}

	svc.assistantAPIKey = os.Getenv("ASSISTANT_API_KEY")
	if svc.assistantAPIKey == "" {
		return fmt.Errorf("ASSISTANT_API_KEY is required")
	}

	svc.assistantBaseURL = os.Getenv("ASSISTANT_API_URL")
	if svc.assistantBaseURL == "" {
		svc.assistantBaseURL = defaultAssistantBaseURL
	}
	svc.assistantBaseURL = strings.TrimSuffix(svc.assistantBaseURL, "/")

	// Upstream calls sit on the request's critical path; a bounded client
	// keeps a stuck upstream from pinning request handlers indefinitely.
	svc.httpClient = &http.Client{Timeout: 60 * time.Second}

	utilityConfig := openai.DefaultConfig(openaiKey)
	utilityConfig.HTTPClient = svc.httpClient
	svc.utility = openai.NewClientWithConfig(utilityConfig)

	return nil
}

// assistantClient builds a client whose base URL targets one assistant. The
// endpoint is OpenAI-compatible, so the same SDK serves both surfaces.
func (svc *AssistantService) assistantClient(assistantName string) *openai.Client {
	config := openai.DefaultConfig(svc.assistantAPIKey)
	config.BaseURL = svc.assistantBaseURL + "/" + assistantName
	config.HTTPClient = svc.httpClient
	return openai.NewClientWithConfig(config)
}

// HistoryMessages converts persisted turns into the alternating user and
// assistant message list the upstream expects, oldest first.
func HistoryMessages(turns []model.QueryAndResponse) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(turns)*2)
	for _, turn := range turns {
		messages = append(messages,
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: turn.UserQuery},
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: turn.AssistantResponse},
		)
	}
	return messages
}

// Query sends the full message history to the user's assistant and returns
// the raw (uncleaned) response text.
func (svc *AssistantService) Query(ctx context.Context, assistantName string, messages []openai.ChatCompletionMessage) (string, error) {
	resp, err := svc.assistantClient(assistantName).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    assistantModel,
		Messages: messages,
	})
	if err != nil {
		return "", shared.NewUpstreamError(err, "The assistant is currently unavailable. Please try again later.")
	}
	if len(resp.Choices) == 0 {
		return "", shared.NewUpstreamError(fmt.Errorf("assistant returned no choices"), "The assistant is currently unavailable. Please try again later.")
	}
	return resp.Choices[0].Message.Content, nil
}

func (svc *AssistantService) utilityCompletion(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	resp, err := svc.utility.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    utilityModel,
		Messages: messages,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("utility model returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// FollowupQueries suggests follow-up questions from the user's perspective,
// one per returned line.
func (svc *AssistantService) FollowupQueries(ctx context.Context, messages []openai.ChatCompletionMessage) ([]string, error) {
	content, err := svc.utilityCompletion(ctx, []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: "You are a helpful assistant that suggests potential follow-up questions from the USER'S PERSPECTIVE. Try to keep your responses to 5 words or less. Give responses as 2 plain sentences",
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: fmt.Sprintf("Based on this conversation, suggest 2 potential follow-up questions the user may want to ask. Conversation: %s", renderConversation(messages)),
		},
	})
	if err != nil {
		return nil, err
	}

	var queries []string
	for _, line := range strings.Split(content, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			queries = append(queries, line)
		}
	}
	return queries, nil
}

// GenerateTitle condenses the opening user message into a conversation title.
func (svc *AssistantService) GenerateTitle(ctx context.Context, userInput string) (string, error) {
	return svc.utilityCompletion(ctx, []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: "You are a helpful assistant that summarizes messages clearly and concisely.",
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: fmt.Sprintf("Summarize this message to create a title for the conversation: %s", userInput),
		},
	})
}

// Summarize produces the idle-conversation summary from the turn history.
func (svc *AssistantService) Summarize(ctx context.Context, turns []model.QueryAndResponse) (string, error) {
	messages := append([]openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: "You carefully and accurately summarize conversations to understand what the user is trying to accomplish. Summarize this conversation in 100 words or less from the perspective of an outsider reading the conversation history.",
		},
	}, HistoryMessages(turns)...)

	return svc.utilityCompletion(ctx, messages)
}

// EvaluateUsefulness asks the utility model whether the response actually
// answers the question. Returns true when the verdict is "No", meaning the
// conversation needs human review.
func (svc *AssistantService) EvaluateUsefulness(ctx context.Context, question, response string) (bool, error) {
	verdict, err := svc.utilityCompletion(ctx, []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: "You are a highly analytical evaluator. Your job is to decide if the response answers the question with useful information. If it does, respond with 'Yes'. If it doesn't, respond with 'No'",
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: fmt.Sprintf("Question: %s, Response: %s", question, response),
		},
	})
	if err != nil {
		return false, err
	}
	return strings.EqualFold(verdict, "No"), nil
}

func renderConversation(messages []openai.ChatCompletionMessage) string {
	var sb strings.Builder
	for _, m := range messages {
		sb.WriteString(m.Role)
		sb.WriteString(": ")
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}
