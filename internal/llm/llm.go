// Package llm wraps hosted chat-completion APIs behind a single Caller
// interface so the assistant code never depends on a vendor SDK.
package llm

import (
	"context"
	"errors"
	"net"
	"regexp"
	"strings"
)

var ErrNotConfigured = errors.New("no LLM provider configured")

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	System      string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

type Caller interface {
	Complete(ctx context.Context, req Request) (string, error)
	Provider() string
}

// Config selects and authenticates a provider. An empty Provider picks
// Anthropic when its key is set, then OpenAI.
type Config struct {
	Provider        string
	AnthropicAPIKey string
	AnthropicModel  string
	OpenAIAPIKey    string
	OpenAIModel     string
}

func NewCaller(cfg Config) (Caller, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		switch {
		case cfg.AnthropicAPIKey != "":
			provider = ProviderAnthropic
		case cfg.OpenAIAPIKey != "":
			provider = ProviderOpenAI
		default:
			return nil, ErrNotConfigured
		}
	}
	switch provider {
	case ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, errors.New("ANTHROPIC_API_KEY not configured")
		}
		return NewAnthropicCaller(cfg.AnthropicAPIKey, cfg.AnthropicModel), nil
	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, errors.New("OPENAI_API_KEY not configured")
		}
		return NewOpenAICaller(cfg.OpenAIAPIKey, cfg.OpenAIModel), nil
	default:
		return nil, errors.New("unknown LLM provider " + provider)
	}
}

// StripCodeFences removes a surrounding ```json fence.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		parts := strings.SplitN(s, "\n", 2)
		if len(parts) == 2 {
			s = parts[1]
		}
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}

var jsonArrayPattern = regexp.MustCompile(`(?s)\[.*\]`)

// ExtractJSONArray returns the span from the first '[' to the last ']', or
// the fence-stripped text when no brackets are present.
func ExtractJSONArray(s string) string {
	if m := jsonArrayPattern.FindString(s); m != "" {
		return m
	}
	return StripCodeFences(s)
}

// ClassifyError buckets a transport error for logs and metrics labels.
func ClassifyError(err error) string {
	if err == nil {
		return "none"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return "timeout"
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"):
		return "rate_limit"
	case strings.Contains(msg, " 5") || strings.Contains(msg, "status code: 5") || strings.Contains(msg, "server error"):
		return "server"
	case strings.Contains(msg, " 4") || strings.Contains(msg, "status code: 4"):
		return "client"
	default:
		return "server"
	}
}
