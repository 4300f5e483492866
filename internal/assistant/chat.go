package assistant

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/joelkehle/cip-designer/internal/llm"
	"github.com/joelkehle/cip-designer/internal/logging"
)

const (
	chatHistoryWindow = 10
	chatTemperature   = 0.7
	chatMaxTokens     = 800

	ReplyUnavailable = "AI service is not available. Please check the LLM provider configuration."
	ReplyEmpty       = "I apologize, but I couldn't generate a response. Please try again."
	ReplyFailed      = "I encountered an error while processing your request. Please try again in a moment."
)

// SystemContext describes what the user is designing. Parameters and
// results are passed through to the prompt verbatim.
type SystemContext struct {
	SystemType        string          `json:"systemType"`
	CurrentParameters json.RawMessage `json:"currentParameters,omitempty"`
	DesignResults     json.RawMessage `json:"designResults,omitempty"`
}

type Chat struct {
	caller llm.Caller
	log    *logging.Logger
}

// NewChat accepts a nil caller; Reply then answers with ReplyUnavailable.
func NewChat(caller llm.Caller, logger *logging.Logger) *Chat {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Chat{caller: caller, log: logger}
}

// Reply never fails: model errors are logged and answered with a fixed text.
func (c *Chat) Reply(ctx context.Context, messages []llm.Message, sc SystemContext) string {
	if c == nil || c.caller == nil {
		return ReplyUnavailable
	}
	if len(messages) > chatHistoryWindow {
		messages = messages[len(messages)-chatHistoryWindow:]
	}
	out, err := c.caller.Complete(ctx, llm.Request{
		System:      buildChatSystemPrompt(sc),
		Messages:    messages,
		Temperature: chatTemperature,
		MaxTokens:   chatMaxTokens,
	})
	if err != nil {
		c.log.Error("chat completion failed",
			"provider", c.caller.Provider(),
			"class", llm.ClassifyError(err),
			"error", err,
		)
		return ReplyFailed
	}
	if strings.TrimSpace(out) == "" {
		return ReplyEmpty
	}
	return out
}
