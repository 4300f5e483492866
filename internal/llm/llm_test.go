package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMessager struct {
	params anthropic.MessageNewParams
	resp   *anthropic.Message
	err    error
}

func (f *fakeMessager) New(_ context.Context, params anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	f.params = params
	return f.resp, f.err
}

type fakeChatter struct {
	req  openai.ChatCompletionRequest
	resp openai.ChatCompletionResponse
	err  error
}

func (f *fakeChatter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.req = req
	return f.resp, f.err
}

func TestAnthropicCallerBuildsParams(t *testing.T) {
	fm := &fakeMessager{resp: &anthropic.Message{Content: []anthropic.ContentBlockUnion{
		{Type: "text", Text: "hello "},
		{Type: "tool_use"},
		{Type: "text", Text: "world"},
	}}}
	c := newAnthropicCaller(fm, "")

	out, err := c.Complete(context.Background(), Request{
		System: "sys",
		Messages: []Message{
			{Role: RoleUser, Content: "q1"},
			{Role: RoleAssistant, Content: "a1"},
			{Role: RoleUser, Content: "q2"},
		},
		Temperature: 0.3,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)
	assert.Equal(t, anthropic.ModelClaudeSonnet4_20250514, fm.params.Model)
	assert.Equal(t, int64(2000), fm.params.MaxTokens)
	require.Len(t, fm.params.System, 1)
	assert.Equal(t, "sys", fm.params.System[0].Text)
	require.Len(t, fm.params.Messages, 3)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, fm.params.Messages[1].Role)
	assert.Equal(t, ProviderAnthropic, c.Provider())
}

func TestAnthropicCallerPropagatesError(t *testing.T) {
	c := newAnthropicCaller(&fakeMessager{err: errors.New("boom")}, "claude-x")
	_, err := c.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "q"}}})
	assert.EqualError(t, err, "boom")
}

func TestOpenAICallerBuildsRequest(t *testing.T) {
	fc := &fakeChatter{resp: openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{
		{Message: openai.ChatCompletionMessage{Content: "reply"}},
	}}}
	c := newOpenAICaller(fc, "")

	out, err := c.Complete(context.Background(), Request{
		System:    "sys",
		Messages:  []Message{{Role: RoleUser, Content: "q"}, {Role: RoleAssistant, Content: "a"}},
		MaxTokens: 800,
	})
	require.NoError(t, err)
	assert.Equal(t, "reply", out)
	assert.Equal(t, openai.GPT4oMini, fc.req.Model)
	assert.Equal(t, 800, fc.req.MaxTokens)
	require.Len(t, fc.req.Messages, 3)
	assert.Equal(t, openai.ChatMessageRoleSystem, fc.req.Messages[0].Role)
	assert.Equal(t, openai.ChatMessageRoleAssistant, fc.req.Messages[2].Role)
}

func TestOpenAICallerNoChoices(t *testing.T) {
	c := newOpenAICaller(&fakeChatter{}, "gpt-4o")
	_, err := c.Complete(context.Background(), Request{})
	assert.Error(t, err)
}

func TestNewCallerSelection(t *testing.T) {
	_, err := NewCaller(Config{})
	assert.ErrorIs(t, err, ErrNotConfigured)

	c, err := NewCaller(Config{AnthropicAPIKey: "a", OpenAIAPIKey: "o"})
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, c.Provider())

	c, err = NewCaller(Config{OpenAIAPIKey: "o"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, c.Provider())

	c, err = NewCaller(Config{Provider: "OpenAI", AnthropicAPIKey: "a", OpenAIAPIKey: "o"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, c.Provider())

	_, err = NewCaller(Config{Provider: "openai", AnthropicAPIKey: "a"})
	assert.Error(t, err)

	_, err = NewCaller(Config{Provider: "bard", AnthropicAPIKey: "a"})
	assert.Error(t, err)
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripCodeFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `[1]`, StripCodeFences("  [1]  "))
}

func TestExtractJSONArray(t *testing.T) {
	assert.Equal(t, `[{"a":1},{"b":[2]}]`, ExtractJSONArray("Here you go:\n```json\n[{\"a\":1},{\"b\":[2]}]\n```\nThanks"))
	assert.Equal(t, `{"a":1}`, ExtractJSONArray("```json\n{\"a\":1}\n```"))
}

func TestClassifyError(t *testing.T) {
	assert.Equal(t, "none", ClassifyError(nil))
	assert.Equal(t, "timeout", ClassifyError(fmt.Errorf("wrap: %w", context.DeadlineExceeded)))
	assert.Equal(t, "rate_limit", ClassifyError(errors.New("status code: 429 too many requests")))
	assert.Equal(t, "client", ClassifyError(errors.New("status code: 400 bad request")))
	assert.Equal(t, "server", ClassifyError(errors.New("failed after 5 retries while waiting 4 seconds")))
}
