// Package assistant holds the language-model backed helpers: BOM text
// enhancement, the engineering chat and rule-based parameter warnings.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joelkehle/cip-designer/internal/cip"
	"github.com/joelkehle/cip-designer/internal/llm"
	"github.com/joelkehle/cip-designer/internal/logging"
)

const (
	enhanceTemperature = 0.3
	enhanceMaxTokens   = 2000
)

var (
	ErrEmptyReply    = errors.New("empty enhancement reply")
	ErrNotArray      = errors.New("enhancement reply is not a JSON array")
	ErrNoUsableLines = errors.New("enhancement reply has no usable lines")
)

// Enhancer rewrites BOM specification and comment text through an LLM.
type Enhancer struct {
	caller  llm.Caller
	timeout time.Duration
	log     *logging.Logger
}

func NewEnhancer(caller llm.Caller, timeout time.Duration, logger *logging.Logger) *Enhancer {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Enhancer{caller: caller, timeout: timeout, log: logger}
}

// Enhance returns a copy of result with richer text. Item names, quantities
// and costs always come from result; only non-empty specification and
// comments strings are taken from the reply, matched by index. Any failure
// is returned so the caller can fall back to result.
func (e *Enhancer) Enhance(ctx context.Context, in cip.DesignInput, result cip.DesignResult) (cip.DesignResult, error) {
	if e == nil || e.caller == nil {
		return result, llm.ErrNotConfigured
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := e.caller.Complete(ctx, llm.Request{
		System:      enhanceSystemPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: buildEnhancePrompt(in, result)}},
		Temperature: enhanceTemperature,
		MaxTokens:   enhanceMaxTokens,
	})
	if err != nil {
		return result, fmt.Errorf("enhance bom: %w", err)
	}
	e.log.Debug("enhancement reply received",
		"provider", e.caller.Provider(),
		"latency_ms", time.Since(start).Milliseconds(),
		"bytes", len(raw),
	)

	lines, err := parseEnhancedLines(raw)
	if err != nil {
		return result, err
	}
	return mergeEnhancedLines(result, lines)
}

type enhancedLine struct {
	Specification string
	Comments      string
}

func parseEnhancedLines(raw string) ([]enhancedLine, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyReply
	}
	var arr []json.RawMessage
	if err := json.Unmarshal([]byte(llm.ExtractJSONArray(raw)), &arr); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return nil, fmt.Errorf("parse enhancement reply: %w", err)
		}
		return nil, ErrNotArray
	}

	out := make([]enhancedLine, len(arr))
	for i, item := range arr {
		// Lines that are not objects or carry non-string text keep the
		// computed values.
		var fields map[string]any
		if err := json.Unmarshal(item, &fields); err != nil {
			continue
		}
		out[i].Specification = stringField(fields, "specification")
		out[i].Comments = stringField(fields, "comments")
	}
	return out, nil
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return strings.TrimSpace(s)
}

func mergeEnhancedLines(result cip.DesignResult, lines []enhancedLine) (cip.DesignResult, error) {
	out := result.Clone()
	changed := 0
	for i := range out.Bom {
		if i >= len(lines) {
			break
		}
		if lines[i].Specification != "" {
			out.Bom[i].Specification = lines[i].Specification
			changed++
		}
		if lines[i].Comments != "" {
			out.Bom[i].Comments = lines[i].Comments
			changed++
		}
	}
	if changed == 0 {
		return result, ErrNoUsableLines
	}
	return out, nil
}
