package tellerd

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"pkt.systems/tellerd/banking"
)

// toolErrorEnvelope is the structured payload tellerd returns for
// dispatch-level failures. Handler-local conditions (validation, transaction
// resolution misses) never take this path; they are normal results with
// isError set. Only infrastructure failures from collaborators propagate here.
type toolErrorEnvelope struct {
	ErrorCode string `json:"error_code"`
	Detail    string `json:"detail,omitempty"`
	Retryable bool   `json:"retryable"`
}

func withStructuredToolErrors[In, Out any](h mcpsdk.ToolHandlerFor[In, Out]) mcpsdk.ToolHandlerFor[In, Out] {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input In) (*mcpsdk.CallToolResult, Out, error) {
		res, out, err := h(ctx, req, input)
		if err == nil {
			return res, out, nil
		}
		var zero Out
		return nil, zero, toolError{Envelope: classifyToolError(err)}
	}
}

type toolError struct {
	Envelope toolErrorEnvelope
}

func (e toolError) Error() string {
	envelope := map[string]any{"error": e.Envelope}
	encoded, err := json.Marshal(envelope)
	if err != nil {
		return `{"error":{"error_code":"tool_error","detail":"failed to encode error envelope"}}`
	}
	return string(encoded)
}

func classifyToolError(err error) toolErrorEnvelope {
	env := toolErrorEnvelope{ErrorCode: "tool_error", Detail: strings.TrimSpace(err.Error())}
	switch {
	case errors.Is(err, banking.ErrProfileNotFound),
		errors.Is(err, banking.ErrAccountNotFound),
		errors.Is(err, banking.ErrLoanNotFound),
		errors.Is(err, banking.ErrCardNotFound):
		env.ErrorCode = "not_found"
		return env
	}
	lower := strings.ToLower(env.Detail)
	switch {
	case strings.Contains(lower, "required"),
		strings.Contains(lower, "must be"),
		strings.Contains(lower, "invalid"),
		strings.Contains(lower, "exceed"),
		strings.Contains(lower, "decode "):
		env.ErrorCode = "invalid_argument"
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "deadline"):
		env.ErrorCode = "timeout"
		env.Retryable = true
	case strings.Contains(lower, "temporar"), strings.Contains(lower, "try again"),
		strings.Contains(lower, "unavailable"):
		env.ErrorCode = "unavailable"
		env.Retryable = true
	}
	return env
}
