package tellerd

import (
	"context"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"pkt.systems/tellerd/api"
)

type handoffToolInput struct {
	Reason string `json:"reason,omitempty" jsonschema:"Optional machine-readable hand-off cause"`
}

type handoffToolOutput struct {
	Transferred bool `json:"transferred"`
}

// handleHandoffTool is callable in every authentication state. The customer
// id, when the thread happens to be authenticated, rides along for agent
// context; it is never required.
func (s *server) handleHandoffTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input handoffToolInput) (*mcpsdk.CallToolResult, handoffToolOutput, error) {
	d := dispatchFrom(ctx)
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		reason = "customer_request"
	}
	s.dispatchLog.Info("handoff.requested", "thread_id", d.threadID(), "reason", reason)
	res := handoffResult(
		"I'll connect you with a live agent now. One moment please.",
		&api.TransferToLiveAgent{
			Reason:     reason,
			CustomerID: d.customer(),
			ThreadID:   d.threadID(),
		},
	)
	return res, handoffToolOutput{Transferred: true}, nil
}
