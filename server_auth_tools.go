package tellerd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"pkt.systems/tellerd/api"
	"pkt.systems/tellerd/banking"
)

func pinEntryWidget(prompt string) *api.Widget {
	return api.DateTimeWidget(prompt, "", "",
		api.NewContinuation(toolVerifyPIN, map[string]any{}, "pin"))
}

type welcomeToolInput struct{}

type welcomeToolOutput struct {
	ProfileKnown bool   `json:"profile_known"`
	Greeting     string `json:"greeting,omitempty"`
}

// handleWelcomeTool resolves the caller's profile from the line identity in
// the caller tier. A PIN is only ever requested once a profile is on hand;
// an unknown number goes straight to a live agent so enrollment status can't
// be probed through a retry oracle.
func (s *server) handleWelcomeTool(ctx context.Context, _ *mcpsdk.CallToolRequest, _ welcomeToolInput) (*mcpsdk.CallToolResult, welcomeToolOutput, error) {
	d := dispatchFrom(ctx)
	phone := d.callerPhone()
	if phone == "" {
		s.authLog.Info("auth.welcome.no_caller_identity", "thread_id", d.threadID())
		return handoffResult(
			"I wasn't able to identify your phone line, so I'll connect you with an agent who can help.",
			&api.TransferToLiveAgent{Reason: "unidentified_caller", ThreadID: d.threadID()},
		), welcomeToolOutput{}, nil
	}

	profile, err := s.backend.LookupByPhone(ctx, phone)
	if errors.Is(err, banking.ErrProfileNotFound) {
		s.authLog.Info("auth.welcome.profile_miss", "thread_id", d.threadID())
		return handoffResult(
			"I couldn't match your phone number to an enrolled profile, so I'll connect you with an agent who can help.",
			&api.TransferToLiveAgent{Reason: "unrecognized_caller", ThreadID: d.threadID()},
		), welcomeToolOutput{}, nil
	}
	if err != nil {
		return nil, welcomeToolOutput{}, fmt.Errorf("profile lookup: %w", err)
	}

	greeting := fmt.Sprintf("Welcome back, %s. For your security, please enter your PIN.", profile.DisplayName)
	res := widgetResult(greeting, pinEntryWidget("Please enter your PIN."))
	return res, welcomeToolOutput{ProfileKnown: true, Greeting: greeting}, nil
}

type verifyPINToolInput struct {
	PIN string `json:"pin,omitempty" jsonschema:"PIN digits collected by the platform's entry widget"`
}

type verifyPINToolOutput struct {
	Authenticated bool `json:"authenticated"`
}

// handleVerifyPINTool fails closed: the Global store's customer id is written
// only after a successful verification, and a mismatch re-issues the entry
// widget. Retries are unbounded; lockout policy belongs to the real directory
// collaborator, not this flow.
func (s *server) handleVerifyPINTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input verifyPINToolInput) (*mcpsdk.CallToolResult, verifyPINToolOutput, error) {
	d := dispatchFrom(ctx)
	threadID := d.threadID()
	if threadID == "" {
		return validationFailure("I can only verify a PIN inside an active conversation."), verifyPINToolOutput{}, nil
	}
	if strings.TrimSpace(input.PIN) == "" {
		return widgetResult("Please enter your PIN to continue.", pinEntryWidget("Please enter your PIN.")),
			verifyPINToolOutput{}, nil
	}

	phone := d.callerPhone()
	profile, err := s.backend.LookupByPhone(ctx, phone)
	if errors.Is(err, banking.ErrProfileNotFound) || phone == "" {
		s.authLog.Warn("auth.verify_pin.no_profile", "thread_id", threadID)
		return handoffResult(
			"I couldn't match your phone number to an enrolled profile, so I'll connect you with an agent who can help.",
			&api.TransferToLiveAgent{Reason: "unrecognized_caller", ThreadID: threadID},
		), verifyPINToolOutput{}, nil
	}
	if err != nil {
		return nil, verifyPINToolOutput{}, fmt.Errorf("profile lookup: %w", err)
	}

	ok, err := s.backend.VerifyPIN(ctx, profile.CustomerID, input.PIN)
	if err != nil {
		return nil, verifyPINToolOutput{}, fmt.Errorf("pin verification: %w", err)
	}
	if !ok {
		s.authLog.Info("auth.verify_pin.mismatch", "thread_id", threadID)
		return widgetResult(
			"That PIN doesn't match our records. Please try again.",
			pinEntryWidget("Please re-enter your PIN."),
		), verifyPINToolOutput{}, nil
	}

	// Re-authentication replaces any prior customer id for the thread.
	s.global.Set(threadID, globalKeyCustomerID, profile.CustomerID)
	s.authLog.Info("auth.verify_pin.verified", "thread_id", threadID, "customer_id", profile.CustomerID)

	res := &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			userText(fmt.Sprintf("Thanks, %s — you're verified. How can I help you today?", profile.DisplayName)),
			assistantText("The caller is now authenticated. Re-list tools before offering account actions."),
		},
		Meta: mcpsdk.Meta{api.MetaRefreshCapabilities: threadID},
	}
	return res, verifyPINToolOutput{Authenticated: true}, nil
}
