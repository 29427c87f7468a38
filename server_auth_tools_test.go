package tellerd

import (
	"strings"
	"testing"

	"pkt.systems/tellerd/api"
)

func TestWelcomeWithoutCallerIdentityHandsOff(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	ctx := testDispatch(s, "thr-1", "", "")

	res, out, err := s.handleWelcomeTool(ctx, nil, welcomeToolInput{})
	if err != nil {
		t.Fatalf("welcome: %v", err)
	}
	if out.ProfileKnown {
		t.Fatalf("expected unknown profile")
	}
	transfer := liveAgentTransferFrom(t, res)
	if transfer.Reason != "unidentified_caller" {
		t.Fatalf("unexpected hand-off reason %q", transfer.Reason)
	}
	if transfer.ThreadID != "thr-1" {
		t.Fatalf("unexpected thread id %q", transfer.ThreadID)
	}
}

func TestWelcomeUnenrolledNumberHandsOffWithoutPINPrompt(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	ctx := testDispatch(s, "thr-1", "+15559999", "")

	res, _, err := s.handleWelcomeTool(ctx, nil, welcomeToolInput{})
	if err != nil {
		t.Fatalf("welcome: %v", err)
	}
	transfer := liveAgentTransferFrom(t, res)
	if transfer.Reason != "unrecognized_caller" {
		t.Fatalf("unexpected hand-off reason %q", transfer.Reason)
	}
	if _, ok := res.Meta[api.MetaWidget]; ok {
		t.Fatalf("unenrolled caller must not be prompted for a PIN")
	}
}

func TestWelcomeKnownCallerPromptsForPIN(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	ctx := testDispatch(s, "thr-1", testPhoneAlex, "")

	res, out, err := s.handleWelcomeTool(ctx, nil, welcomeToolInput{})
	if err != nil {
		t.Fatalf("welcome: %v", err)
	}
	if !out.ProfileKnown {
		t.Fatalf("expected a known profile")
	}
	if !strings.Contains(out.Greeting, "Alex Rivera") {
		t.Fatalf("greeting should address the caller, got %q", out.Greeting)
	}
	w := widgetFrom(t, res)
	if w.Kind != api.WidgetDateTime {
		t.Fatalf("unexpected widget kind %q", w.Kind)
	}
	if w.Submit == nil || w.Submit.Tool != toolVerifyPIN || w.Submit.InputSlot != "pin" {
		t.Fatalf("unexpected PIN continuation %+v", w.Submit)
	}
	// The greeting never authenticates the thread by itself.
	if _, ok := s.global.Get("thr-1", globalKeyCustomerID); ok {
		t.Fatalf("welcome must not write the customer id")
	}
}

func TestVerifyPINRequiresThread(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	ctx := testDispatch(s, "", testPhoneAlex, "")

	res, out, err := s.handleVerifyPINTool(ctx, nil, verifyPINToolInput{PIN: testPINAlex})
	if err != nil {
		t.Fatalf("verify pin: %v", err)
	}
	if out.Authenticated || res == nil || !res.IsError {
		t.Fatalf("expected user-facing failure without a thread, got %+v", res)
	}
}

func TestVerifyPINEmptyInputReissuesWidget(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	ctx := testDispatch(s, "thr-1", testPhoneAlex, "")

	res, out, err := s.handleVerifyPINTool(ctx, nil, verifyPINToolInput{PIN: "  "})
	if err != nil {
		t.Fatalf("verify pin: %v", err)
	}
	if out.Authenticated {
		t.Fatalf("blank PIN must not authenticate")
	}
	w := widgetFrom(t, res)
	if w.Submit == nil || w.Submit.Tool != toolVerifyPIN {
		t.Fatalf("expected a PIN re-entry continuation, got %+v", w.Submit)
	}
}

func TestVerifyPINMismatchReissuesWidget(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	ctx := testDispatch(s, "thr-1", testPhoneAlex, "")

	res, out, err := s.handleVerifyPINTool(ctx, nil, verifyPINToolInput{PIN: "0000"})
	if err != nil {
		t.Fatalf("verify pin: %v", err)
	}
	if out.Authenticated {
		t.Fatalf("wrong PIN must not authenticate")
	}
	widgetFrom(t, res)
	if _, ok := s.global.Get("thr-1", globalKeyCustomerID); ok {
		t.Fatalf("failed verification must not write the customer id")
	}
}

func TestVerifyPINSuccessAuthenticatesThread(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	ctx := testDispatch(s, "thr-1", testPhoneAlex, "")

	res, out, err := s.handleVerifyPINTool(ctx, nil, verifyPINToolInput{PIN: testPINAlex})
	if err != nil {
		t.Fatalf("verify pin: %v", err)
	}
	if !out.Authenticated {
		t.Fatalf("expected authentication")
	}
	if got := res.Meta[api.MetaRefreshCapabilities]; got != "thr-1" {
		t.Fatalf("expected capability refresh signal for thread, got %#v", got)
	}
	v, ok := s.global.Get("thr-1", globalKeyCustomerID)
	if !ok || v.(string) == "" {
		t.Fatalf("expected customer id in global store")
	}
}

func TestVerifyPINUnknownNumberHandsOff(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	ctx := testDispatch(s, "thr-1", "+15559999", "")

	res, _, err := s.handleVerifyPINTool(ctx, nil, verifyPINToolInput{PIN: "1234"})
	if err != nil {
		t.Fatalf("verify pin: %v", err)
	}
	transfer := liveAgentTransferFrom(t, res)
	if transfer.Reason != "unrecognized_caller" {
		t.Fatalf("unexpected hand-off reason %q", transfer.Reason)
	}
}

func TestHandoffToolDefaultsReason(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	authenticate(t, s, "thr-1", testPhoneAlex, testPINAlex)
	ctx := testDispatch(s, "thr-1", testPhoneAlex, "")

	res, out, err := s.handleHandoffTool(ctx, nil, handoffToolInput{})
	if err != nil {
		t.Fatalf("handoff: %v", err)
	}
	if !out.Transferred {
		t.Fatalf("expected transfer")
	}
	transfer := liveAgentTransferFrom(t, res)
	if transfer.Reason != "customer_request" {
		t.Fatalf("unexpected default reason %q", transfer.Reason)
	}
	if transfer.CustomerID == "" {
		t.Fatalf("authenticated hand-off should carry the customer id")
	}
}
