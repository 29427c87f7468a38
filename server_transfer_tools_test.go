package tellerd

import (
	"context"
	"strings"
	"testing"
	"time"

	"pkt.systems/tellerd/api"
	"pkt.systems/tellerd/internal/clock"
)

func newTransferTestServer(t *testing.T) (*server, context.Context, string) {
	t.Helper()
	clk := clock.NewManual(time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC))
	s := newTestServer(t, clk)
	customerID := authenticate(t, s, "thr-1", testPhoneAlex, testPINAlex)
	return s, testDispatch(s, "thr-1", testPhoneAlex, ""), customerID
}

func prepareTransfer(t *testing.T, s *server, ctx context.Context, input transferPrepareToolInput) (string, *api.Widget) {
	t.Helper()
	res, out, err := s.handleTransferPrepareTool(ctx, nil, input)
	if err != nil {
		t.Fatalf("prepare transfer: %v", err)
	}
	if out.TransactionID == "" {
		t.Fatalf("expected a staged transaction, got %+v", res)
	}
	return out.TransactionID, widgetFrom(t, res)
}

func TestTransferPrepareCollectsMissingFieldsOneWidgetAtATime(t *testing.T) {
	t.Parallel()

	s, ctx, customerID := newTransferTestServer(t)

	// No source account yet: the first widget picks one.
	res, out, err := s.handleTransferPrepareTool(ctx, nil, transferPrepareToolInput{CustomerID: customerID})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if out.TransactionID != "" {
		t.Fatalf("nothing may be staged while fields are missing")
	}
	w := widgetFrom(t, res)
	if w.Kind != api.WidgetOptions || w.Submit.InputSlot != "from_account_id" {
		t.Fatalf("unexpected first widget %+v", w)
	}
	if len(w.Options) != 2 {
		t.Fatalf("expected both accounts offered, got %d", len(w.Options))
	}

	// Source chosen: the destination picker excludes it.
	res, _, err = s.handleTransferPrepareTool(ctx, nil, transferPrepareToolInput{
		CustomerID:    customerID,
		FromAccountID: "ACC001",
	})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	w = widgetFrom(t, res)
	if w.Submit.InputSlot != "to_account_id" {
		t.Fatalf("unexpected second widget slot %q", w.Submit.InputSlot)
	}
	if len(w.Options) != 1 || w.Options[0].Value != "ACC002" {
		t.Fatalf("destination picker must exclude the source, got %+v", w.Options)
	}
	if w.Submit.BoundParameters["from_account_id"] != "ACC001" {
		t.Fatalf("continuation lost the chosen source: %+v", w.Submit.BoundParameters)
	}

	// Amount entry.
	res, _, err = s.handleTransferPrepareTool(ctx, nil, transferPrepareToolInput{
		CustomerID:    customerID,
		FromAccountID: "ACC001",
		ToAccountID:   "ACC002",
	})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	w = widgetFrom(t, res)
	if w.Kind != api.WidgetDateTime || w.Submit.InputSlot != "amount" {
		t.Fatalf("unexpected amount widget %+v", w)
	}

	// Date entry, bounded to the next 30 days, carrying everything collected.
	res, _, err = s.handleTransferPrepareTool(ctx, nil, transferPrepareToolInput{
		CustomerID:    customerID,
		FromAccountID: "ACC001",
		ToAccountID:   "ACC002",
		Amount:        250,
	})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	w = widgetFrom(t, res)
	if w.Submit.InputSlot != "transfer_date" {
		t.Fatalf("unexpected date widget slot %q", w.Submit.InputSlot)
	}
	if w.MinDate != "2026-09-01" || w.MaxDate != "2026-10-01" {
		t.Fatalf("unexpected date bounds [%s, %s]", w.MinDate, w.MaxDate)
	}
	bound := w.Submit.BoundParameters
	if bound["from_account_id"] != "ACC001" || bound["to_account_id"] != "ACC002" || bound["amount"] != 250.0 {
		t.Fatalf("continuation lost collected fields: %+v", bound)
	}
	if _, ok := bound["customerId"]; ok {
		t.Fatalf("trusted customer id must not be bound into the widget")
	}
}

func TestTransferPrepareStagesAndOffersConfirmation(t *testing.T) {
	t.Parallel()

	s, ctx, customerID := newTransferTestServer(t)
	txnID, w := prepareTransfer(t, s, ctx, transferPrepareToolInput{
		CustomerID:    customerID,
		FromAccountID: "ACC001",
		ToAccountID:   "ACC002",
		Amount:        250,
		TransferDate:  "2026-09-05",
	})

	if w.Kind != api.WidgetConfirmation {
		t.Fatalf("unexpected widget kind %q", w.Kind)
	}
	if !strings.Contains(w.Summary, "$250.00") || !strings.Contains(w.Summary, "2026-09-05") {
		t.Fatalf("unexpected summary %q", w.Summary)
	}
	for _, c := range []*api.Continuation{w.OnConfirm, w.OnCancel} {
		if c == nil || c.Tool != toolTransferResolve {
			t.Fatalf("unexpected resolve continuation %+v", c)
		}
		if c.BoundParameters["transaction_id"] != txnID {
			t.Fatalf("continuation must bind the staged transaction id")
		}
	}
	if w.OnConfirm.BoundParameters["action"] != "confirm" || w.OnCancel.BoundParameters["action"] != "cancel" {
		t.Fatalf("confirm/cancel actions swapped")
	}
	if _, ok := s.local.Get("thr-1", pendingKey(txnKindTransfer, txnID)); !ok {
		t.Fatalf("transaction not staged")
	}
}

func TestTransferPrepareValidationFailures(t *testing.T) {
	t.Parallel()

	s, ctx, customerID := newTransferTestServer(t)

	tests := []struct {
		name  string
		input transferPrepareToolInput
		want  string
	}{
		{
			"negative amount",
			transferPrepareToolInput{CustomerID: customerID, FromAccountID: "ACC001", ToAccountID: "ACC002", Amount: -5, TransferDate: "2026-09-05"},
			"greater than zero",
		},
		{
			"over ceiling",
			transferPrepareToolInput{CustomerID: customerID, FromAccountID: "ACC001", ToAccountID: "ACC002", Amount: 10000.01, TransferDate: "2026-09-05"},
			"$10,000.00",
		},
		{
			"same account",
			transferPrepareToolInput{CustomerID: customerID, FromAccountID: "ACC001", ToAccountID: "ACC001", Amount: 50, TransferDate: "2026-09-05"},
			"must be different",
		},
		{
			"date in the past",
			transferPrepareToolInput{CustomerID: customerID, FromAccountID: "ACC001", ToAccountID: "ACC002", Amount: 50, TransferDate: "2026-08-31"},
			"between",
		},
		{
			"date beyond window",
			transferPrepareToolInput{CustomerID: customerID, FromAccountID: "ACC001", ToAccountID: "ACC002", Amount: 50, TransferDate: "2026-10-02"},
			"between",
		},
		{
			"unknown source account",
			transferPrepareToolInput{CustomerID: customerID, FromAccountID: "ACC999", ToAccountID: "ACC002", Amount: 50, TransferDate: "2026-09-05"},
			"source account",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, out, err := s.handleTransferPrepareTool(ctx, nil, tc.input)
			if err != nil {
				t.Fatalf("prepare: %v", err)
			}
			if res == nil || !res.IsError {
				t.Fatalf("expected user-facing error, got %+v", res)
			}
			if out.TransactionID != "" {
				t.Fatalf("rejected input must not stage a transaction")
			}
			if text := contentText(t, res); !strings.Contains(text, tc.want) {
				t.Fatalf("unexpected message %q, want substring %q", text, tc.want)
			}
		})
	}
}

func TestTransferConfirmExecutesExactlyOnce(t *testing.T) {
	t.Parallel()

	s, ctx, customerID := newTransferTestServer(t)
	txnID, _ := prepareTransfer(t, s, ctx, transferPrepareToolInput{
		CustomerID:    customerID,
		FromAccountID: "ACC001",
		ToAccountID:   "ACC002",
		Amount:        250,
		TransferDate:  "2026-09-05",
	})

	res, out, err := s.handleTransferResolveTool(ctx, nil, transferResolveToolInput{
		CustomerID:    customerID,
		TransactionID: txnID,
		Action:        "confirm",
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if out.Status != "confirmed" || out.ConfirmationNumber == "" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if !strings.Contains(contentText(t, res), out.ConfirmationNumber) {
		t.Fatalf("confirmation number missing from user text")
	}

	// A second confirm of the same transaction must fail like a cancel would.
	res, out, err = s.handleTransferResolveTool(ctx, nil, transferResolveToolInput{
		CustomerID:    customerID,
		TransactionID: txnID,
		Action:        "confirm",
	})
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if !res.IsError || out.Status != "" {
		t.Fatalf("expected second resolve to fail, got %+v", out)
	}
	if contentText(t, res) != resolveFailureMessage {
		t.Fatalf("unexpected failure text %q", contentText(t, res))
	}
}

func TestTransferCancelMovesNothing(t *testing.T) {
	t.Parallel()

	s, ctx, customerID := newTransferTestServer(t)
	txnID, _ := prepareTransfer(t, s, ctx, transferPrepareToolInput{
		CustomerID:    customerID,
		FromAccountID: "ACC001",
		ToAccountID:   "ACC002",
		Amount:        250,
		TransferDate:  "2026-09-05",
	})

	_, out, err := s.handleTransferResolveTool(ctx, nil, transferResolveToolInput{
		CustomerID:    customerID,
		TransactionID: txnID,
		Action:        "cancel",
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if out.Status != "cancelled" || out.ConfirmationNumber != "" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if _, ok := s.local.Get("thr-1", pendingKey(txnKindTransfer, txnID)); ok {
		t.Fatalf("cancelled transaction must be consumed")
	}
}

func TestTransferResolveForeignTransactionIndistinguishableFromMissing(t *testing.T) {
	t.Parallel()

	s, ctx, customerID := newTransferTestServer(t)
	txnID, _ := prepareTransfer(t, s, ctx, transferPrepareToolInput{
		CustomerID:    customerID,
		FromAccountID: "ACC001",
		ToAccountID:   "ACC002",
		Amount:        250,
		TransferDate:  "2026-09-05",
	})

	foreign, _, err := s.handleTransferResolveTool(ctx, nil, transferResolveToolInput{
		CustomerID:    "CUST002",
		TransactionID: txnID,
		Action:        "confirm",
	})
	if err != nil {
		t.Fatalf("foreign resolve: %v", err)
	}
	missing, _, err := s.handleTransferResolveTool(ctx, nil, transferResolveToolInput{
		CustomerID:    "CUST002",
		TransactionID: "no-such-id",
		Action:        "confirm",
	})
	if err != nil {
		t.Fatalf("missing resolve: %v", err)
	}
	if contentText(t, foreign) != contentText(t, missing) {
		t.Fatalf("ownership mismatch and missing entry must read identically")
	}

	// The legitimate owner can still confirm afterwards.
	_, out, err := s.handleTransferResolveTool(ctx, nil, transferResolveToolInput{
		CustomerID:    customerID,
		TransactionID: txnID,
		Action:        "confirm",
	})
	if err != nil {
		t.Fatalf("owner resolve: %v", err)
	}
	if out.Status != "confirmed" {
		t.Fatalf("owner should still be able to confirm, got %+v", out)
	}
}

func TestTransferResolveRejectsUnknownAction(t *testing.T) {
	t.Parallel()

	s, ctx, customerID := newTransferTestServer(t)
	res, _, err := s.handleTransferResolveTool(ctx, nil, transferResolveToolInput{
		CustomerID:    customerID,
		TransactionID: "whatever",
		Action:        "retry",
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res == nil || !res.IsError {
		t.Fatalf("expected user-facing error for unknown action")
	}
}
