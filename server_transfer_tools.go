package tellerd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"pkt.systems/tellerd/api"
	"pkt.systems/tellerd/banking"
	"pkt.systems/tellerd/internal/money"
)

type transferPrepareToolInput struct {
	CustomerID    string  `json:"customerId,omitempty" jsonschema:"Trusted customer id; injected by the server, any supplied value is overwritten"`
	FromAccountID string  `json:"from_account_id,omitempty" jsonschema:"Source account id"`
	ToAccountID   string  `json:"to_account_id,omitempty" jsonschema:"Destination account id"`
	Amount        float64 `json:"amount,omitempty" jsonschema:"Transfer amount in USD"`
	TransferDate  string  `json:"transfer_date,omitempty" jsonschema:"Transfer date, YYYY-MM-DD"`
}

type transferPrepareToolOutput struct {
	TransactionID string `json:"transaction_id,omitempty"`
	ExpiresAt     string `json:"expires_at,omitempty"`
}

// handleTransferPrepareTool is re-entrant: the platform may call it several
// times for one logical transfer while widgets fill in missing fields one at
// a time. Each widget continuation binds everything already known so no step
// loses earlier answers. A transaction is staged only once every field is
// present and valid; the tool itself never moves money.
func (s *server) handleTransferPrepareTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input transferPrepareToolInput) (*mcpsdk.CallToolResult, transferPrepareToolOutput, error) {
	d := dispatchFrom(ctx)
	if input.CustomerID == "" {
		return nil, transferPrepareToolOutput{}, fmt.Errorf("customerId is required")
	}
	threadID := d.threadID()
	if threadID == "" {
		return validationFailure("I can only set up a transfer inside an active conversation."), transferPrepareToolOutput{}, nil
	}

	input.FromAccountID = strings.TrimSpace(input.FromAccountID)
	input.ToAccountID = strings.TrimSpace(input.ToAccountID)
	input.TransferDate = strings.TrimSpace(input.TransferDate)
	bound := transferBoundParams(input)

	if input.FromAccountID == "" {
		w, err := s.accountPickerWidget(ctx, input.CustomerID, toolTransferPrepare, bound, "from_account_id", "")
		if err != nil {
			return nil, transferPrepareToolOutput{}, err
		}
		return widgetResult("Which account would you like to transfer from?", w), transferPrepareToolOutput{}, nil
	}
	if input.ToAccountID == "" {
		w, err := s.accountPickerWidget(ctx, input.CustomerID, toolTransferPrepare, bound, "to_account_id", input.FromAccountID)
		if err != nil {
			return nil, transferPrepareToolOutput{}, err
		}
		return widgetResult("Which account should receive the transfer?", w), transferPrepareToolOutput{}, nil
	}
	if input.Amount == 0 {
		w := api.DateTimeWidget("How much would you like to transfer?", "", "",
			api.NewContinuation(toolTransferPrepare, bound, "amount"))
		return widgetResult("How much would you like to transfer?", w), transferPrepareToolOutput{}, nil
	}
	minDate, maxDate := s.dateWindow(0, 30)
	if input.TransferDate == "" {
		w := api.DateTimeWidget("When should the transfer happen?",
			minDate.Format(dateLayout), maxDate.Format(dateLayout),
			api.NewContinuation(toolTransferPrepare, bound, "transfer_date"))
		return widgetResult("When should the transfer happen?", w), transferPrepareToolOutput{}, nil
	}

	// All fields present; validate before staging anything.
	if input.Amount < 0 {
		return validationFailure("The transfer amount must be greater than zero."), transferPrepareToolOutput{}, nil
	}
	if input.Amount > amountCeiling {
		return validationFailure(fmt.Sprintf("Transfers are limited to %s per transaction.",
			money.Format(d.locale(), amountCeiling))), transferPrepareToolOutput{}, nil
	}
	if input.FromAccountID == input.ToAccountID {
		return validationFailure("The source and destination accounts must be different."), transferPrepareToolOutput{}, nil
	}
	if _, err := parseDateInWindow(input.TransferDate, minDate, maxDate); err != nil {
		return validationFailure(err.Error()), transferPrepareToolOutput{}, nil
	}
	fromAccount, err := s.backend.Account(ctx, input.CustomerID, input.FromAccountID)
	if errors.Is(err, banking.ErrAccountNotFound) {
		return validationFailure("I couldn't find the source account. Please pick one of your accounts."), transferPrepareToolOutput{}, nil
	}
	if err != nil {
		return nil, transferPrepareToolOutput{}, fmt.Errorf("load source account: %w", err)
	}
	toAccount, err := s.backend.Account(ctx, input.CustomerID, input.ToAccountID)
	if errors.Is(err, banking.ErrAccountNotFound) {
		return validationFailure("I couldn't find the destination account. Please pick one of your accounts."), transferPrepareToolOutput{}, nil
	}
	if err != nil {
		return nil, transferPrepareToolOutput{}, fmt.Errorf("load destination account: %w", err)
	}

	txn := s.stagePending(threadID, pendingTransaction{
		Kind:          txnKindTransfer,
		CustomerID:    input.CustomerID,
		FromAccountID: input.FromAccountID,
		ToAccountID:   input.ToAccountID,
		Amount:        input.Amount,
		Date:          input.TransferDate,
	})

	summary := fmt.Sprintf("Transfer %s from %s (%s) to %s (%s) on %s.",
		money.Format(d.locale(), input.Amount),
		fromAccount.Name, fromAccount.MaskedNumber,
		toAccount.Name, toAccount.MaskedNumber,
		input.TransferDate)
	w := api.ConfirmationWidget(summary,
		api.NewContinuation(toolTransferResolve, map[string]any{
			"transaction_id": txn.TransactionID,
			"action":         "confirm",
		}, ""),
		api.NewContinuation(toolTransferResolve, map[string]any{
			"transaction_id": txn.TransactionID,
			"action":         "cancel",
		}, ""),
	)
	res := widgetResult("Please review and confirm this transfer.", w)
	return res, transferPrepareToolOutput{
		TransactionID: txn.TransactionID,
		ExpiresAt:     txn.ExpiresAt.Format(time.RFC3339),
	}, nil
}

func transferBoundParams(input transferPrepareToolInput) map[string]any {
	bound := map[string]any{}
	if input.FromAccountID != "" {
		bound["from_account_id"] = input.FromAccountID
	}
	if input.ToAccountID != "" {
		bound["to_account_id"] = input.ToAccountID
	}
	if input.Amount != 0 {
		bound["amount"] = input.Amount
	}
	if input.TransferDate != "" {
		bound["transfer_date"] = input.TransferDate
	}
	return bound
}

type transferResolveToolInput struct {
	CustomerID    string `json:"customerId,omitempty" jsonschema:"Trusted customer id; injected by the server, any supplied value is overwritten"`
	TransactionID string `json:"transaction_id,omitempty" jsonschema:"Staged transaction id from the confirmation widget"`
	Action        string `json:"action,omitempty" jsonschema:"confirm or cancel"`
}

type transferResolveToolOutput struct {
	Status             string `json:"status,omitempty"`
	ConfirmationNumber string `json:"confirmation_number,omitempty"`
	ProcessedAt        string `json:"processed_at,omitempty"`
	CorrelationID      string `json:"correlation_id,omitempty"`
}

// handleTransferResolveTool consumes the staged transaction exactly once.
// The entry is removed before the payment collaborator runs, so a crash
// mid-execution can never leave the transaction replayable.
func (s *server) handleTransferResolveTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input transferResolveToolInput) (*mcpsdk.CallToolResult, transferResolveToolOutput, error) {
	d := dispatchFrom(ctx)
	action := strings.ToLower(strings.TrimSpace(input.Action))
	if action != "confirm" && action != "cancel" {
		return validationFailure("The action must be either confirm or cancel."), transferResolveToolOutput{}, nil
	}
	if strings.TrimSpace(input.TransactionID) == "" {
		return validationFailure("A transaction id is required."), transferResolveToolOutput{}, nil
	}

	txn, status := s.takePending(d.threadID(), txnKindTransfer, strings.TrimSpace(input.TransactionID), input.CustomerID)
	if status != resolveTaken {
		return resolveFailure(), transferResolveToolOutput{}, nil
	}

	if action == "cancel" {
		s.metrics.transactionResolved(txnKindTransfer, "cancel")
		s.txnLog.Info("txn.cancel", "kind", txnKindTransfer, "transaction_id", txn.TransactionID, "thread_id", d.threadID())
		res := textResult(userText("No problem — I've cancelled that transfer. Nothing has been moved."))
		return res, transferResolveToolOutput{Status: "cancelled"}, nil
	}

	receipt, err := s.backend.ExecuteTransfer(ctx, banking.TransferRequest{
		CustomerID:    txn.CustomerID,
		FromAccountID: txn.FromAccountID,
		ToAccountID:   txn.ToAccountID,
		Amount:        txn.Amount,
		TransferDate:  txn.Date,
	})
	if err != nil {
		return nil, transferResolveToolOutput{}, fmt.Errorf("execute transfer: %w", err)
	}
	s.metrics.transactionResolved(txnKindTransfer, "confirm")
	s.txnLog.Info("txn.confirm.executed",
		"kind", txnKindTransfer,
		"transaction_id", txn.TransactionID,
		"thread_id", d.threadID(),
		"confirmation_number", receipt.ConfirmationNumber,
	)

	res := textResult(userText(fmt.Sprintf(
		"Done! Your transfer of %s is scheduled for %s. Your confirmation number is %s.",
		money.Format(d.locale(), txn.Amount), txn.Date, receipt.ConfirmationNumber)))
	return res, transferResolveToolOutput{
		Status:             "confirmed",
		ConfirmationNumber: receipt.ConfirmationNumber,
		ProcessedAt:        receipt.ProcessedAt.Format(time.RFC3339),
		CorrelationID:      d.correlation(),
	}, nil
}
