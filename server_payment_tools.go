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

// paymentCoolingOffDays is the earliest offset for an extra loan payment.
// Same-day and next-day payments are deliberately not offered.
const paymentCoolingOffDays = 3

type mortgageOverviewToolInput struct {
	CustomerID string `json:"customerId,omitempty" jsonschema:"Trusted customer id; injected by the server, any supplied value is overwritten"`
}

type mortgageOverviewToolOutput struct {
	Loans []banking.Loan `json:"loans"`
}

func (s *server) handleMortgageOverviewTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input mortgageOverviewToolInput) (*mcpsdk.CallToolResult, mortgageOverviewToolOutput, error) {
	d := dispatchFrom(ctx)
	if input.CustomerID == "" {
		return nil, mortgageOverviewToolOutput{}, fmt.Errorf("customerId is required")
	}
	loans, err := s.backend.LoansFor(ctx, input.CustomerID)
	if err != nil {
		return nil, mortgageOverviewToolOutput{}, fmt.Errorf("list loans: %w", err)
	}
	if len(loans) == 0 {
		return textResult(userText("I don't see any mortgage loans on file for you.")), mortgageOverviewToolOutput{Loans: loans}, nil
	}

	var b strings.Builder
	for _, l := range loans {
		fmt.Fprintf(&b, "%s: principal %s at %.3f%%, monthly payment %s, next payment due %s.\n",
			l.Product,
			money.Format(d.locale(), l.PrincipalBalance),
			l.RatePercent,
			money.Format(d.locale(), l.MonthlyPayment),
			l.NextPaymentDue)
	}
	res := textResult(userText(strings.TrimRight(b.String(), "\n")))
	return res, mortgageOverviewToolOutput{Loans: loans}, nil
}

type paymentPrepareToolInput struct {
	CustomerID  string  `json:"customerId,omitempty" jsonschema:"Trusted customer id; injected by the server, any supplied value is overwritten"`
	LoanID      string  `json:"loan_id,omitempty" jsonschema:"Loan to pay against"`
	Amount      float64 `json:"amount,omitempty" jsonschema:"Payment amount in USD"`
	PaymentDate string  `json:"payment_date,omitempty" jsonschema:"Payment date, YYYY-MM-DD"`
}

type paymentPrepareToolOutput struct {
	TransactionID string `json:"transaction_id,omitempty"`
	ExpiresAt     string `json:"expires_at,omitempty"`
}

// handlePaymentPrepareTool mirrors the transfer prepare flow for extra loan
// payments, with a cooling-off window on the payment date.
func (s *server) handlePaymentPrepareTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input paymentPrepareToolInput) (*mcpsdk.CallToolResult, paymentPrepareToolOutput, error) {
	d := dispatchFrom(ctx)
	if input.CustomerID == "" {
		return nil, paymentPrepareToolOutput{}, fmt.Errorf("customerId is required")
	}
	threadID := d.threadID()
	if threadID == "" {
		return validationFailure("I can only set up a payment inside an active conversation."), paymentPrepareToolOutput{}, nil
	}

	input.LoanID = strings.TrimSpace(input.LoanID)
	input.PaymentDate = strings.TrimSpace(input.PaymentDate)
	bound := paymentBoundParams(input)

	if input.LoanID == "" {
		w, err := s.loanPickerWidget(ctx, input.CustomerID, bound)
		if err != nil {
			return nil, paymentPrepareToolOutput{}, err
		}
		return widgetResult("Which loan would you like to pay against?", w), paymentPrepareToolOutput{}, nil
	}
	if input.Amount == 0 {
		w := api.DateTimeWidget("How much would you like to pay?", "", "",
			api.NewContinuation(toolPaymentPrepare, bound, "amount"))
		return widgetResult("How much would you like to pay?", w), paymentPrepareToolOutput{}, nil
	}
	minDate, maxDate := s.dateWindow(paymentCoolingOffDays, 30)
	if input.PaymentDate == "" {
		w := api.DateTimeWidget("When should the payment be made?",
			minDate.Format(dateLayout), maxDate.Format(dateLayout),
			api.NewContinuation(toolPaymentPrepare, bound, "payment_date"))
		return widgetResult("When should the payment be made?", w), paymentPrepareToolOutput{}, nil
	}

	if input.Amount < 0 {
		return validationFailure("The payment amount must be greater than zero."), paymentPrepareToolOutput{}, nil
	}
	if input.Amount > amountCeiling {
		return validationFailure(fmt.Sprintf("Payments are limited to %s per transaction.",
			money.Format(d.locale(), amountCeiling))), paymentPrepareToolOutput{}, nil
	}
	if _, err := parseDateInWindow(input.PaymentDate, minDate, maxDate); err != nil {
		return validationFailure(err.Error()), paymentPrepareToolOutput{}, nil
	}
	loan, err := s.backend.Loan(ctx, input.CustomerID, input.LoanID)
	if errors.Is(err, banking.ErrLoanNotFound) {
		return validationFailure("I couldn't find that loan. Please pick one of your loans."), paymentPrepareToolOutput{}, nil
	}
	if err != nil {
		return nil, paymentPrepareToolOutput{}, fmt.Errorf("load loan: %w", err)
	}

	txn := s.stagePending(threadID, pendingTransaction{
		Kind:       txnKindPayment,
		CustomerID: input.CustomerID,
		LoanID:     input.LoanID,
		Amount:     input.Amount,
		Date:       input.PaymentDate,
	})

	summary := fmt.Sprintf("Pay %s toward %s (%s) on %s.",
		money.Format(d.locale(), input.Amount), loan.Product, loan.ID, input.PaymentDate)
	w := api.ConfirmationWidget(summary,
		api.NewContinuation(toolPaymentResolve, map[string]any{
			"transaction_id": txn.TransactionID,
			"action":         "confirm",
		}, ""),
		api.NewContinuation(toolPaymentResolve, map[string]any{
			"transaction_id": txn.TransactionID,
			"action":         "cancel",
		}, ""),
	)
	res := widgetResult("Please review and confirm this payment.", w)
	return res, paymentPrepareToolOutput{
		TransactionID: txn.TransactionID,
		ExpiresAt:     txn.ExpiresAt.Format(time.RFC3339),
	}, nil
}

func paymentBoundParams(input paymentPrepareToolInput) map[string]any {
	bound := map[string]any{}
	if input.LoanID != "" {
		bound["loan_id"] = input.LoanID
	}
	if input.Amount != 0 {
		bound["amount"] = input.Amount
	}
	if input.PaymentDate != "" {
		bound["payment_date"] = input.PaymentDate
	}
	return bound
}

func (s *server) loanPickerWidget(ctx context.Context, customerID string, bound map[string]any) (*api.Widget, error) {
	loans, err := s.backend.LoansFor(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	options := make([]api.Option, 0, len(loans))
	for _, l := range loans {
		options = append(options, api.Option{
			Value:       l.ID,
			Label:       l.Product,
			Description: fmt.Sprintf("next payment due %s", l.NextPaymentDue),
		})
	}
	return api.OptionsWidget("Choose a loan.", options, api.NewContinuation(toolPaymentPrepare, bound, "loan_id")), nil
}

type paymentResolveToolInput struct {
	CustomerID    string `json:"customerId,omitempty" jsonschema:"Trusted customer id; injected by the server, any supplied value is overwritten"`
	TransactionID string `json:"transaction_id,omitempty" jsonschema:"Staged transaction id from the confirmation widget"`
	Action        string `json:"action,omitempty" jsonschema:"confirm or cancel"`
}

type paymentResolveToolOutput struct {
	Status             string `json:"status,omitempty"`
	ConfirmationNumber string `json:"confirmation_number,omitempty"`
	ProcessedAt        string `json:"processed_at,omitempty"`
	CorrelationID      string `json:"correlation_id,omitempty"`
}

func (s *server) handlePaymentResolveTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input paymentResolveToolInput) (*mcpsdk.CallToolResult, paymentResolveToolOutput, error) {
	d := dispatchFrom(ctx)
	action := strings.ToLower(strings.TrimSpace(input.Action))
	if action != "confirm" && action != "cancel" {
		return validationFailure("The action must be either confirm or cancel."), paymentResolveToolOutput{}, nil
	}
	if strings.TrimSpace(input.TransactionID) == "" {
		return validationFailure("A transaction id is required."), paymentResolveToolOutput{}, nil
	}

	txn, status := s.takePending(d.threadID(), txnKindPayment, strings.TrimSpace(input.TransactionID), input.CustomerID)
	if status != resolveTaken {
		return resolveFailure(), paymentResolveToolOutput{}, nil
	}

	if action == "cancel" {
		s.metrics.transactionResolved(txnKindPayment, "cancel")
		s.txnLog.Info("txn.cancel", "kind", txnKindPayment, "transaction_id", txn.TransactionID, "thread_id", d.threadID())
		res := textResult(userText("No problem — I've cancelled that payment. Nothing has been charged."))
		return res, paymentResolveToolOutput{Status: "cancelled"}, nil
	}

	receipt, err := s.backend.ExecutePayment(ctx, banking.PaymentRequest{
		CustomerID:  txn.CustomerID,
		LoanID:      txn.LoanID,
		Amount:      txn.Amount,
		PaymentDate: txn.Date,
	})
	if err != nil {
		return nil, paymentResolveToolOutput{}, fmt.Errorf("execute payment: %w", err)
	}
	s.metrics.transactionResolved(txnKindPayment, "confirm")
	s.txnLog.Info("txn.confirm.executed",
		"kind", txnKindPayment,
		"transaction_id", txn.TransactionID,
		"thread_id", d.threadID(),
		"confirmation_number", receipt.ConfirmationNumber,
	)

	res := textResult(userText(fmt.Sprintf(
		"Done! Your payment of %s is scheduled for %s. Your confirmation number is %s.",
		money.Format(d.locale(), txn.Amount), txn.Date, receipt.ConfirmationNumber)))
	return res, paymentResolveToolOutput{
		Status:             "confirmed",
		ConfirmationNumber: receipt.ConfirmationNumber,
		ProcessedAt:        receipt.ProcessedAt.Format(time.RFC3339),
		CorrelationID:      d.correlation(),
	}, nil
}
