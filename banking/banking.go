// Package banking defines the collaborator seam between the tool dispatcher
// and the bank's core systems. tellerd calls these interfaces and never looks
// behind them: real deployments bind REST clients here, tests and the demo
// mode bind banking/bankmock.
package banking

import (
	"context"
	"errors"
	"time"
)

// Sentinel failures collaborators report for well-defined misses. Anything
// else is treated as an infrastructure failure and propagates to the
// dispatcher boundary.
var (
	// ErrProfileNotFound reports that no customer profile matches the lookup.
	ErrProfileNotFound = errors.New("banking: profile not found")
	// ErrAccountNotFound reports an unknown account id for the customer.
	ErrAccountNotFound = errors.New("banking: account not found")
	// ErrLoanNotFound reports an unknown loan id for the customer.
	ErrLoanNotFound = errors.New("banking: loan not found")
	// ErrCardNotFound reports an unknown card id for the cardholder.
	ErrCardNotFound = errors.New("banking: card not found")
)

// Profile is a customer directory record.
type Profile struct {
	// CustomerID is the bank-wide customer identifier.
	CustomerID string `json:"customer_id"`
	// DisplayName is the customer's preferred name for greetings.
	DisplayName string `json:"display_name"`
	// PhoneNumber is the enrolled line identity in E.164 form.
	PhoneNumber string `json:"phone_number"`
}

// Entitlements flags which product tool sets a customer may see.
type Entitlements struct {
	PersonalBanking bool `json:"personal_banking"`
	Mortgage        bool `json:"mortgage"`
	CreditCard      bool `json:"credit_card"`
}

// Account is a deposit account summary.
type Account struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	MaskedNumber string  `json:"masked_number"`
	Balance      float64 `json:"balance"`
	Currency     string  `json:"currency"`
}

// Loan is a mortgage loan summary.
type Loan struct {
	ID               string  `json:"id"`
	Product          string  `json:"product"`
	PrincipalBalance float64 `json:"principal_balance"`
	RatePercent      float64 `json:"rate_percent"`
	MonthlyPayment   float64 `json:"monthly_payment"`
	NextPaymentDue   string  `json:"next_payment_due"`
}

// Card is a credit card summary.
type Card struct {
	ID             string  `json:"id"`
	MaskedNumber   string  `json:"masked_number"`
	Product        string  `json:"product"`
	CreditLimit    float64 `json:"credit_limit"`
	CurrentBalance float64 `json:"current_balance"`
}

// CardTransaction is one posted card transaction.
type CardTransaction struct {
	ID       string  `json:"id"`
	Date     string  `json:"date"`
	Merchant string  `json:"merchant"`
	Amount   float64 `json:"amount"`
}

// TransferRequest is a confirmed account-to-account transfer handed to the
// payments collaborator for execution.
type TransferRequest struct {
	CustomerID    string
	FromAccountID string
	ToAccountID   string
	Amount        float64
	TransferDate  string
}

// PaymentRequest is a confirmed extra payment against a loan.
type PaymentRequest struct {
	CustomerID  string
	LoanID      string
	Amount      float64
	PaymentDate string
}

// Receipt is the collaborator's proof of execution.
type Receipt struct {
	// ConfirmationNumber is the collaborator-issued reference.
	ConfirmationNumber string `json:"confirmation_number"`
	// ProcessedAt is the wall-clock execution time.
	ProcessedAt time.Time `json:"processed_at"`
}

// Directory resolves and authenticates customer identities.
type Directory interface {
	// LookupByPhone resolves the enrolled profile for a phone number.
	// Returns ErrProfileNotFound when the number is not enrolled.
	LookupByPhone(ctx context.Context, phone string) (Profile, error)
	// VerifyPIN reports whether pin matches the customer's enrolled PIN.
	// A mismatch is (false, nil); errors are infrastructure failures.
	VerifyPIN(ctx context.Context, customerID, pin string) (bool, error)
}

// EntitlementSource looks up product entitlements for a customer.
type EntitlementSource interface {
	EntitlementsFor(ctx context.Context, customerID string) (Entitlements, error)
}

// Accounts serves deposit account data.
type Accounts interface {
	AccountsFor(ctx context.Context, customerID string) ([]Account, error)
	Account(ctx context.Context, customerID, accountID string) (Account, error)
}

// Loans serves mortgage data.
type Loans interface {
	LoansFor(ctx context.Context, customerID string) ([]Loan, error)
	Loan(ctx context.Context, customerID, loanID string) (Loan, error)
}

// Payments executes confirmed money movements. tellerd only ever calls these
// after a prepare/confirm round trip; the collaborator does not see pending
// transactions.
type Payments interface {
	ExecuteTransfer(ctx context.Context, req TransferRequest) (Receipt, error)
	ExecutePayment(ctx context.Context, req PaymentRequest) (Receipt, error)
}

// Cards serves credit-card data keyed by the cardholder reference carried in
// verified bearer-token claims, not by the thread's customer id.
type Cards interface {
	CardsFor(ctx context.Context, cardholderRef string) ([]Card, error)
	CardTransactions(ctx context.Context, cardholderRef, cardID string) ([]CardTransaction, error)
}

// Backend aggregates every collaborator the dispatcher needs.
type Backend interface {
	Directory
	EntitlementSource
	Accounts
	Loans
	Payments
	Cards
}
