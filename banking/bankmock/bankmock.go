// Package bankmock implements banking.Backend against in-memory fixture
// data. It powers tests and the demo deployment; nothing here moves money.
package bankmock

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"pkt.systems/tellerd/banking"
)

//go:embed fixtures.yaml
var defaultFixtures []byte

// Fixtures is the YAML document shape bankmock loads.
type Fixtures struct {
	Customers []CustomerFixture `yaml:"customers"`
}

// CustomerFixture bundles everything the mock knows about one customer.
type CustomerFixture struct {
	CustomerID    string               `yaml:"customer_id"`
	DisplayName   string               `yaml:"display_name"`
	PhoneNumber   string               `yaml:"phone_number"`
	PIN           string               `yaml:"pin"`
	CardholderRef string               `yaml:"cardholder_ref"`
	Entitlements  banking.Entitlements `yaml:"entitlements"`
	Accounts      []banking.Account    `yaml:"accounts"`
	Loans         []banking.Loan       `yaml:"loans"`
	Cards         []CardFixture        `yaml:"cards"`
}

// CardFixture is a card plus its posted transactions.
type CardFixture struct {
	banking.Card `yaml:",inline"`
	Transactions []banking.CardTransaction `yaml:"transactions"`
}

// Backend is the fixture-backed banking.Backend implementation.
type Backend struct {
	mu       sync.RWMutex
	fixtures Fixtures

	confirmations atomic.Uint64

	watch *watcher
}

// New returns a Backend seeded with the embedded default fixtures.
func New() (*Backend, error) {
	var fx Fixtures
	if err := yaml.Unmarshal(defaultFixtures, &fx); err != nil {
		return nil, fmt.Errorf("decode embedded fixtures: %w", err)
	}
	return &Backend{fixtures: fx}, nil
}

// Load replaces the fixture set from a YAML file.
func (b *Backend) Load(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read fixtures %s: %w", path, err)
	}
	var fx Fixtures
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		return fmt.Errorf("decode fixtures %s: %w", path, err)
	}
	b.mu.Lock()
	b.fixtures = fx
	b.mu.Unlock()
	return nil
}

// Close stops the fixture watcher when one is running.
func (b *Backend) Close() error {
	if b.watch != nil {
		return b.watch.close()
	}
	return nil
}

func (b *Backend) customerByID(customerID string) (CustomerFixture, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, c := range b.fixtures.Customers {
		if c.CustomerID == customerID {
			return c, true
		}
	}
	return CustomerFixture{}, false
}

// LookupByPhone implements banking.Directory.
func (b *Backend) LookupByPhone(_ context.Context, phone string) (banking.Profile, error) {
	phone = strings.TrimSpace(phone)
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, c := range b.fixtures.Customers {
		if c.PhoneNumber == phone {
			return banking.Profile{
				CustomerID:  c.CustomerID,
				DisplayName: c.DisplayName,
				PhoneNumber: c.PhoneNumber,
			}, nil
		}
	}
	return banking.Profile{}, banking.ErrProfileNotFound
}

// VerifyPIN implements banking.Directory.
func (b *Backend) VerifyPIN(_ context.Context, customerID, pin string) (bool, error) {
	c, ok := b.customerByID(customerID)
	if !ok {
		return false, banking.ErrProfileNotFound
	}
	return c.PIN != "" && c.PIN == strings.TrimSpace(pin), nil
}

// EntitlementsFor implements banking.EntitlementSource.
func (b *Backend) EntitlementsFor(_ context.Context, customerID string) (banking.Entitlements, error) {
	c, ok := b.customerByID(customerID)
	if !ok {
		return banking.Entitlements{}, banking.ErrProfileNotFound
	}
	return c.Entitlements, nil
}

// AccountsFor implements banking.Accounts.
func (b *Backend) AccountsFor(_ context.Context, customerID string) ([]banking.Account, error) {
	c, ok := b.customerByID(customerID)
	if !ok {
		return nil, banking.ErrProfileNotFound
	}
	return append([]banking.Account(nil), c.Accounts...), nil
}

// Account implements banking.Accounts.
func (b *Backend) Account(_ context.Context, customerID, accountID string) (banking.Account, error) {
	c, ok := b.customerByID(customerID)
	if !ok {
		return banking.Account{}, banking.ErrProfileNotFound
	}
	for _, a := range c.Accounts {
		if a.ID == accountID {
			return a, nil
		}
	}
	return banking.Account{}, banking.ErrAccountNotFound
}

// LoansFor implements banking.Loans.
func (b *Backend) LoansFor(_ context.Context, customerID string) ([]banking.Loan, error) {
	c, ok := b.customerByID(customerID)
	if !ok {
		return nil, banking.ErrProfileNotFound
	}
	return append([]banking.Loan(nil), c.Loans...), nil
}

// Loan implements banking.Loans.
func (b *Backend) Loan(_ context.Context, customerID, loanID string) (banking.Loan, error) {
	c, ok := b.customerByID(customerID)
	if !ok {
		return banking.Loan{}, banking.ErrProfileNotFound
	}
	for _, l := range c.Loans {
		if l.ID == loanID {
			return l, nil
		}
	}
	return banking.Loan{}, banking.ErrLoanNotFound
}

// ExecuteTransfer implements banking.Payments.
func (b *Backend) ExecuteTransfer(_ context.Context, req banking.TransferRequest) (banking.Receipt, error) {
	if _, ok := b.customerByID(req.CustomerID); !ok {
		return banking.Receipt{}, banking.ErrProfileNotFound
	}
	return b.receipt("TRF"), nil
}

// ExecutePayment implements banking.Payments.
func (b *Backend) ExecutePayment(_ context.Context, req banking.PaymentRequest) (banking.Receipt, error) {
	if _, ok := b.customerByID(req.CustomerID); !ok {
		return banking.Receipt{}, banking.ErrProfileNotFound
	}
	return b.receipt("PMT"), nil
}

func (b *Backend) receipt(prefix string) banking.Receipt {
	n := b.confirmations.Add(1)
	return banking.Receipt{
		ConfirmationNumber: fmt.Sprintf("%s-%06d", prefix, n),
		ProcessedAt:        time.Now().UTC(),
	}
}

func (b *Backend) cardholder(ref string) (CustomerFixture, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, c := range b.fixtures.Customers {
		if c.CardholderRef != "" && c.CardholderRef == ref {
			return c, true
		}
	}
	return CustomerFixture{}, false
}

// CardsFor implements banking.Cards.
func (b *Backend) CardsFor(_ context.Context, cardholderRef string) ([]banking.Card, error) {
	c, ok := b.cardholder(cardholderRef)
	if !ok {
		return nil, banking.ErrProfileNotFound
	}
	cards := make([]banking.Card, 0, len(c.Cards))
	for _, card := range c.Cards {
		cards = append(cards, card.Card)
	}
	return cards, nil
}

// CardTransactions implements banking.Cards.
func (b *Backend) CardTransactions(_ context.Context, cardholderRef, cardID string) ([]banking.CardTransaction, error) {
	c, ok := b.cardholder(cardholderRef)
	if !ok {
		return nil, banking.ErrProfileNotFound
	}
	for _, card := range c.Cards {
		if card.ID == cardID {
			return append([]banking.CardTransaction(nil), card.Transactions...), nil
		}
	}
	return nil, banking.ErrCardNotFound
}

var _ banking.Backend = (*Backend)(nil)
