package tellerd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"pkt.systems/tellerd/api"
	"pkt.systems/tellerd/banking"
	"pkt.systems/tellerd/internal/money"
)

// cardIdentity resolves the cardholder reference from the verified bearer
// token. Card tools never trust the thread's customer id; the claims tier is
// the sole identity source for this module.
func (s *server) cardIdentity(d *dispatch) (string, *mcpsdk.CallToolResult) {
	claims, err := verifyCardClaims(s.cfg.CardClaimsSecret, d.bearerToken())
	if err != nil {
		s.authLog.Warn("auth.card_claims.rejected", "thread_id", d.threadID(), "error", err)
		return "", validationFailure("I couldn't verify your card credentials. Please sign in again from the app and retry.")
	}
	return claims.CardholderRef, nil
}

type cardsListToolInput struct{}

type cardsListToolOutput struct {
	Cards []banking.Card `json:"cards"`
}

func (s *server) handleCardsListTool(ctx context.Context, _ *mcpsdk.CallToolRequest, _ cardsListToolInput) (*mcpsdk.CallToolResult, cardsListToolOutput, error) {
	d := dispatchFrom(ctx)
	cardholderRef, failure := s.cardIdentity(d)
	if failure != nil {
		return failure, cardsListToolOutput{}, nil
	}
	cards, err := s.backend.CardsFor(ctx, cardholderRef)
	if errors.Is(err, banking.ErrProfileNotFound) {
		return validationFailure("I couldn't find any cards for your profile."), cardsListToolOutput{}, nil
	}
	if err != nil {
		return nil, cardsListToolOutput{}, fmt.Errorf("list cards: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You have %d card(s):\n", len(cards))
	for _, c := range cards {
		fmt.Fprintf(&b, "- %s (%s): balance %s of a %s limit\n",
			c.Product, c.MaskedNumber,
			money.Format(d.locale(), c.CurrentBalance),
			money.Format(d.locale(), c.CreditLimit))
	}
	res := textResult(userText(strings.TrimRight(b.String(), "\n")))
	return res, cardsListToolOutput{Cards: cards}, nil
}

type cardsTransactionsToolInput struct {
	CardID string `json:"card_id,omitempty" jsonschema:"Card to report on; omit to let the caller pick"`
}

type cardsTransactionsToolOutput struct {
	CardID       string                    `json:"card_id,omitempty"`
	Transactions []banking.CardTransaction `json:"transactions,omitempty"`
}

func (s *server) handleCardsTransactionsTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input cardsTransactionsToolInput) (*mcpsdk.CallToolResult, cardsTransactionsToolOutput, error) {
	d := dispatchFrom(ctx)
	cardholderRef, failure := s.cardIdentity(d)
	if failure != nil {
		return failure, cardsTransactionsToolOutput{}, nil
	}

	cardID := strings.TrimSpace(input.CardID)
	if cardID == "" {
		cards, err := s.backend.CardsFor(ctx, cardholderRef)
		if err != nil {
			return nil, cardsTransactionsToolOutput{}, fmt.Errorf("list cards: %w", err)
		}
		options := make([]api.Option, 0, len(cards))
		for _, c := range cards {
			options = append(options, api.Option{
				Value:       c.ID,
				Label:       c.Product,
				Description: c.MaskedNumber,
			})
		}
		w := api.OptionsWidget("Choose a card.", options,
			api.NewContinuation(toolCardsTransactions, map[string]any{}, "card_id"))
		return widgetResult("Which card would you like transactions for?", w), cardsTransactionsToolOutput{}, nil
	}

	transactions, err := s.backend.CardTransactions(ctx, cardholderRef, cardID)
	if errors.Is(err, banking.ErrCardNotFound) {
		return validationFailure("I couldn't find that card. Please pick one of your cards."), cardsTransactionsToolOutput{}, nil
	}
	if err != nil {
		return nil, cardsTransactionsToolOutput{}, fmt.Errorf("list card transactions: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Here are the latest %d transaction(s):\n", len(transactions))
	for _, tx := range transactions {
		fmt.Fprintf(&b, "- %s  %s  %s\n", tx.Date, tx.Merchant, money.Format(d.locale(), tx.Amount))
	}
	res := textResult(userText(strings.TrimRight(b.String(), "\n")))
	return res, cardsTransactionsToolOutput{CardID: cardID, Transactions: transactions}, nil
}
