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

type accountsListToolInput struct {
	CustomerID string `json:"customerId,omitempty" jsonschema:"Trusted customer id; injected by the server, any supplied value is overwritten"`
}

type accountsListToolOutput struct {
	Accounts []banking.Account `json:"accounts"`
}

func (s *server) handleAccountsListTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input accountsListToolInput) (*mcpsdk.CallToolResult, accountsListToolOutput, error) {
	d := dispatchFrom(ctx)
	if input.CustomerID == "" {
		return nil, accountsListToolOutput{}, fmt.Errorf("customerId is required")
	}
	accounts, err := s.backend.AccountsFor(ctx, input.CustomerID)
	if err != nil {
		return nil, accountsListToolOutput{}, fmt.Errorf("list accounts: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You have %d account(s):\n", len(accounts))
	for _, a := range accounts {
		fmt.Fprintf(&b, "- %s (%s): %s\n", a.Name, a.MaskedNumber, money.Format(d.locale(), a.Balance))
	}
	res := textResult(userText(strings.TrimRight(b.String(), "\n")))
	return res, accountsListToolOutput{Accounts: accounts}, nil
}

type accountsBalanceToolInput struct {
	CustomerID string `json:"customerId,omitempty" jsonschema:"Trusted customer id; injected by the server, any supplied value is overwritten"`
	AccountID  string `json:"account_id,omitempty" jsonschema:"Account to report on; omit to let the caller pick"`
}

type accountsBalanceToolOutput struct {
	Account          *banking.Account `json:"account,omitempty"`
	FormattedBalance string           `json:"formatted_balance,omitempty"`
}

func (s *server) handleAccountsBalanceTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input accountsBalanceToolInput) (*mcpsdk.CallToolResult, accountsBalanceToolOutput, error) {
	d := dispatchFrom(ctx)
	if input.CustomerID == "" {
		return nil, accountsBalanceToolOutput{}, fmt.Errorf("customerId is required")
	}
	if strings.TrimSpace(input.AccountID) == "" {
		w, err := s.accountPickerWidget(ctx, input.CustomerID, toolAccountsBalance, map[string]any{}, "account_id", "")
		if err != nil {
			return nil, accountsBalanceToolOutput{}, err
		}
		return widgetResult("Which account would you like the balance for?", w), accountsBalanceToolOutput{}, nil
	}

	account, err := s.backend.Account(ctx, input.CustomerID, strings.TrimSpace(input.AccountID))
	if errors.Is(err, banking.ErrAccountNotFound) {
		return validationFailure("I couldn't find that account. Please pick one of your accounts."), accountsBalanceToolOutput{}, nil
	}
	if err != nil {
		return nil, accountsBalanceToolOutput{}, fmt.Errorf("load account: %w", err)
	}

	formatted := money.Format(d.locale(), account.Balance)
	res := textResult(userText(fmt.Sprintf("Your %s (%s) balance is %s.", account.Name, account.MaskedNumber, formatted)))
	return res, accountsBalanceToolOutput{Account: &account, FormattedBalance: formatted}, nil
}

// accountPickerWidget builds an Options widget over the customer's accounts.
// The continuation re-invokes tool with bound already-known parameters and
// the chosen account merged under slot. exclude drops one account id from the
// options, for transfer destination pickers.
func (s *server) accountPickerWidget(ctx context.Context, customerID, tool string, bound map[string]any, slot, exclude string) (*api.Widget, error) {
	accounts, err := s.backend.AccountsFor(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	options := make([]api.Option, 0, len(accounts))
	for _, a := range accounts {
		if a.ID == exclude {
			continue
		}
		options = append(options, api.Option{
			Value:       a.ID,
			Label:       a.Name,
			Description: a.MaskedNumber,
		})
	}
	return api.OptionsWidget("Choose an account.", options, api.NewContinuation(tool, bound, slot)), nil
}
