package tellerd

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// toolVisibility separates tools the model may select from tools that only a
// widget continuation issued by the platform can reach.
type toolVisibility int

const (
	visibilityModel toolVisibility = iota
	visibilityAppOnly
)

// toolDescriptor is one entry of the per-request registry. Descriptors are
// plain data assembled by the capability gate; the registry they form is
// built once per request and never mutated afterwards.
type toolDescriptor struct {
	name       string
	visibility toolVisibility
	// needsCustomerID marks tools whose customerId argument is injected from
	// the Global store, overwriting any model-supplied value.
	needsCustomerID bool
	register        func(srv *mcpsdk.Server)
}

// buildRegistry runs the capability gate for one request: the welcome and
// hand-off tool sets are always present, and once the thread carries an
// authenticated customer id each entitled product's tool set is unioned in.
// An entitlement lookup failure fails the build; falling back to the
// unauthenticated set would disguise a backend outage as an auth failure.
func (s *server) buildRegistry(ctx context.Context, threadID string) ([]toolDescriptor, string, error) {
	descriptors := s.authDescriptors()

	customerID := ""
	if threadID != "" {
		if v, ok := s.global.Get(threadID, globalKeyCustomerID); ok {
			customerID, _ = v.(string)
		}
	}
	if customerID == "" {
		return descriptors, "", nil
	}

	entitlements, err := s.backend.EntitlementsFor(ctx, customerID)
	if err != nil {
		return nil, "", fmt.Errorf("entitlement lookup for thread %s: %w", threadID, err)
	}
	if entitlements.PersonalBanking {
		descriptors = append(descriptors, s.personalBankingDescriptors()...)
	}
	if entitlements.Mortgage {
		descriptors = append(descriptors, s.mortgageDescriptors()...)
	}
	if entitlements.CreditCard {
		descriptors = append(descriptors, s.cardDescriptors()...)
	}
	s.gateLog.Debug("mcp.gate.registry_built",
		"thread_id", threadID,
		"tools", len(descriptors),
		"personal_banking", entitlements.PersonalBanking,
		"mortgage", entitlements.Mortgage,
		"credit_card", entitlements.CreditCard,
	)
	return descriptors, customerID, nil
}

func (s *server) describeTool(name string) *mcpsdk.Tool {
	description, ok := s.descriptions[name]
	if !ok {
		panic(fmt.Sprintf("missing tool description for %q", name))
	}
	return &mcpsdk.Tool{Name: name, Description: description}
}

// authDescriptors is the pre-authentication set. The hand-off tool carries
// needs_customer_id=false but still receives the customer id for agent
// context when the thread happens to be authenticated; that injection is
// handled inside the handler, not by the dispatcher.
func (s *server) authDescriptors() []toolDescriptor {
	return []toolDescriptor{
		{
			name:       toolWelcome,
			visibility: visibilityModel,
			register: func(srv *mcpsdk.Server) {
				mcpsdk.AddTool(srv, s.describeTool(toolWelcome), dispatchTool(s, toolWelcome, s.handleWelcomeTool))
			},
		},
		{
			name:       toolVerifyPIN,
			visibility: visibilityAppOnly,
			register: func(srv *mcpsdk.Server) {
				mcpsdk.AddTool(srv, s.describeTool(toolVerifyPIN), dispatchTool(s, toolVerifyPIN, s.handleVerifyPINTool))
			},
		},
		{
			name:       toolHandoff,
			visibility: visibilityModel,
			register: func(srv *mcpsdk.Server) {
				mcpsdk.AddTool(srv, s.describeTool(toolHandoff), dispatchTool(s, toolHandoff, s.handleHandoffTool))
			},
		},
	}
}

func (s *server) personalBankingDescriptors() []toolDescriptor {
	return []toolDescriptor{
		{
			name:            toolAccountsList,
			visibility:      visibilityModel,
			needsCustomerID: true,
			register: func(srv *mcpsdk.Server) {
				mcpsdk.AddTool(srv, s.describeTool(toolAccountsList), dispatchTool(s, toolAccountsList, s.handleAccountsListTool))
			},
		},
		{
			name:            toolAccountsBalance,
			visibility:      visibilityModel,
			needsCustomerID: true,
			register: func(srv *mcpsdk.Server) {
				mcpsdk.AddTool(srv, s.describeTool(toolAccountsBalance), dispatchTool(s, toolAccountsBalance, s.handleAccountsBalanceTool))
			},
		},
		{
			name:            toolTransferPrepare,
			visibility:      visibilityModel,
			needsCustomerID: true,
			register: func(srv *mcpsdk.Server) {
				mcpsdk.AddTool(srv, s.describeTool(toolTransferPrepare), dispatchTool(s, toolTransferPrepare, s.handleTransferPrepareTool))
			},
		},
		{
			name:            toolTransferResolve,
			visibility:      visibilityAppOnly,
			needsCustomerID: true,
			register: func(srv *mcpsdk.Server) {
				mcpsdk.AddTool(srv, s.describeTool(toolTransferResolve), dispatchTool(s, toolTransferResolve, s.handleTransferResolveTool))
			},
		},
	}
}

func (s *server) mortgageDescriptors() []toolDescriptor {
	return []toolDescriptor{
		{
			name:            toolMortgageOverview,
			visibility:      visibilityModel,
			needsCustomerID: true,
			register: func(srv *mcpsdk.Server) {
				mcpsdk.AddTool(srv, s.describeTool(toolMortgageOverview), dispatchTool(s, toolMortgageOverview, s.handleMortgageOverviewTool))
			},
		},
		{
			name:            toolPaymentPrepare,
			visibility:      visibilityModel,
			needsCustomerID: true,
			register: func(srv *mcpsdk.Server) {
				mcpsdk.AddTool(srv, s.describeTool(toolPaymentPrepare), dispatchTool(s, toolPaymentPrepare, s.handlePaymentPrepareTool))
			},
		},
		{
			name:            toolPaymentResolve,
			visibility:      visibilityAppOnly,
			needsCustomerID: true,
			register: func(srv *mcpsdk.Server) {
				mcpsdk.AddTool(srv, s.describeTool(toolPaymentResolve), dispatchTool(s, toolPaymentResolve, s.handlePaymentResolveTool))
			},
		},
	}
}

// cardDescriptors pull caller identity from verified bearer-token claims, so
// the dispatcher does not inject the thread's customer id.
func (s *server) cardDescriptors() []toolDescriptor {
	return []toolDescriptor{
		{
			name:       toolCardsList,
			visibility: visibilityModel,
			register: func(srv *mcpsdk.Server) {
				mcpsdk.AddTool(srv, s.describeTool(toolCardsList), dispatchTool(s, toolCardsList, s.handleCardsListTool))
			},
		},
		{
			name:       toolCardsTransactions,
			visibility: visibilityModel,
			register: func(srv *mcpsdk.Server) {
				mcpsdk.AddTool(srv, s.describeTool(toolCardsTransactions), dispatchTool(s, toolCardsTransactions, s.handleCardsTransactionsTool))
			},
		},
	}
}

func findDescriptor(registry []toolDescriptor, name string) (toolDescriptor, bool) {
	for _, desc := range registry {
		if desc.name == name {
			return desc, true
		}
	}
	return toolDescriptor{}, false
}
