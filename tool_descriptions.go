package tellerd

const (
	toolWelcome           = "teller.welcome"
	toolVerifyPIN         = "teller.verify_pin"
	toolHandoff           = "teller.handoff"
	toolAccountsList      = "teller.accounts.list"
	toolAccountsBalance   = "teller.accounts.balance"
	toolTransferPrepare   = "teller.transfer.prepare"
	toolTransferResolve   = "teller.transfer.resolve"
	toolMortgageOverview  = "teller.mortgage.overview"
	toolPaymentPrepare    = "teller.payment.prepare"
	toolPaymentResolve    = "teller.payment.resolve"
	toolCardsList         = "teller.cards.list"
	toolCardsTransactions = "teller.cards.transactions"
)

var toolNames = []string{
	toolWelcome,
	toolVerifyPIN,
	toolHandoff,
	toolAccountsList,
	toolAccountsBalance,
	toolTransferPrepare,
	toolTransferResolve,
	toolMortgageOverview,
	toolPaymentPrepare,
	toolPaymentResolve,
	toolCardsList,
	toolCardsTransactions,
}

func buildToolDescriptions() map[string]string {
	return map[string]string{
		toolWelcome: "Greet the caller. Looks up the enrolled profile for the calling phone " +
			"number; on a match the platform is instructed to collect the caller's PIN, " +
			"otherwise the conversation is handed to a live agent.",
		toolVerifyPIN: "Verify the caller's PIN against the enrolled profile. On success the " +
			"thread becomes authenticated and the platform must re-list tools.",
		toolHandoff: "Transfer the conversation to a live agent. Available in every " +
			"authentication state.",
		toolAccountsList: "List the customer's deposit accounts with names, masked numbers " +
			"and balances.",
		toolAccountsBalance: "Report the balance of one deposit account. When account_id is " +
			"omitted the platform is instructed to let the caller pick an account.",
		toolTransferPrepare: "Stage a transfer between the customer's own accounts. Collects " +
			"any missing field through a follow-up widget, validates amount and date, and " +
			"returns a confirmation widget for a staged transaction. Moves no money itself.",
		toolTransferResolve: "Confirm or cancel a staged transfer by transaction id. Only " +
			"reachable through the confirmation widget issued by teller.transfer.prepare.",
		toolMortgageOverview: "Summarize the customer's mortgage loans: principal, rate, " +
			"monthly payment and next due date.",
		toolPaymentPrepare: "Stage an extra payment against a mortgage loan. Collects missing " +
			"fields through follow-up widgets, enforces the payment date cooling-off window, " +
			"and returns a confirmation widget for a staged transaction.",
		toolPaymentResolve: "Confirm or cancel a staged loan payment by transaction id. Only " +
			"reachable through the confirmation widget issued by teller.payment.prepare.",
		toolCardsList: "List the caller's credit cards. Identity comes from the verified " +
			"bearer-token claims, not from the thread's customer id.",
		toolCardsTransactions: "List recent transactions for one of the caller's credit " +
			"cards. When card_id is omitted the platform is instructed to let the caller " +
			"pick a card.",
	}
}
