// Package api defines the wire-level contract between tellerd and the
// conversational platform that fronts it: the metadata tiers carried on every
// tool-call request and the protocol metadata tellerd attaches to responses.
//
// Everything here is plain serializable data. Continuations in particular are
// descriptors, never closures, so a widget instruction can cross a process or
// network boundary unchanged and come back as the next tool call.
package api

// Request metadata tiers. Each key addresses an object under the JSON-RPC
// params "_meta" field.
const (
	// MetaClaims is the caller-supplied claims tier (bearer token).
	MetaClaims = "claims"
	// MetaContext is the system-context tier (thread id, locale).
	MetaContext = "context"
	// MetaCaller is the caller-identity tier (phone number); consumed only
	// by the authentication flow.
	MetaCaller = "caller"
)

// Response metadata keys under the result "_meta" field.
const (
	// MetaWidget carries a Widget instruction for the platform to render.
	MetaWidget = "widget"
	// MetaExtensions carries platform extensions such as live-agent hand-off.
	MetaExtensions = "extensions"
	// MetaRefreshCapabilities signals that the authentication state of the
	// named thread changed and the platform must re-list tools.
	MetaRefreshCapabilities = "refreshThreadCapabilities"
)

// Claims is the caller-supplied claims tier.
type Claims struct {
	// BearerToken is an opaque token whose verified claims identify the
	// caller to modules that do not rely on the thread's customer id.
	BearerToken string `json:"bearer_token,omitempty"`
}

// Context is the system-context tier.
type Context struct {
	// ThreadID identifies the conversation. Created by the platform, never
	// by tellerd.
	ThreadID string `json:"thread_id,omitempty"`
	// Locale is a BCP 47 tag used for user-facing formatting.
	Locale string `json:"locale,omitempty"`
}

// Caller is the caller-identity tier.
type Caller struct {
	// PhoneNumber is the caller's line identity, used by the welcome flow.
	PhoneNumber string `json:"phone_number,omitempty"`
}

// Extensions is the response extensions block.
type Extensions struct {
	// TransferToLiveAgent instructs the platform to hand the conversation to
	// a human agent.
	TransferToLiveAgent *TransferToLiveAgent `json:"transfer_to_live_agent,omitempty"`
}

// TransferToLiveAgent is the live-agent hand-off payload.
type TransferToLiveAgent struct {
	// Reason is a machine-readable hand-off cause.
	Reason string `json:"reason"`
	// CustomerID is attached for agent context when the thread is
	// authenticated.
	CustomerID string `json:"customer_id,omitempty"`
	// ThreadID names the conversation being handed off.
	ThreadID string `json:"thread_id,omitempty"`
}
