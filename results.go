package tellerd

import (
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"pkt.systems/tellerd/api"
)

// Content helpers. Every text block carries an audience annotation: user
// blocks are rendered verbatim by the platform, assistant blocks steer the
// model without being shown to the caller.

func userText(text string) *mcpsdk.TextContent {
	return &mcpsdk.TextContent{
		Text:        text,
		Annotations: &mcpsdk.Annotations{Audience: []mcpsdk.Role{"user"}},
	}
}

func assistantText(text string) *mcpsdk.TextContent {
	return &mcpsdk.TextContent{
		Text:        text,
		Annotations: &mcpsdk.Annotations{Audience: []mcpsdk.Role{"assistant"}},
	}
}

func textResult(blocks ...mcpsdk.Content) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{Content: blocks}
}

// widgetResult pairs a user-facing prompt with a widget instruction under the
// response _meta.
func widgetResult(text string, w *api.Widget) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{userText(text)},
		Meta:    mcpsdk.Meta{api.MetaWidget: w},
	}
}

// validationFailure is a user-facing error result. It is a normal response
// with isError set, never a protocol-level failure, and by contract the
// handler has performed no side effect when returning it.
func validationFailure(text string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{userText(text)},
		IsError: true,
	}
}

// resolveFailureMessage is returned for both a missing transaction and an
// ownership mismatch. The two cases must be indistinguishable on the wire so
// a caller cannot probe for the existence of other customers' transactions.
const resolveFailureMessage = "I couldn't find that pending transaction. It may have expired or already been completed."

func resolveFailure() *mcpsdk.CallToolResult {
	return validationFailure(resolveFailureMessage)
}

// handoffResult attaches a live-agent transfer extension to a user-facing
// message.
func handoffResult(text string, transfer *api.TransferToLiveAgent) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{userText(text)},
		Meta: mcpsdk.Meta{
			api.MetaExtensions: &api.Extensions{TransferToLiveAgent: transfer},
		},
	}
}
