// Package tellerd implements the tool-invocation server behind a
// conversational banking assistant. It speaks the MCP streamable-HTTP dialect
// and owns the part of the system that must never be left to the language
// model: deciding which tools a thread may call, injecting the authenticated
// customer identity into entitlement-sensitive calls, and carrying
// money-moving operations through an explicit prepare, confirm-or-cancel
// two-phase workflow.
//
// Every inbound request is dispatched against a registry built fresh for that
// request from the thread's authentication state and the customer's product
// entitlements. Unauthenticated threads see exactly the welcome and hand-off
// tools; nothing else exists as far as the model is concerned, so entitlement
// gating is enforced by omission rather than by a secondary permission check.
// Confirm/cancel tools are never listed to the model at all: they are only
// reachable through widget continuations issued by their prepare counterparts.
//
// All conversational continuity is carried by the thread id in the request
// metadata. The server holds no transport session state and its thread store
// is ephemeral and in-process; nothing survives a restart by design.
package tellerd
