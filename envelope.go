package tellerd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"pkt.systems/tellerd/internal/ids"
	"pkt.systems/tellerd/internal/version"
)

const maxRequestBytes = 1 << 20

const serverInstructions = "tellerd exposes banking tools for one conversation thread. " +
	"The visible tool set depends on the thread's authentication state and the customer's " +
	"product entitlements; re-list tools whenever a refreshThreadCapabilities signal arrives. " +
	"Money-moving tools only stage transactions; the caller confirms or cancels them through " +
	"platform widgets, never through model-selected tool calls."

// rpcEnvelope is the slice of a JSON-RPC message the dispatcher needs to see
// before the protocol server does: the method, the metadata tiers, and for
// tool calls the arguments object that may need the customer id injected.
type rpcEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  map[string]any  `json:"params,omitempty"`
}

// mcpHandler wraps the SDK's streamable handler with the per-request dispatch
// pipeline: peek the message, extract the context tiers, run the capability
// gate, inject the trusted customer id, then hand the (possibly rewritten)
// body to a protocol server built for exactly this request. The handler runs
// stateless; all continuity is carried by the thread id in the metadata.
func (s *server) mcpHandler() http.Handler {
	streamable := mcpsdk.NewStreamableHTTPHandler(func(r *http.Request) *mcpsdk.Server {
		return s.newProtocolServer(dispatchFrom(r.Context()))
	}, &mcpsdk.StreamableHTTPOptions{Stateless: true})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			streamable.ServeHTTP(w, r)
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes+1))
		if err != nil {
			http.Error(w, "read request body", http.StatusBadRequest)
			return
		}
		_ = r.Body.Close()
		if len(body) > maxRequestBytes {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}

		var env rpcEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			// Malformed JSON-RPC: let the SDK produce the protocol error.
			r.Body = io.NopCloser(bytes.NewReader(body))
			r.ContentLength = int64(len(body))
			streamable.ServeHTTP(w, r)
			return
		}

		d, body, err := s.prepareDispatch(r.Context(), &env, body)
		if err != nil {
			s.dispatchLog.Error("mcp.dispatch.registry_failure", "method", env.Method, "error", err)
			writeRPCError(w, env.ID, -32603, "internal error")
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		r.ContentLength = int64(len(body))
		streamable.ServeHTTP(w, r.WithContext(withDispatch(r.Context(), d)))
	})
}

// prepareDispatch resolves the request-scoped dispatch state and rewrites the
// body when the target tool needs the trusted customer id. Any model-supplied
// customerId is overwritten, never trusted.
func (s *server) prepareDispatch(ctx context.Context, env *rpcEnvelope, body []byte) (*dispatch, []byte, error) {
	meta, _ := env.Params["_meta"].(map[string]any)
	claims, mctx, caller := extractTiers(meta)

	d := &dispatch{
		correlationID: ids.Correlation(),
		claims:        claims,
		meta:          mctx,
		caller:        caller,
		method:        env.Method,
	}

	registry, customerID, err := s.buildRegistry(ctx, mctx.ThreadID)
	if err != nil {
		return nil, nil, err
	}
	d.registry = registry
	d.customerID = customerID

	if env.Method != "tools/call" {
		return d, body, nil
	}
	d.toolName, _ = env.Params["name"].(string)
	desc, ok := findDescriptor(registry, d.toolName)
	if !ok || !desc.needsCustomerID {
		return d, body, nil
	}
	args, _ := env.Params["arguments"].(map[string]any)
	if args == nil {
		args = map[string]any{}
	}
	args["customerId"] = customerID
	env.Params["arguments"] = args
	rewritten, err := json.Marshal(env)
	if err != nil {
		return nil, nil, err
	}
	return d, rewritten, nil
}

// newProtocolServer materializes the per-request registry as an MCP server.
// tools/list sees only model-callable tools, so app-only continuation targets
// never appear in a listing; tools/call registers the full gated set. An
// unknown or unauthorized tool name therefore fails as the protocol's native
// tool-not-found, indistinguishable from a tool that does not exist.
func (s *server) newProtocolServer(d *dispatch) *mcpsdk.Server {
	srv := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    "tellerd",
		Version: version.Current(),
	}, &mcpsdk.ServerOptions{
		Instructions: serverInstructions,
	})
	if d == nil {
		return srv
	}
	for _, desc := range d.registry {
		if d.method == "tools/list" && desc.visibility != visibilityModel {
			continue
		}
		desc.register(srv)
	}
	return srv
}

// dispatchTool wraps a handler with dispatch logging, metrics and the
// structured error envelope.
func dispatchTool[In, Out any](s *server, name string, h mcpsdk.ToolHandlerFor[In, Out]) mcpsdk.ToolHandlerFor[In, Out] {
	wrapped := withStructuredToolErrors(h)
	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input In) (*mcpsdk.CallToolResult, Out, error) {
		start := time.Now()
		res, out, err := wrapped(ctx, req, input)
		outcome := "ok"
		switch {
		case err != nil:
			outcome = "error"
		case res != nil && res.IsError:
			outcome = "user_error"
		}
		elapsed := time.Since(start)
		s.metrics.dispatchObserved(name, outcome, elapsed)
		d := dispatchFrom(ctx)
		s.dispatchLog.Debug("mcp.dispatch.completed",
			"tool", name,
			"outcome", outcome,
			"correlation_id", d.correlation(),
			"thread_id", d.threadID(),
			"duration_ms", elapsed.Milliseconds(),
		)
		return res, out, err
	}
}

func writeRPCError(w http.ResponseWriter, id json.RawMessage, code int, message string) {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error":   map[string]any{"code": code, "message": message},
	})
}
