package tellerd

import (
	"context"
	"encoding/json"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"pkt.systems/pslog"
	"pkt.systems/tellerd/banking"
)

// ToolsListResponse mirrors a canonical JSON-RPC tools/list result payload.
type ToolsListResponse struct {
	ID      int                 `json:"id"`
	JSONRPC string              `json:"jsonrpc"`
	Result  ToolsListResultBody `json:"result"`
}

// ToolsListResultBody is the JSON-RPC "result" object for tools/list.
type ToolsListResultBody struct {
	Tools      []*mcpsdk.Tool `json:"tools"`
	NextCursor string         `json:"nextCursor,omitempty"`
}

// BuildToolsListResponse materializes the model-visible tool registry over
// in-memory transports and returns it as a canonical tools/list payload.
//
// No HTTP listener is started. customerID selects the registry variant: empty
// renders the pre-authentication set, otherwise the thread is treated as
// authenticated for that customer and the entitled tool sets appear.
func BuildToolsListResponse(ctx context.Context, cfg Config, backend banking.Backend, customerID string) (ToolsListResponse, error) {
	srv, err := NewServer(NewServerRequest{
		Config:  cfg,
		Logger:  pslog.NoopLogger(),
		Backend: backend,
	})
	if err != nil {
		return ToolsListResponse{}, err
	}
	s, ok := srv.(*server)
	if !ok {
		return ToolsListResponse{}, fmt.Errorf("unexpected server implementation %T", srv)
	}

	const threadID = "tools-list-snapshot"
	if customerID != "" {
		s.global.Set(threadID, globalKeyCustomerID, customerID)
	}
	registry, resolved, err := s.buildRegistry(ctx, threadID)
	if err != nil {
		return ToolsListResponse{}, err
	}
	d := &dispatch{
		registry:   registry,
		customerID: resolved,
		method:     "tools/list",
	}

	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    "tellerd-tools-list",
		Version: "0.1.0",
	}, nil)
	mcpSrv := s.newProtocolServer(d)

	t1, t2 := mcpsdk.NewInMemoryTransports()
	ss, err := mcpSrv.Connect(ctx, t1, nil)
	if err != nil {
		return ToolsListResponse{}, err
	}
	defer ss.Close()

	cs, err := client.Connect(ctx, t2, nil)
	if err != nil {
		return ToolsListResponse{}, err
	}
	defer cs.Close()

	list, err := cs.ListTools(ctx, &mcpsdk.ListToolsParams{})
	if err != nil {
		return ToolsListResponse{}, err
	}

	return ToolsListResponse{
		ID:      1,
		JSONRPC: "2.0",
		Result: ToolsListResultBody{
			Tools:      list.Tools,
			NextCursor: list.NextCursor,
		},
	}, nil
}

// BuildToolsListResponseJSON returns pretty-printed tools/list JSON payload.
func BuildToolsListResponseJSON(ctx context.Context, cfg Config, backend banking.Backend, customerID string) ([]byte, error) {
	resp, err := BuildToolsListResponse(ctx, cfg, backend, customerID)
	if err != nil {
		return nil, err
	}
	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}
