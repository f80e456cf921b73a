package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	logging "github.com/ipfs/go-log/v2"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	technostore "github.com/technostore/technostore/go"
	"github.com/technostore/technostore/go/evm"
	"github.com/technostore/technostore/go/node"
)

var log = logging.Logger("technostore/mcp")

// Implementation names the server to MCP clients.
var Implementation = &mcpsdk.Implementation{Name: "technostore", Version: "1.0.0"}

// Server wraps an MCP server whose tools read from a node.
type Server struct {
	MCPServer *mcpsdk.Server
	node      *node.Node
}

// NewServer registers the store tools for n.
func NewServer(n *node.Node) *Server {
	s := &Server{
		MCPServer: mcpsdk.NewServer(Implementation, nil),
		node:      n,
	}

	s.MCPServer.AddTool(&mcpsdk.Tool{
		Name:        "store_info",
		Description: "Owner, store address, payment token, ledger height and refund policy.",
		InputSchema: map[string]interface{}{"type": "object"},
	}, s.storeInfo)

	s.MCPServer.AddTool(&mcpsdk.Tool{
		Name:        "list_products",
		Description: "All products in the order they were added, with stock and unit price.",
		InputSchema: map[string]interface{}{"type": "object"},
	}, s.listProducts)

	s.MCPServer.AddTool(&mcpsdk.Tool{
		Name:        "get_product",
		Description: "One product by catalog index.",
		InputSchema: indexSchema,
	}, s.getProduct)

	s.MCPServer.AddTool(&mcpsdk.Tool{
		Name:        "list_buyers",
		Description: "Every address that has bought the product at index.",
		InputSchema: indexSchema,
	}, s.listBuyers)

	s.MCPServer.AddTool(&mcpsdk.Tool{
		Name:        "get_account",
		Description: "Token balance, permit nonce and transaction nonce of an address.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"address": map[string]interface{}{"type": "string", "description": "0x-prefixed address"},
			},
			"required": []string{"address"},
		},
	}, s.getAccount)

	s.MCPServer.AddTool(&mcpsdk.Tool{
		Name:        "list_events",
		Description: "Store events with sequence number at or above from (default 1).",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"from": map[string]interface{}{"type": "integer", "minimum": 1},
			},
		},
	}, s.listEvents)

	return s
}

// Handler serves the tools over SSE. Mount it at both the stream and the
// message endpoints.
func (s *Server) Handler() http.Handler {
	return mcpsdk.NewSSEHandler(func(req *http.Request) *mcpsdk.Server {
		return s.MCPServer
	}, &mcpsdk.SSEOptions{})
}

var indexSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"index": map[string]interface{}{"type": "integer", "minimum": 0, "description": "Catalog index"},
	},
	"required": []string{"index"},
}

type indexArgs struct {
	Index *int `json:"index"`
}

type accountArgs struct {
	Address string `json:"address"`
}

type eventsArgs struct {
	From uint64 `json:"from"`
}

func (s *Server) storeInfo(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	info, err := s.node.Info()
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(info)
}

func (s *Server) listProducts(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	return jsonResult(s.node.Products())
}

func (s *Server) getProduct(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	index, err := parseIndex(req)
	if err != nil {
		return errorResult(err), nil
	}
	p, err := s.node.Product(index)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(p)
}

func (s *Server) listBuyers(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	index, err := parseIndex(req)
	if err != nil {
		return errorResult(err), nil
	}
	buyers, err := s.node.Buyers(index)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]interface{}{"index": index, "buyers": buyers})
}

func (s *Server) getAccount(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args accountArgs
	if err := parseArgs(req, &args); err != nil {
		return errorResult(err), nil
	}
	who, err := evm.ParseAddress(args.Address)
	if err != nil {
		return errorResult(err), nil
	}
	acct, err := s.node.Account(ctx, who)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(acct)
}

func (s *Server) listEvents(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args eventsArgs
	if err := parseArgs(req, &args); err != nil {
		return errorResult(err), nil
	}
	if args.From == 0 {
		args.From = 1
	}
	return jsonResult(s.node.Events(args.From))
}

func parseArgs(req *mcpsdk.CallToolRequest, out interface{}) error {
	if len(req.Params.Arguments) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Params.Arguments, out); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func parseIndex(req *mcpsdk.CallToolRequest) (int, error) {
	var args indexArgs
	if err := parseArgs(req, &args); err != nil {
		return 0, err
	}
	if args.Index == nil {
		return 0, errors.New("index is required")
	}
	return *args.Index, nil
}

func jsonResult(v interface{}) (*mcpsdk.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
	}, nil
}

// errorResult reports err to the caller as a tool error. Store errors keep
// their code.
func errorResult(err error) *mcpsdk.CallToolResult {
	text := err.Error()
	var se *technostore.StoreError
	if errors.As(err, &se) {
		data, mErr := json.Marshal(se)
		if mErr == nil {
			text = string(data)
		}
	} else {
		log.Debugw("tool call failed", "error", err)
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
		IsError: true,
	}
}
