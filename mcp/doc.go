// Package mcp exposes read-only views of a node as MCP tools.
//
// # Server Usage
//
//	srv := mcp.NewServer(n)
//	mux := http.NewServeMux()
//	mux.Handle("/sse", srv.Handler())
//	mux.Handle("/messages", srv.Handler())
//
// # Tools
//
//   - store_info: owner, store address, token and refund policy
//   - list_products: the catalog in insertion order
//   - get_product: one product by index
//   - list_buyers: the roster of a product
//   - get_account: token balance and nonces of an address
//   - list_events: store events from a sequence number
//
// Every tool answers with a single JSON text content item. Store errors are
// returned as tool errors carrying the error code.
package mcp
