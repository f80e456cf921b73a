package mcp

import (
	"context"
	"encoding/json"
	"math/big"
	"strings"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	technostore "github.com/technostore/technostore/go"
	"github.com/technostore/technostore/go/node"
	evmsigners "github.com/technostore/technostore/go/signers/evm"
)

const ownerKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func newTestNode(t *testing.T) (*node.Node, *evmsigners.ClientSigner) {
	t.Helper()
	ctx := context.Background()

	owner, err := evmsigners.NewClientSignerFromPrivateKey(ownerKey)
	if err != nil {
		t.Fatal(err)
	}
	n, err := node.New(ctx, node.DefaultGenesis(owner.CommonAddress()))
	if err != nil {
		t.Fatal(err)
	}

	tx, err := node.NewTx(owner.CommonAddress(), 0, node.MethodAddProduct, node.AddProductArgs{Name: "Keyboard", Quantity: 10, Price: "50"})
	if err != nil {
		t.Fatal(err)
	}
	if err := tx.Sign(ctx, owner); err != nil {
		t.Fatal(err)
	}
	if _, err := n.Submit(ctx, tx); err != nil {
		t.Fatal(err)
	}
	return n, owner
}

func connect(t *testing.T, srv *Server) *mcpsdk.ClientSession {
	t.Helper()
	ctx := context.Background()

	t1, t2 := mcpsdk.NewInMemoryTransports()
	serverSession, err := srv.MCPServer.Connect(ctx, t1, nil)
	if err != nil {
		t.Fatalf("server.Connect: %v", err)
	}
	t.Cleanup(func() { serverSession.Close() })

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, t2, nil)
	if err != nil {
		t.Fatalf("client.Connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func callTool(t *testing.T, session *mcpsdk.ClientSession, name string, args map[string]interface{}) (string, bool) {
	t.Helper()

	res, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	for _, c := range res.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			return tc.Text, res.IsError
		}
	}
	t.Fatalf("no text content in %s result", name)
	return "", false
}

func TestToolDiscovery(t *testing.T) {
	n, _ := newTestNode(t)
	session := connect(t, NewServer(n))

	tools, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}

	want := map[string]bool{
		"store_info":    false,
		"list_products": false,
		"get_product":   false,
		"list_buyers":   false,
		"get_account":   false,
		"list_events":   false,
	}
	for _, tool := range tools.Tools {
		want[tool.Name] = true
	}
	for name, found := range want {
		if !found {
			t.Errorf("tool %q not found in ListTools", name)
		}
	}
}

func TestReadTools(t *testing.T) {
	n, owner := newTestNode(t)
	session := connect(t, NewServer(n))

	text, isErr := callTool(t, session, "list_products", nil)
	if isErr {
		t.Fatalf("list_products failed: %s", text)
	}
	var products []technostore.ProductInfo
	if err := json.Unmarshal([]byte(text), &products); err != nil {
		t.Fatal(err)
	}
	if len(products) != 1 || products[0].Name != "Keyboard" || products[0].Price.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("unexpected products %+v", products)
	}

	text, isErr = callTool(t, session, "get_product", map[string]interface{}{"index": 0})
	if isErr {
		t.Fatalf("get_product failed: %s", text)
	}
	var p technostore.ProductInfo
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		t.Fatal(err)
	}
	if p.Quantity != 10 {
		t.Errorf("Expected quantity 10, got %d", p.Quantity)
	}

	text, isErr = callTool(t, session, "list_buyers", map[string]interface{}{"index": 0})
	if isErr || !strings.Contains(text, `"buyers":[]`) {
		t.Errorf("unexpected list_buyers result %s", text)
	}

	text, isErr = callTool(t, session, "get_account", map[string]interface{}{"address": owner.Address()})
	if isErr {
		t.Fatalf("get_account failed: %s", text)
	}
	var acct node.Account
	if err := json.Unmarshal([]byte(text), &acct); err != nil {
		t.Fatal(err)
	}
	if acct.Balance.Cmp(node.DefaultSupply) != 0 || acct.TxNonce != 1 {
		t.Errorf("unexpected account %+v", acct)
	}

	text, isErr = callTool(t, session, "store_info", nil)
	if isErr || !strings.Contains(text, "TechnoToken") {
		t.Errorf("unexpected store_info result %s", text)
	}

	text, isErr = callTool(t, session, "list_events", map[string]interface{}{"from": 1})
	if isErr || !strings.Contains(text, string(technostore.EventProductAdded)) {
		t.Errorf("unexpected list_events result %s", text)
	}
}

func TestToolErrors(t *testing.T) {
	n, _ := newTestNode(t)
	session := connect(t, NewServer(n))

	tests := []struct {
		name     string
		tool     string
		args     map[string]interface{}
		contains string
	}{
		{"index out of range", "get_product", map[string]interface{}{"index": 3}, technostore.ErrCodeIndexOutOfRange},
		{"missing index", "list_buyers", map[string]interface{}{}, "index is required"},
		{"bad address", "get_account", map[string]interface{}{"address": "nope"}, "invalid address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, isErr := callTool(t, session, tt.tool, tt.args)
			if !isErr {
				t.Fatalf("Expected tool error, got %s", text)
			}
			if !strings.Contains(text, tt.contains) {
				t.Errorf("Expected %q in %s", tt.contains, text)
			}
		})
	}
}
