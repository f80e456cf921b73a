package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	technostore "github.com/technostore/technostore/go"
	"github.com/technostore/technostore/go/evm"
	"github.com/technostore/technostore/go/node"
)

// DefaultURL is where `technostore serve` listens by default.
const DefaultURL = "http://127.0.0.1:8545"

// ClientConfig configures a Client.
type ClientConfig struct {
	// URL is the base URL of the API (optional, defaults to DefaultURL)
	URL string

	// HTTPClient is the HTTP client to use (optional)
	HTTPClient *http.Client

	// Timeout for requests (optional, defaults to 30s)
	Timeout time.Duration
}

// Client talks to a node's API.
type Client struct {
	url        string
	httpClient *http.Client
}

// APIError is a non-2xx response other than a reverted transaction.
type APIError struct {
	Status int
	ErrorResponse
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (%d) %s: %s", e.Status, e.Code, e.Message)
}

// Is matches store error sentinels by code.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*technostore.StoreError)
	return ok && t.Code == e.Code
}

// Signer signs transactions and permits. signers/evm.ClientSigner implements it.
type Signer interface {
	node.Signer
	CommonAddress() common.Address
	SignPermit(ctx context.Context, domain evm.TypedDataDomain, spender common.Address, value, nonce, deadline *big.Int) (evm.Signature, error)
}

// NewClient creates a Client.
func NewClient(config *ClientConfig) *Client {
	if config == nil {
		config = &ClientConfig{}
	}

	u := strings.TrimRight(config.URL, "/")
	if u == "" {
		u = DefaultURL
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{url: u, httpClient: httpClient}
}

// Info gets GET /v1/store.
func (c *Client) Info(ctx context.Context) (node.StoreInfo, error) {
	var out node.StoreInfo
	err := c.get(ctx, "/v1/store", &out)
	return out, err
}

// Products lists the catalog.
func (c *Client) Products(ctx context.Context) ([]technostore.ProductInfo, error) {
	var out []technostore.ProductInfo
	err := c.get(ctx, "/v1/products", &out)
	return out, err
}

// Product gets the product at index.
func (c *Client) Product(ctx context.Context, index int) (technostore.ProductInfo, error) {
	var out technostore.ProductInfo
	err := c.get(ctx, "/v1/products/"+strconv.Itoa(index), &out)
	return out, err
}

// Buyers lists the roster of the product at index.
func (c *Client) Buyers(ctx context.Context, index int) ([]common.Address, error) {
	var out []common.Address
	err := c.get(ctx, fmt.Sprintf("/v1/products/%d/buyers", index), &out)
	return out, err
}

// Purchase reports buyer's open purchase of the product at index.
func (c *Client) Purchase(ctx context.Context, index int, buyer common.Address) (PurchaseResponse, error) {
	var out PurchaseResponse
	err := c.get(ctx, fmt.Sprintf("/v1/products/%d/purchases/%s", index, buyer.Hex()), &out)
	return out, err
}

// PermitRequest gets what owner must sign to buy the product at index.
func (c *Client) PermitRequest(ctx context.Context, index int, owner common.Address, deadline *big.Int) (node.PermitRequest, error) {
	q := url.Values{}
	q.Set("owner", owner.Hex())
	q.Set("deadline", bigQuery(deadline))

	var out node.PermitRequest
	err := c.get(ctx, fmt.Sprintf("/v1/products/%d/permit-hash?%s", index, q.Encode()), &out)
	return out, err
}

// Account gets who's balance and nonces.
func (c *Client) Account(ctx context.Context, who common.Address) (node.Account, error) {
	var out node.Account
	err := c.get(ctx, "/v1/accounts/"+who.Hex(), &out)
	return out, err
}

// Events lists events with Seq >= from.
func (c *Client) Events(ctx context.Context, from uint64) ([]technostore.Event, error) {
	var out []technostore.Event
	err := c.get(ctx, "/v1/events?from="+strconv.FormatUint(from, 10), &out)
	return out, err
}

// Submit posts a signed transaction. A reverted transaction returns its
// receipt together with the receipt's StoreError.
func (c *Client) Submit(ctx context.Context, tx *node.Tx) (*node.Receipt, error) {
	body, err := json.Marshal(tx)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transaction: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/v1/tx", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create tx request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tx request failed: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var receipt node.Receipt
	if err := json.Unmarshal(responseBody, &receipt); err == nil && receipt.TxHash != (common.Hash{}) {
		if receipt.Error != nil {
			return &receipt, receipt.Error
		}
		if resp.StatusCode == http.StatusOK {
			return &receipt, nil
		}
	}
	return nil, decodeAPIError(resp.StatusCode, responseBody)
}

// AddProduct signs and submits addProduct.
func (c *Client) AddProduct(ctx context.Context, signer Signer, name string, quantity uint64, price *big.Int) (*node.Receipt, error) {
	return c.send(ctx, signer, node.MethodAddProduct, node.AddProductArgs{
		Name:     name,
		Quantity: quantity,
		Price:    bigQuery(price),
	})
}

// BuyProduct signs a permit for the product's price and submits buyProduct.
func (c *Client) BuyProduct(ctx context.Context, signer Signer, index int, deadline *big.Int) (*node.Receipt, error) {
	permit, err := c.PermitRequest(ctx, index, signer.CommonAddress(), deadline)
	if err != nil {
		return nil, fmt.Errorf("failed to get permit request: %w", err)
	}
	sig, err := signer.SignPermit(ctx, permit.Domain, permit.Spender, permit.Value, permit.Nonce, deadline)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, signer, node.MethodBuyProduct, node.BuyProductArgs{
		Index:     index,
		Amount:    permit.Value.String(),
		Deadline:  deadline.String(),
		Signature: sig,
	})
}

// RefundProduct signs and submits refundProduct.
func (c *Client) RefundProduct(ctx context.Context, signer Signer, index int) (*node.Receipt, error) {
	return c.send(ctx, signer, node.MethodRefundProduct, node.RefundProductArgs{Index: index})
}

func (c *Client) send(ctx context.Context, signer Signer, method string, args interface{}) (*node.Receipt, error) {
	acct, err := c.Account(ctx, signer.CommonAddress())
	if err != nil {
		return nil, fmt.Errorf("failed to get account nonce: %w", err)
	}
	tx, err := node.NewTx(signer.CommonAddress(), acct.TxNonce, method, args)
	if err != nil {
		return nil, err
	}
	if err := tx.Sign(ctx, signer); err != nil {
		return nil, err
	}
	return c.Submit(ctx, tx)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp.StatusCode, responseBody)
	}
	if err := json.Unmarshal(responseBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeAPIError(status int, body []byte) error {
	apiErr := &APIError{Status: status}
	if err := json.Unmarshal(body, &apiErr.ErrorResponse); err != nil || apiErr.Code == "" {
		apiErr.Code = ErrCodeInternal
		apiErr.Message = string(body)
	}
	return apiErr
}
