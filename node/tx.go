package node

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/technostore/technostore/go/evm"
)

// Transaction methods
const (
	MethodAddProduct    = "addProduct"
	MethodBuyProduct    = "buyProduct"
	MethodRefundProduct = "refundProduct"
)

// ErrInvalidTx is wrapped by every envelope rejection. Rejected transactions
// are not mined and do not consume the account nonce.
var ErrInvalidTx = errors.New("invalid transaction")

var (
	ErrBadSignature  = fmt.Errorf("%w: bad signature", ErrInvalidTx)
	ErrWrongSigner   = fmt.Errorf("%w: signer does not match from", ErrInvalidTx)
	ErrNonceMismatch = fmt.Errorf("%w: nonce mismatch", ErrInvalidTx)
	ErrUnknownMethod = fmt.Errorf("%w: unknown method", ErrInvalidTx)
	ErrBadArgs       = fmt.Errorf("%w: bad arguments", ErrInvalidTx)
)

// Tx is a signed call into the store. Signature is an EIP-191 personal
// signature over SigningPayload.
type Tx struct {
	From      common.Address  `json:"from"`
	Nonce     uint64          `json:"nonce"`
	Method    string          `json:"method"`
	Args      json.RawMessage `json:"args"`
	Signature hexutil.Bytes   `json:"signature"`
}

// AddProductArgs are the arguments of addProduct. Price is a decimal string.
type AddProductArgs struct {
	Name     string `json:"name"`
	Quantity uint64 `json:"quantity"`
	Price    string `json:"price"`
}

// BuyProductArgs are the arguments of buyProduct. Amount and Deadline are
// decimal strings.
type BuyProductArgs struct {
	Index     int           `json:"index"`
	Amount    string        `json:"amount"`
	Deadline  string        `json:"deadline"`
	Signature evm.Signature `json:"signature"`
}

// RefundProductArgs are the arguments of refundProduct.
type RefundProductArgs struct {
	Index int `json:"index"`
}

// Signer signs EIP-191 messages. signers/evm.ClientSigner implements it.
type Signer interface {
	SignMessage(ctx context.Context, message []byte) ([]byte, error)
}

// NewTx builds an unsigned transaction, encoding args as JSON.
func NewTx(from common.Address, nonce uint64, method string, args interface{}) (*Tx, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode args: %w", err)
	}
	return &Tx{From: from, Nonce: nonce, Method: method, Args: raw}, nil
}

// SigningPayload returns keccak256(method || uint64be(nonce) || args).
func (tx *Tx) SigningPayload() []byte {
	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], tx.Nonce)
	return crypto.Keccak256([]byte(tx.Method), nonce[:], tx.Args)
}

// Sign fills in Signature.
func (tx *Tx) Sign(ctx context.Context, signer Signer) error {
	sig, err := signer.SignMessage(ctx, tx.SigningPayload())
	if err != nil {
		return fmt.Errorf("sign transaction: %w", err)
	}
	tx.Signature = sig
	return nil
}

// Hash identifies a signed transaction.
func (tx *Tx) Hash() common.Hash {
	return crypto.Keccak256Hash(tx.From.Bytes(), tx.SigningPayload(), tx.Signature)
}

// Sender recovers the address that signed tx.
func (tx *Tx) Sender() (common.Address, error) {
	sig, err := evm.SignatureFromBytes(tx.Signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	signer, err := evm.RecoverPersonal(tx.SigningPayload(), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return signer, nil
}

func decodeArgs(raw json.RawMessage, out interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing args", ErrBadArgs)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrBadArgs, err)
	}
	return nil
}

func parseAmount(field, s string) (*big.Int, error) {
	v, err := evm.ParseUint256(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBadArgs, field, err)
	}
	return v, nil
}
