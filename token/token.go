package token

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/technostore/technostore/go/evm"
)

var (
	// ErrInsufficientBalance is returned when a sender's balance does not cover a transfer.
	ErrInsufficientBalance = errors.New("ERC20InsufficientBalance")

	// ErrInsufficientAllowance is returned when a spender's allowance does not cover a transferFrom.
	ErrInsufficientAllowance = errors.New("ERC20InsufficientAllowance")

	// ErrInvalidReceiver is returned when transferring or minting to the zero address.
	ErrInvalidReceiver = errors.New("ERC20InvalidReceiver")

	// ErrInvalidSender is returned when transferring from the zero address.
	ErrInvalidSender = errors.New("ERC20InvalidSender")

	// ErrInvalidAmount is returned for nil or negative amounts.
	ErrInvalidAmount = errors.New("invalid amount")
)

// Clock supplies the height permit deadlines are compared against.
type Clock interface {
	Height() uint64
}

// Config describes the token's identity and EIP-712 domain.
type Config struct {
	Name    string
	Symbol  string
	Version string
	ChainID *big.Int
	Address common.Address
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithRecoverer sets the signature scheme used to validate permits.
//
// Default: evm.ECDSARecoverer
func WithRecoverer(r evm.Recoverer) Option {
	return func(l *Ledger) {
		l.recoverer = r
	}
}

// Ledger is an ERC-20 token with EIP-2612 permit.
type Ledger struct {
	mu sync.Mutex

	cfg       Config
	clock     Clock
	recoverer evm.Recoverer

	totalSupply *big.Int
	balances    map[common.Address]*big.Int
	allowances  map[common.Address]map[common.Address]*big.Int
	nonces      map[common.Address]*big.Int

	journal []func()
}

// New creates an empty token ledger.
func New(cfg Config, clock Clock, opts ...Option) *Ledger {
	if cfg.Version == "" {
		cfg.Version = evm.DefaultTokenVersion
	}
	if cfg.ChainID == nil {
		cfg.ChainID = new(big.Int).Set(evm.ChainIDHardhat)
	}

	l := &Ledger{
		cfg:         cfg,
		clock:       clock,
		recoverer:   evm.ECDSARecoverer{},
		totalSupply: new(big.Int),
		balances:    make(map[common.Address]*big.Int),
		allowances:  make(map[common.Address]map[common.Address]*big.Int),
		nonces:      make(map[common.Address]*big.Int),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Name returns the token name used in the EIP-712 domain.
func (l *Ledger) Name() string { return l.cfg.Name }

// Symbol returns the token ticker.
func (l *Ledger) Symbol() string { return l.cfg.Symbol }

// Address returns the token's ledger address (the EIP-712 verifying contract).
func (l *Ledger) Address() common.Address { return l.cfg.Address }

// Domain returns the EIP-712 domain permits must be signed under.
func (l *Ledger) Domain() evm.TypedDataDomain {
	return evm.TypedDataDomain{
		Name:              l.cfg.Name,
		Version:           l.cfg.Version,
		ChainID:           new(big.Int).Set(l.cfg.ChainID),
		VerifyingContract: l.cfg.Address.Hex(),
	}
}

// DomainSeparator returns the EIP-712 DOMAIN_SEPARATOR.
func (l *Ledger) DomainSeparator() ([]byte, error) {
	return evm.DomainSeparator(l.Domain())
}

// TotalSupply returns the amount minted so far.
func (l *Ledger) TotalSupply() *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.totalSupply)
}

// Mint credits amount to to. Only used at genesis.
func (l *Ledger) Mint(to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return ErrInvalidReceiver
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.setTotalSupply(new(big.Int).Add(l.totalSupply, amount))
	l.setBalance(to, new(big.Int).Add(l.balanceLocked(to), amount))
	return nil
}

// BalanceOf returns the balance of who.
func (l *Ledger) BalanceOf(ctx context.Context, who common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.balanceLocked(who)), nil
}

// Nonces returns the next permit nonce of owner.
func (l *Ledger) Nonces(ctx context.Context, owner common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.nonceLocked(owner)), nil
}

// Allowance returns how much spender may still move out of owner's balance.
func (l *Ledger) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.allowanceLocked(owner, spender)), nil
}

// Approve sets spender's allowance over owner's balance.
func (l *Ledger) Approve(ctx context.Context, owner, spender common.Address, value *big.Int) error {
	if err := checkAmount(value); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.setAllowance(owner, spender, value)
	return nil
}

// Transfer moves amount from from to to.
func (l *Ledger) Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.transferLocked(from, to, amount)
}

// TransferFrom moves amount from from to to on behalf of spender, consuming
// spender's allowance. An allowance of MaxUint256 is never decreased.
func (l *Ledger) TransferFrom(ctx context.Context, spender, from, to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	allowance := l.allowanceLocked(from, spender)
	if allowance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: spender %s allowance %s, needed %s", ErrInsufficientAllowance, spender.Hex(), allowance, amount)
	}

	// Check the balance before touching the allowance so a failed transfer
	// leaves both untouched.
	if l.balanceLocked(from).Cmp(amount) < 0 {
		return fmt.Errorf("%w: sender %s balance %s, needed %s", ErrInsufficientBalance, from.Hex(), l.balanceLocked(from), amount)
	}

	if allowance.Cmp(evm.MaxUint256()) != 0 {
		l.setAllowance(from, spender, new(big.Int).Sub(allowance, amount))
	}
	return l.transferLocked(from, to, amount)
}

// Permit validates an EIP-2612 signature and, on success, consumes owner's
// nonce and sets spender's allowance to value.
//
// Returns evm.ErrExpiredSignature when the chain height is past deadline and
// evm.ErrInvalidSigner when the signature does not recover to owner.
func (l *Ledger) Permit(
	ctx context.Context,
	owner common.Address,
	spender common.Address,
	value *big.Int,
	deadline *big.Int,
	sig evm.Signature,
) error {
	if err := checkAmount(value); err != nil {
		return err
	}
	if deadline == nil || deadline.Sign() < 0 {
		return fmt.Errorf("%w: invalid deadline", evm.ErrExpiredSignature)
	}

	height := new(big.Int).SetUint64(l.clock.Height())
	if height.Cmp(deadline) > 0 {
		return fmt.Errorf("%w: deadline %s, height %s", evm.ErrExpiredSignature, deadline, height)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	nonce := l.nonceLocked(owner)
	digest, err := evm.HashPermit(evm.Permit{
		Owner:    owner,
		Spender:  spender,
		Value:    value,
		Nonce:    nonce,
		Deadline: deadline,
	}, l.Domain())
	if err != nil {
		return fmt.Errorf("%w: %v", evm.ErrInvalidSigner, err)
	}

	signer, err := l.recoverer.RecoverIdentity(digest, sig)
	if err != nil {
		return fmt.Errorf("%w: %v", evm.ErrInvalidSigner, err)
	}
	if signer != owner {
		return fmt.Errorf("%w: recovered %s, owner %s", evm.ErrInvalidSigner, signer.Hex(), owner.Hex())
	}

	l.setNonce(owner, new(big.Int).Add(nonce, big.NewInt(1)))
	l.setAllowance(owner, spender, value)
	return nil
}

func (l *Ledger) transferLocked(from, to common.Address, amount *big.Int) error {
	if from == (common.Address{}) {
		return ErrInvalidSender
	}
	if to == (common.Address{}) {
		return ErrInvalidReceiver
	}

	fromBalance := l.balanceLocked(from)
	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: sender %s balance %s, needed %s", ErrInsufficientBalance, from.Hex(), fromBalance, amount)
	}

	l.setBalance(from, new(big.Int).Sub(fromBalance, amount))
	l.setBalance(to, new(big.Int).Add(l.balanceLocked(to), amount))
	return nil
}

func (l *Ledger) balanceLocked(who common.Address) *big.Int {
	if b, ok := l.balances[who]; ok {
		return b
	}
	return new(big.Int)
}

func (l *Ledger) nonceLocked(owner common.Address) *big.Int {
	if n, ok := l.nonces[owner]; ok {
		return n
	}
	return new(big.Int)
}

func (l *Ledger) allowanceLocked(owner, spender common.Address) *big.Int {
	if m, ok := l.allowances[owner]; ok {
		if a, ok := m[spender]; ok {
			return a
		}
	}
	return new(big.Int)
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	return nil
}
