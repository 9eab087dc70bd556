package xrpl

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"reliefpool/pkg/domain"
	"reliefpool/pkg/platform/sentinel"
)

// MemoryGateway is an in-memory ledger double used by unit tests and local
// development. It models balances, escrows and transaction lookup closely
// enough to exercise the lifecycle end to end, and exposes failure injection
// so partial-failure paths can be tested deterministically.
type MemoryGateway struct {
	mu          sync.Mutex
	balances    map[domain.Address]domain.Drops
	tokens      map[string]domain.Drops
	sequences   map[domain.Address]uint32
	escrows     map[string]*memEscrow
	txs         map[domain.TxHash]TxRecord
	ledgerIndex uint32
	txCounter   int

	unavailable   bool
	failEscrowTo  map[domain.Address]string
	signingBroken bool
}

type memEscrow struct {
	create   EscrowCreate
	finished bool
}

// NewMemoryGateway returns an empty fake ledger.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		balances:     make(map[domain.Address]domain.Drops),
		tokens:       make(map[string]domain.Drops),
		sequences:    make(map[domain.Address]uint32),
		escrows:      make(map[string]*memEscrow),
		txs:          make(map[domain.TxHash]TxRecord),
		failEscrowTo: make(map[domain.Address]string),
		ledgerIndex:  1000,
	}
}

// SeedAccount creates an account with the given native balance.
func (g *MemoryGateway) SeedAccount(addr domain.Address, balance domain.Drops) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.balances[addr] = balance
	if _, ok := g.sequences[addr]; !ok {
		g.sequences[addr] = 1
	}
}

// SeedTokenBalance sets an issued-token balance.
func (g *MemoryGateway) SeedTokenBalance(addr domain.Address, currency domain.Currency, balance domain.Drops) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tokens[tokenKey(addr, currency)] = balance
}

// SetUnavailable makes every call fail with sentinel.ErrUnavailable,
// simulating a node outage.
func (g *MemoryGateway) SetUnavailable(down bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.unavailable = down
}

// FailEscrowsTo makes escrow creation toward addr fail with the given reason.
func (g *MemoryGateway) FailEscrowsTo(addr domain.Address, reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failEscrowTo[addr] = reason
}

// BreakSigning makes SubmitSignedTx fail with sentinel.ErrSigning.
func (g *MemoryGateway) BreakSigning(broken bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.signingBroken = broken
}

func (g *MemoryGateway) AccountBalance(_ context.Context, addr domain.Address) (domain.Drops, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.unavailable {
		return 0, fmt.Errorf("account balance: %w", sentinel.ErrUnavailable)
	}
	bal, ok := g.balances[addr]
	if !ok {
		return 0, fmt.Errorf("account %s: %w", addr, sentinel.ErrNotFound)
	}
	return bal, nil
}

func (g *MemoryGateway) AccountSequence(_ context.Context, addr domain.Address) (uint32, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.unavailable {
		return 0, fmt.Errorf("account sequence: %w", sentinel.ErrUnavailable)
	}
	if _, ok := g.balances[addr]; !ok {
		return 0, fmt.Errorf("account %s: %w", addr, sentinel.ErrNotFound)
	}
	return g.sequences[addr], nil
}

func (g *MemoryGateway) TokenBalance(_ context.Context, addr domain.Address, currency domain.Currency) (domain.Drops, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.unavailable {
		return 0, fmt.Errorf("token balance: %w", sentinel.ErrUnavailable)
	}
	return g.tokens[tokenKey(addr, currency)], nil
}

func (g *MemoryGateway) LedgerIndex(_ context.Context) (uint32, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.unavailable {
		return 0, fmt.Errorf("ledger index: %w", sentinel.ErrUnavailable)
	}
	g.ledgerIndex++
	return g.ledgerIndex, nil
}

func (g *MemoryGateway) RecommendedFee(_ context.Context) (domain.Drops, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.unavailable {
		return 0, fmt.Errorf("fee: %w", sentinel.ErrUnavailable)
	}
	return 12, nil
}

// signedBlob is the fake wire form of a signed transaction: tests build blobs
// with MarshalSignedBlob instead of running a real signer.
type signedBlob struct {
	Destination domain.Address  `json:"destination"`
	Amount      domain.Drops    `json:"amount_drops"`
	Currency    domain.Currency `json:"currency"`
}

// MarshalSignedBlob builds a blob that SubmitSignedTx will accept.
func MarshalSignedBlob(destination domain.Address, amount domain.Drops, currency domain.Currency) string {
	raw, _ := json.Marshal(signedBlob{Destination: destination, Amount: amount, Currency: currency})
	return string(raw)
}

func (g *MemoryGateway) SubmitSignedTx(_ context.Context, blob string) (TxRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.unavailable {
		return TxRecord{}, fmt.Errorf("submit: %w", sentinel.ErrUnavailable)
	}
	if g.signingBroken {
		return TxRecord{}, fmt.Errorf("submit: %w", sentinel.ErrSigning)
	}

	var sb signedBlob
	if err := json.Unmarshal([]byte(blob), &sb); err != nil {
		return TxRecord{}, fmt.Errorf("submit: malformed blob: %w", sentinel.ErrSigning)
	}
	if sb.Currency == "" {
		sb.Currency = domain.CurrencyXRP
	}

	rec := TxRecord{
		Hash:        g.nextHash(),
		Amount:      sb.Amount,
		Currency:    sb.Currency,
		Destination: sb.Destination,
		Succeeded:   true,
	}
	g.balances[sb.Destination] += sb.Amount
	g.txs[rec.Hash] = rec
	return rec, nil
}

func (g *MemoryGateway) Tx(_ context.Context, hash domain.TxHash) (TxRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.unavailable {
		return TxRecord{}, fmt.Errorf("tx lookup: %w", sentinel.ErrUnavailable)
	}
	rec, ok := g.txs[hash]
	if !ok {
		return TxRecord{}, fmt.Errorf("tx %s: %w", hash, sentinel.ErrNotFound)
	}
	return rec, nil
}

func (g *MemoryGateway) Payment(_ context.Context, from, to domain.Address, amount domain.Drops, currency domain.Currency) (domain.TxHash, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.unavailable {
		return "", fmt.Errorf("payment: %w", sentinel.ErrUnavailable)
	}

	if currency == domain.CurrencyXRP {
		if g.balances[from] < amount {
			return "", fmt.Errorf("payment from %s: insufficient funds: %w", from, sentinel.ErrInvalidState)
		}
		g.balances[from] -= amount
		g.balances[to] += amount
	} else {
		fromKey, toKey := tokenKey(from, currency), tokenKey(to, currency)
		if g.tokens[fromKey] < amount {
			return "", fmt.Errorf("token payment from %s: insufficient funds: %w", from, sentinel.ErrInvalidState)
		}
		g.tokens[fromKey] -= amount
		g.tokens[toKey] += amount
	}

	hash := g.nextHash()
	g.txs[hash] = TxRecord{Hash: hash, Amount: amount, Currency: currency, Destination: to, Succeeded: true}
	return hash, nil
}

func (g *MemoryGateway) CreateEscrow(_ context.Context, req EscrowCreate) (EscrowResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.unavailable {
		return EscrowResult{}, fmt.Errorf("create escrow: %w", sentinel.ErrUnavailable)
	}
	if reason, ok := g.failEscrowTo[req.Destination]; ok {
		return EscrowResult{}, fmt.Errorf("create escrow to %s: %s: %w", req.Destination, reason, sentinel.ErrInvalidState)
	}

	if req.Currency == domain.CurrencyXRP || req.Currency == "" {
		if g.balances[req.Source] < req.Amount {
			return EscrowResult{}, fmt.Errorf("create escrow from %s: insufficient funds: %w", req.Source, sentinel.ErrInvalidState)
		}
		g.balances[req.Source] -= req.Amount
	} else {
		key := tokenKey(req.Source, req.Currency)
		if g.tokens[key] < req.Amount {
			return EscrowResult{}, fmt.Errorf("create token escrow from %s: insufficient funds: %w", req.Source, sentinel.ErrInvalidState)
		}
		g.tokens[key] -= req.Amount
	}

	seq := g.sequences[req.Source]
	g.sequences[req.Source] = seq + 1
	g.escrows[escrowKey(req.Source, seq)] = &memEscrow{create: req}

	hash := g.nextHash()
	g.txs[hash] = TxRecord{Hash: hash, Amount: req.Amount, Currency: req.Currency, Destination: req.Destination, Succeeded: true}
	return EscrowResult{TxHash: hash, Sequence: seq}, nil
}

func (g *MemoryGateway) FinishEscrow(_ context.Context, req EscrowFinish) (domain.TxHash, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.unavailable {
		return "", fmt.Errorf("finish escrow: %w", sentinel.ErrUnavailable)
	}

	esc, ok := g.escrows[escrowKey(req.Owner, req.OfferSequence)]
	if !ok {
		return "", fmt.Errorf("escrow %s/%d: %w", req.Owner, req.OfferSequence, sentinel.ErrNotFound)
	}
	if esc.finished {
		return "", fmt.Errorf("escrow %s/%d already finished: %w", req.Owner, req.OfferSequence, sentinel.ErrInvalidState)
	}
	esc.finished = true

	if esc.create.Currency == domain.CurrencyXRP || esc.create.Currency == "" {
		g.balances[esc.create.Destination] += esc.create.Amount
	} else {
		g.tokens[tokenKey(esc.create.Destination, esc.create.Currency)] += esc.create.Amount
	}

	hash := g.nextHash()
	g.txs[hash] = TxRecord{Hash: hash, Amount: esc.create.Amount, Currency: esc.create.Currency, Destination: esc.create.Destination, Succeeded: true}
	return hash, nil
}

func (g *MemoryGateway) FundAccount(_ context.Context, addr domain.Address) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.unavailable {
		return fmt.Errorf("fund account: %w", sentinel.ErrUnavailable)
	}
	// Devnet faucet grants.
	g.balances[addr] += domain.FromXRP(100)
	if _, ok := g.sequences[addr]; !ok {
		g.sequences[addr] = 1
	}
	return nil
}

func (g *MemoryGateway) nextHash() domain.TxHash {
	g.txCounter++
	return domain.TxHash(fmt.Sprintf("%064X", g.txCounter))
}

func tokenKey(addr domain.Address, currency domain.Currency) string {
	return string(addr) + "|" + string(currency)
}

func escrowKey(owner domain.Address, seq uint32) string {
	return fmt.Sprintf("%s/%d", owner, seq)
}
