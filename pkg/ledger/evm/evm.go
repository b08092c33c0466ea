// Package evm implements the ledger over an Ethereum-compatible JSON-RPC node.
package evm

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/aona-labs/aona/pkg/ledger"
)

// DefaultSymbol is the native token symbol.
const DefaultSymbol = "ETH"

const transferGas = 21_000

// Backend is the subset of the JSON-RPC client the ledger uses.
// *ethclient.Client and the simulated backend client both satisfy it.
type Backend interface {
	ethereum.ChainReader
	ethereum.ChainStateReader
	ethereum.TransactionReader
	ethereum.TransactionSender
	ethereum.PendingStateReader
	ethereum.GasPricer
	ethereum.GasPricer1559
	ethereum.ChainIDReader
}

// Reader is a read-only ledger.Reader backed by a node.
type Reader struct {
	backend Backend
	symbol  string
	closer  func()
}

// Dial connects to rpcURL.
func Dial(ctx context.Context, rpcURL, symbol string) (*Reader, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", rpcURL, err)
	}
	r := NewReader(client, symbol)
	r.closer = client.Close
	return r, nil
}

// NewReader wraps an existing backend.
func NewReader(backend Backend, symbol string) *Reader {
	if symbol == "" {
		symbol = DefaultSymbol
	}
	return &Reader{backend: backend, symbol: symbol}
}

// Close releases the RPC connection if Dial opened it.
func (r *Reader) Close() {
	if r.closer != nil {
		r.closer()
	}
}

// ChainID reports the chain the backend is connected to.
func (r *Reader) ChainID(ctx context.Context) (uint64, error) {
	id, err := r.backend.ChainID(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading chain id: %w", err)
	}
	return id.Uint64(), nil
}

// Transaction implements ledger.Reader.
func (r *Reader) Transaction(ctx context.Context, ref string) (*ledger.Transaction, error) {
	if len(common.FromHex(ref)) != common.HashLength {
		return nil, ledger.ErrNotFound
	}
	hash := common.HexToHash(ref)

	tx, pending, err := r.backend.TransactionByHash(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching transaction %s: %w", ref, err)
	}

	from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return nil, fmt.Errorf("recovering sender of %s: %w", ref, err)
	}

	out := &ledger.Transaction{
		Ref:    hash.Hex(),
		From:   from.Hex(),
		Amount: clampUint64(tx.Value()),
		Token:  r.symbol,
	}
	if to := tx.To(); to != nil {
		out.To = to.Hex()
	}
	if pending {
		return out, nil
	}

	receipt, err := r.backend.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching receipt for %s: %w", ref, err)
	}
	// A reverted transfer moved no value.
	if receipt.Status != types.ReceiptStatusSuccessful {
		return out, nil
	}

	header, err := r.backend.HeaderByNumber(ctx, receipt.BlockNumber)
	if err != nil {
		return nil, fmt.Errorf("fetching block %s: %w", receipt.BlockNumber, err)
	}
	out.Confirmed = true
	out.ConfirmedAt = time.Unix(int64(header.Time), 0).UTC()
	return out, nil
}

// Balance implements ledger.Reader.
func (r *Reader) Balance(ctx context.Context, address string) (uint64, error) {
	if !common.IsHexAddress(address) {
		return 0, fmt.Errorf("%w: %q", ledger.ErrInvalidRecipient, address)
	}
	bal, err := r.backend.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return 0, fmt.Errorf("fetching balance of %s: %w", address, err)
	}
	return clampUint64(bal), nil
}

// Wallet is a ledger.Signer holding one private key.
type Wallet struct {
	*Reader

	key     *ecdsa.PrivateKey
	address common.Address

	// serializes nonce assignment
	mu sync.Mutex
}

// NewWallet binds key to reader.
func NewWallet(reader *Reader, key *ecdsa.PrivateKey) *Wallet {
	return &Wallet{
		Reader:  reader,
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}
}

// Address implements ledger.Signer.
func (w *Wallet) Address() string {
	return w.address.Hex()
}

// Submit implements ledger.Signer.
func (w *Wallet) Submit(ctx context.Context, t ledger.Transfer) (string, error) {
	if !common.IsHexAddress(t.To) {
		return "", fmt.Errorf("%w: %q", ledger.ErrInvalidRecipient, t.To)
	}
	to := common.HexToAddress(t.To)
	value := new(big.Int).SetUint64(t.Amount)

	w.mu.Lock()
	defer w.mu.Unlock()

	chainID, err := w.backend.ChainID(ctx)
	if err != nil {
		return "", fmt.Errorf("fetching chain id: %w", err)
	}
	nonce, err := w.backend.PendingNonceAt(ctx, w.address)
	if err != nil {
		return "", fmt.Errorf("fetching nonce: %w", err)
	}
	head, err := w.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("fetching head: %w", err)
	}

	var tx *types.Transaction
	if head.BaseFee != nil {
		tip, err := w.backend.SuggestGasTipCap(ctx)
		if err != nil {
			return "", fmt.Errorf("suggesting tip: %w", err)
		}
		feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
		tx = types.NewTx(&types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: feeCap,
			Gas:       transferGas,
			To:        &to,
			Value:     value,
		})
	} else {
		price, err := w.backend.SuggestGasPrice(ctx)
		if err != nil {
			return "", fmt.Errorf("suggesting gas price: %w", err)
		}
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: price,
			Gas:      transferGas,
			To:       &to,
			Value:    value,
		})
	}

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), w.key)
	if err != nil {
		return "", fmt.Errorf("signing transfer: %w", err)
	}

	bal, err := w.backend.BalanceAt(ctx, w.address, nil)
	if err == nil && bal.Cmp(signed.Cost()) < 0 {
		return "", fmt.Errorf("%w: %s holds %s, needs %s",
			ledger.ErrInsufficientFunds, w.address.Hex(), bal, signed.Cost())
	}

	if err := w.backend.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("broadcasting transfer: %w", err)
	}
	return signed.Hash().Hex(), nil
}

func clampUint64(v *big.Int) uint64 {
	if v == nil || v.Sign() < 0 {
		return 0
	}
	if !v.IsUint64() {
		return math.MaxUint64
	}
	return v.Uint64()
}
