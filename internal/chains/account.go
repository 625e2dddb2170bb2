package chains

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	ethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"

	"github.com/glebkoxan36/mypip/internal/domain"
)

// sweepGasLimit is the gas of a plain value transfer.
const sweepGasLimit = 21000

// AccountChain serves an account-model coin through an Ethereum-style
// JSON-RPC node. Sweep arithmetic runs in big.Int wei internally;
// base-unit reporting saturates at the int64 range.
type AccountChain struct {
	desc   domain.CoinDescriptor
	client *ethclient.Client
	log    logrus.FieldLogger

	chainIDMu sync.Mutex
	chainID   *big.Int
}

var (
	_ Capability    = (*AccountChain)(nil)
	_ AccountReader = (*AccountChain)(nil)
)

// NewAccountChain creates the capability for one account coin.
func NewAccountChain(desc domain.CoinDescriptor, client *ethclient.Client, log logrus.FieldLogger) *AccountChain {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &AccountChain{
		desc:   desc,
		client: client,
		log:    log.WithField("coin", desc.Symbol),
	}
}

func (c *AccountChain) Coin() domain.Coin {
	return c.desc.Symbol
}

func (c *AccountChain) Variant() domain.Variant {
	return domain.VariantAccount
}

// ValidateAddress checks hex shape and, for mixed-case input, the
// EIP-55 checksum.
func (c *AccountChain) ValidateAddress(address string) error {
	if !common.IsHexAddress(address) {
		return &domain.ValidationError{Field: "address", Reason: "not a hex address"}
	}
	hexPart := strings.TrimPrefix(strings.TrimPrefix(address, "0x"), "0X")
	if hexPart != strings.ToLower(hexPart) && hexPart != strings.ToUpper(hexPart) {
		if common.HexToAddress(address).Hex() != address {
			return &domain.ValidationError{Field: "address", Reason: "checksum mismatch"}
		}
	}
	return nil
}

func (c *AccountChain) GetBalance(ctx context.Context, address string) (*Balance, error) {
	account := common.HexToAddress(address)

	confirmed, err := c.client.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, wrapNodeErr("getBalance", err)
	}
	pending, err := c.client.PendingBalanceAt(ctx, account)
	if err != nil {
		return nil, wrapNodeErr("getBalance", err)
	}

	delta := new(big.Int).Sub(pending, confirmed)
	return &Balance{
		Confirmed:   saturateInt64(confirmed),
		Unconfirmed: saturateInt64(delta),
	}, nil
}

func (c *AccountChain) GetAccountBalance(ctx context.Context, address string) (int64, error) {
	balance, err := c.client.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return 0, wrapNodeErr("getAccountBalance", err)
	}
	return saturateInt64(balance), nil
}

func (c *AccountChain) GetNonce(ctx context.Context, address string) (uint64, error) {
	nonce, err := c.client.PendingNonceAt(ctx, common.HexToAddress(address))
	if err != nil {
		return 0, wrapNodeErr("getNonce", err)
	}
	return nonce, nil
}

func (c *AccountChain) EstimateFee(ctx context.Context, targetBlocks int) (int64, error) {
	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		c.log.WithError(err).Warn("gas price query failed, using static fallback")
		return c.desc.CollectionFee, nil
	}
	fee := new(big.Int).Mul(gasPrice, big.NewInt(sweepGasLimit))
	return saturateInt64(fee), nil
}

// BuildSweepTransaction drains source to destination with a plain
// transfer of balance minus fee. The gas price is derived from the
// fee so the transaction spends exactly what the caller budgeted.
func (c *AccountChain) BuildSweepTransaction(ctx context.Context, source, destination string, fee int64) (*UnsignedTx, error) {
	if err := c.ValidateAddress(destination); err != nil {
		return nil, err
	}
	if fee < sweepGasLimit {
		return nil, &domain.ValidationError{Field: "fee", Reason: "below minimum gas cost"}
	}

	from := common.HexToAddress(source)
	to := common.HexToAddress(destination)

	balance, err := c.client.BalanceAt(ctx, from, nil)
	if err != nil {
		return nil, wrapNodeErr("buildSweep", err)
	}

	gasFee := big.NewInt(fee)
	value := new(big.Int).Sub(balance, gasFee)
	if value.Sign() <= 0 {
		return nil, &domain.InsufficientFundsError{Available: saturateInt64(balance), Required: fee}
	}

	nonce, err := c.client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, wrapNodeErr("buildSweep", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      sweepGasLimit,
		GasPrice: big.NewInt(fee / sweepGasLimit),
	})
	bin, err := tx.MarshalBinary()
	if err != nil {
		return nil, &domain.UpstreamError{Op: "buildSweep", Err: err}
	}

	return &UnsignedTx{
		Raw:    hex.EncodeToString(bin),
		Gross:  saturateInt64(balance),
		Fee:    fee,
		Inputs: 1,
	}, nil
}

func (c *AccountChain) Sign(ctx context.Context, tx *UnsignedTx, credential string) (string, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(credential, "0x"))
	if err != nil {
		return "", &domain.UpstreamError{Op: "sign", Err: fmt.Errorf("decode key: %w", err)}
	}

	raw, err := hex.DecodeString(tx.Raw)
	if err != nil {
		return "", &domain.UpstreamError{Op: "sign", Err: fmt.Errorf("decode transaction: %w", err)}
	}
	var unsigned types.Transaction
	if err := unsigned.UnmarshalBinary(raw); err != nil {
		return "", &domain.UpstreamError{Op: "sign", Err: fmt.Errorf("decode transaction: %w", err)}
	}

	chainID, err := c.getChainID(ctx)
	if err != nil {
		return "", err
	}

	signed, err := types.SignTx(&unsigned, types.LatestSignerForChainID(chainID), key)
	if err != nil {
		return "", &domain.UpstreamError{Op: "sign", Err: err}
	}
	bin, err := signed.MarshalBinary()
	if err != nil {
		return "", &domain.UpstreamError{Op: "sign", Err: err}
	}
	return hex.EncodeToString(bin), nil
}

func (c *AccountChain) Broadcast(ctx context.Context, signedTx string) (string, error) {
	raw, err := hex.DecodeString(signedTx)
	if err != nil {
		return "", &domain.UpstreamError{Op: "broadcast", Err: errors.New("not hex")}
	}
	var tx types.Transaction
	if err := tx.UnmarshalBinary(raw); err != nil {
		return "", &domain.UpstreamError{Op: "broadcast", Err: err}
	}

	if err := c.client.SendTransaction(ctx, &tx); err != nil {
		return "", wrapNodeErr("broadcast", err)
	}
	return tx.Hash().Hex(), nil
}

func (c *AccountChain) Height(ctx context.Context) (int64, error) {
	height, err := c.client.BlockNumber(ctx)
	if err != nil {
		return 0, wrapNodeErr("height", err)
	}
	return int64(height), nil
}

// getChainID fetches and caches the chain id used for signing.
func (c *AccountChain) getChainID(ctx context.Context) (*big.Int, error) {
	c.chainIDMu.Lock()
	defer c.chainIDMu.Unlock()

	if c.chainID != nil {
		return c.chainID, nil
	}
	id, err := c.client.ChainID(ctx)
	if err != nil {
		return nil, wrapNodeErr("chainID", err)
	}
	c.chainID = id
	return id, nil
}

// wrapNodeErr classifies an ethclient failure: errors the node itself
// reported carry an RPC code and are permanent, everything else is
// transport and retryable.
func wrapNodeErr(op string, err error) error {
	var rpcErr ethrpc.Error
	if errors.As(err, &rpcErr) {
		return &domain.UpstreamError{Op: op, Code: rpcErr.ErrorCode(), Err: err}
	}
	return &domain.UpstreamError{Op: op, Transient: true, Err: err}
}

// saturateInt64 converts big.Int to int64, clamping out-of-range
// values at the bounds.
func saturateInt64(v *big.Int) int64 {
	if v.IsInt64() {
		return v.Int64()
	}
	if v.Sign() > 0 {
		return math.MaxInt64
	}
	return math.MinInt64
}
