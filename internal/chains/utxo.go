package chains

import (
	"context"
	"errors"
	"math"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/glebkoxan36/mypip/internal/domain"
	"github.com/glebkoxan36/mypip/internal/nodeapi"
)

// UtxoChain serves a Bitcoin-family coin through the node-proxy data
// API (balances, UTXOs) and daemon RPC (fees, build, sign,
// broadcast).
type UtxoChain struct {
	desc   domain.CoinDescriptor
	params chainParams
	data   *nodeapi.BlockbookClient
	rpc    *nodeapi.RPCClient
	log    logrus.FieldLogger
}

var (
	_ Capability = (*UtxoChain)(nil)
	_ UtxoLister = (*UtxoChain)(nil)
)

// NewUtxoChain creates the capability for one UTXO coin. The symbol
// must have a chain profile.
func NewUtxoChain(desc domain.CoinDescriptor, data *nodeapi.BlockbookClient, rpc *nodeapi.RPCClient, log logrus.FieldLogger) (*UtxoChain, error) {
	params, ok := paramsBySymbol[desc.Symbol]
	if !ok {
		return nil, &domain.ValidationError{Field: "symbol", Reason: "no chain profile for " + desc.Symbol.String()}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &UtxoChain{
		desc:   desc,
		params: params,
		data:   data,
		rpc:    rpc,
		log:    log.WithField("coin", desc.Symbol),
	}, nil
}

func (c *UtxoChain) Coin() domain.Coin {
	return c.desc.Symbol
}

func (c *UtxoChain) Variant() domain.Variant {
	return domain.VariantUTXO
}

func (c *UtxoChain) ValidateAddress(address string) error {
	return validateUtxoAddress(address, c.params)
}

func (c *UtxoChain) GetBalance(ctx context.Context, address string) (*Balance, error) {
	info, err := c.data.GetAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	confirmed, err := parseUnits(info.Balance)
	if err != nil {
		return nil, &domain.UpstreamError{Op: "getBalance", Err: err}
	}
	unconfirmed, err := parseUnits(info.UnconfirmedBalance)
	if err != nil {
		return nil, &domain.UpstreamError{Op: "getBalance", Err: err}
	}
	return &Balance{Confirmed: confirmed, Unconfirmed: unconfirmed}, nil
}

func (c *UtxoChain) ListUtxos(ctx context.Context, address string) ([]Utxo, error) {
	raw, err := c.data.GetUtxos(ctx, address, false)
	if err != nil {
		return nil, err
	}

	utxos := make([]Utxo, 0, len(raw))
	for _, u := range raw {
		amount, err := parseUnits(u.Value)
		if err != nil {
			return nil, &domain.UpstreamError{Op: "listUtxos", Err: err}
		}
		utxos = append(utxos, Utxo{
			Txid:          u.Txid,
			Vout:          u.Vout,
			Amount:        amount,
			Confirmations: u.Confirmations,
		})
	}
	return utxos, nil
}

func (c *UtxoChain) EstimateFee(ctx context.Context, targetBlocks int) (int64, error) {
	if targetBlocks <= 0 {
		targetBlocks = DefaultFeeTarget
	}
	fee, err := c.rpc.EstimateSmartFee(ctx, targetBlocks)
	if err == nil && fee.Feerate > 0 {
		return coinToUnits(fee.Feerate, c.desc.Decimals), nil
	}
	if err != nil {
		c.log.WithError(err).Warn("fee estimate failed, using static fallback")
	} else {
		c.log.WithField("errors", fee.Errors).Warn("fee estimate unavailable, using static fallback")
	}
	return c.desc.CollectionFee, nil
}

// BuildSweepTransaction spends every confirmed UTXO of source into a
// single output of destination worth the total minus fee.
func (c *UtxoChain) BuildSweepTransaction(ctx context.Context, source, destination string, fee int64) (*UnsignedTx, error) {
	if err := c.ValidateAddress(destination); err != nil {
		return nil, err
	}

	utxos, err := c.ListUtxos(ctx, source)
	if err != nil {
		return nil, err
	}

	inputs := make([]nodeapi.TxInput, 0, len(utxos))
	var gross int64
	for _, u := range utxos {
		if u.Confirmations < 1 {
			continue
		}
		inputs = append(inputs, nodeapi.TxInput{Txid: u.Txid, Vout: u.Vout})
		gross += u.Amount
	}

	if gross <= fee {
		return nil, &domain.InsufficientFundsError{Available: gross, Required: fee}
	}

	net := gross - fee
	raw, err := c.rpc.CreateRawTransaction(ctx, inputs, map[string]string{
		destination: domain.FormatAmount(net, c.desc.Decimals),
	})
	if err != nil {
		return nil, err
	}

	return &UnsignedTx{Raw: raw, Gross: gross, Fee: fee, Inputs: len(inputs)}, nil
}

func (c *UtxoChain) Sign(ctx context.Context, tx *UnsignedTx, credential string) (string, error) {
	sign := c.rpc.SignRawTransactionWithKey
	if c.params.legacySign {
		sign = c.rpc.SignRawTransactionLegacy
	}

	signed, err := sign(ctx, tx.Raw, []string{credential})
	if err != nil {
		return "", err
	}
	if !signed.Complete {
		return "", &domain.UpstreamError{Op: "sign", Err: errors.New("signature incomplete")}
	}
	return signed.Hex, nil
}

func (c *UtxoChain) Broadcast(ctx context.Context, signedTx string) (string, error) {
	return c.rpc.SendRawTransaction(ctx, signedTx)
}

func (c *UtxoChain) Height(ctx context.Context) (int64, error) {
	info, err := c.rpc.GetBlockchainInfo(ctx)
	if err != nil {
		return 0, err
	}
	return info.Blocks, nil
}

// parseUnits parses a base-unit amount string from the data API.
// Empty strings count as zero.
func parseUnits(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

// coinToUnits converts a whole-coin float from the daemon into base
// units, rounding to the nearest unit.
func coinToUnits(v float64, decimals int) int64 {
	return int64(math.Round(v * math.Pow10(decimals)))
}
