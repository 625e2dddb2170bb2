package chains

import (
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"

	"github.com/glebkoxan36/mypip/internal/domain"
	"github.com/glebkoxan36/mypip/internal/nodeapi"
)

// Endpoints carries the upstream URLs for one coin.
type Endpoints struct {
	// DataURL is the Blockbook-style data API base.
	DataURL string
	// RPCURL is the daemon JSON-RPC endpoint. For account coins this
	// is the only endpoint used.
	RPCURL string
	// APIKey is the shared upstream credential.
	APIKey string
}

// New builds the capability matching the descriptor's variant.
func New(desc domain.CoinDescriptor, ep Endpoints, log logrus.FieldLogger, opts ...nodeapi.Option) (Capability, error) {
	switch desc.Variant {
	case domain.VariantUTXO:
		data := nodeapi.NewBlockbookClient(ep.DataURL, ep.APIKey, opts...)
		rpc := nodeapi.NewRPCClient(ep.RPCURL, ep.APIKey, opts...)
		return NewUtxoChain(desc, data, rpc, log)
	case domain.VariantAccount:
		client, err := ethclient.Dial(ep.RPCURL)
		if err != nil {
			return nil, &domain.UpstreamError{Op: "dial", Transient: true, Err: err}
		}
		return NewAccountChain(desc, client, log), nil
	default:
		return nil, &domain.ValidationError{Field: "variant", Reason: "unknown variant " + string(desc.Variant)}
	}
}
