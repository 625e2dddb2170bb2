package nodeapi

// Blockbook REST payloads. Amount fields arrive as strings of base
// units (satoshi-style) and are passed through untouched; callers parse
// them with the precision of their coin.

// AddressInfo is the response of /api/v2/address/{address}.
type AddressInfo struct {
	Address            string `json:"address"`
	Balance            string `json:"balance"`
	UnconfirmedBalance string `json:"unconfirmedBalance"`
	TotalReceived      string `json:"totalReceived"`
	TotalSent          string `json:"totalSent"`
	Txs                int    `json:"txs"`
	UnconfirmedTxs     int    `json:"unconfirmedTxs"`
}

// Utxo is one element of /api/v2/utxo/{address}.
type Utxo struct {
	Txid          string `json:"txid"`
	Vout          int    `json:"vout"`
	Value         string `json:"value"`
	Confirmations int    `json:"confirmations"`
	Height        int64  `json:"height,omitempty"`
}

// TxVin is a transaction input in /api/v2/tx/{txid}.
type TxVin struct {
	Txid      string   `json:"txid"`
	Vout      int      `json:"vout"`
	Addresses []string `json:"addresses"`
	Value     string   `json:"value"`
}

// TxVout is a transaction output in /api/v2/tx/{txid}.
type TxVout struct {
	Value     string   `json:"value"`
	N         int      `json:"n"`
	Addresses []string `json:"addresses"`
}

// TxDetail is the response of /api/v2/tx/{txid}.
type TxDetail struct {
	Txid          string   `json:"txid"`
	BlockHash     string   `json:"blockHash,omitempty"`
	BlockHeight   int64    `json:"blockHeight"`
	Confirmations int      `json:"confirmations"`
	BlockTime     int64    `json:"blockTime"`
	Value         string   `json:"value"`
	Fees          string   `json:"fees"`
	Vin           []TxVin  `json:"vin"`
	Vout          []TxVout `json:"vout"`
}

// XpubInfo is the summary response of /api/v2/xpub/{xpub}.
type XpubInfo struct {
	Balance       string `json:"balance"`
	TotalReceived string `json:"totalReceived"`
	TotalSent     string `json:"totalSent"`
	Txs           int    `json:"txs"`
}

// BlockInfo is the response of /api/v2/block/{height}.
type BlockInfo struct {
	Hash    string `json:"hash"`
	Height  int64  `json:"height"`
	TxCount int    `json:"txCount"`
	Time    int64  `json:"time"`
}

// Status is the response of /api/v2: Blockbook and backend state.
type Status struct {
	Blockbook StatusBlockbook `json:"blockbook"`
	Backend   StatusBackend   `json:"backend"`
}

// StatusBlockbook is the indexer half of Status.
type StatusBlockbook struct {
	Coin          string `json:"coin"`
	BestHeight    int64  `json:"bestHeight"`
	InSync        bool   `json:"inSync"`
	InSyncMempool bool   `json:"inSyncMempool"`
	LastBlockTime string `json:"lastBlockTime"`
}

// StatusBackend is the node half of Status.
type StatusBackend struct {
	Chain           string `json:"chain"`
	Blocks          int64  `json:"blocks"`
	Headers         int64  `json:"headers"`
	Version         string `json:"version"`
	Subversion      string `json:"subversion"`
	ProtocolVersion string `json:"protocolVersion"`
}

// ChainInfo is the result of the getblockchaininfo RPC.
type ChainInfo struct {
	Chain                string  `json:"chain"`
	Blocks               int64   `json:"blocks"`
	Headers              int64   `json:"headers"`
	BestBlockHash        string  `json:"bestblockhash"`
	Difficulty           float64 `json:"difficulty"`
	VerificationProgress float64 `json:"verificationprogress"`
}

// ValidateResult is the result of the validateaddress RPC.
type ValidateResult struct {
	IsValid      bool   `json:"isvalid"`
	Address      string `json:"address,omitempty"`
	ScriptPubKey string `json:"scriptPubKey,omitempty"`
	IsWitness    bool   `json:"iswitness,omitempty"`
}

// SmartFee is the result of the estimatesmartfee RPC. Feerate is in
// coin units per kilobyte.
type SmartFee struct {
	Feerate float64  `json:"feerate"`
	Errors  []string `json:"errors,omitempty"`
	Blocks  int      `json:"blocks"`
}

// SignedTx is the result of the signing RPCs.
type SignedTx struct {
	Hex      string `json:"hex"`
	Complete bool   `json:"complete"`
}

// TxInput identifies one UTXO consumed by createrawtransaction.
type TxInput struct {
	Txid string `json:"txid"`
	Vout int    `json:"vout"`
}
