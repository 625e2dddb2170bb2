package domain

// SweepOutcome is the append-only history row written after a
// collection record reaches a terminal state. Outcomes archive what
// the engine did, not the upstream events it saw.
type SweepOutcome struct {
	Coin       Coin
	Address    string
	State      CollectionState // collected | failed | abandoned
	Txid       string          // empty unless collected
	Gross      int64           // swept amount before fee, base units
	Fee        int64           // flat fee charged, base units
	UtxoCount  int             // inputs consumed, 0 for account sweeps
	Attempts   int
	Error      string          // failure reason, empty on success
	StartedAt  int64           // Unix timestamp in milliseconds
	FinishedAt int64           // Unix timestamp in milliseconds
}
