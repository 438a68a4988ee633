// Package load drives synthetic JSON-RPC read traffic against a node.
package load

// Operation is the kind of work a worker performs in one iteration.
type Operation int

const (
	OpLatestBlock Operation = iota
	OpConfirmBlock
	OpTxLookup
	OpChainInfo
)

// Selection thresholds on r in [0, 1).
const (
	latestBlockCutoff  = 0.30
	confirmBlockCutoff = 0.60
	txLookupCutoff     = 0.90
)

func (o Operation) String() string {
	switch o {
	case OpLatestBlock:
		return "latest_block"
	case OpConfirmBlock:
		return "confirm_block"
	case OpTxLookup:
		return "tx_lookup"
	case OpChainInfo:
		return "chain_info"
	default:
		return "unknown"
	}
}

// SelectOperation maps a uniform draw to an operation.
// The cached-block operations need at least one cached block; with an empty
// cache their share of draws falls through to OpChainInfo.
func SelectOperation(r float64, cacheEmpty bool) Operation {
	switch {
	case r < latestBlockCutoff:
		return OpLatestBlock
	case r < confirmBlockCutoff && !cacheEmpty:
		return OpConfirmBlock
	case r < txLookupCutoff && !cacheEmpty:
		return OpTxLookup
	default:
		return OpChainInfo
	}
}
