package rpc

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Transaction is the subset of a transaction object the load generator uses.
type Transaction struct {
	Hash common.Hash    `json:"hash"`
	From common.Address `json:"from"`
}

// UnmarshalJSON accepts either a full transaction object or a bare hash,
// which is what eth_getBlockByNumber returns when full transactions are not requested.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &t.Hash)
	}
	type plain Transaction
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*t = Transaction(p)
	return nil
}

// HasSender reports whether the transaction carries a sender address.
func (t Transaction) HasSender() bool {
	return t.From != (common.Address{})
}

// Block is a block as returned by eth_getBlockByNumber.
type Block struct {
	Number       hexutil.Uint64 `json:"number"`
	Hash         common.Hash    `json:"hash"`
	Transactions []Transaction  `json:"transactions"`
}

// BlockSummary holds the gas figures of a block fetched without full transactions.
type BlockSummary struct {
	Number        hexutil.Uint64    `json:"number"`
	BaseFeePerGas *hexutil.Big      `json:"baseFeePerGas"`
	GasUsed       hexutil.Uint64    `json:"gasUsed"`
	GasLimit      hexutil.Uint64    `json:"gasLimit"`
	Transactions  []json.RawMessage `json:"transactions"`
}

// TxCount returns the number of transactions in the block.
func (b BlockSummary) TxCount() int {
	return len(b.Transactions)
}

// GasUsagePercent returns gasUsed/gasLimit as a percentage, 0 when the limit is unknown.
func (b BlockSummary) GasUsagePercent() float64 {
	if b.GasLimit == 0 {
		return 0
	}
	return float64(b.GasUsed) / float64(b.GasLimit) * 100
}
