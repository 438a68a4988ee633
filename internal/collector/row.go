package collector

import (
	"strconv"
	"time"
)

// TimestampFormat is local time with microseconds.
const TimestampFormat = "2006-01-02T15:04:05.000000"

// Header is the CSV header row.
var Header = []string{
	"Timestamp",
	"Geth_Latency(ms)", "Geth_Peers", "Geth_Block", "Geth_TX_Pending",
	"Geth_GasPrice(Gwei)", "Geth_BaseFee(Gwei)", "Geth_GasUsed", "Geth_GasLimit", "Geth_GasUsage(%)", "Geth_TxCount", "Geth_Internal_Latency(us)",
	"Prysm_Latency(ms)", "Prysm_Peers", "Prysm_Slot", "Prysm_Finalized", "Prysm_Validators", "Prysm_Reorgs",
}

// Row is one sampling of both nodes.
type Row struct {
	Timestamp time.Time

	GethLatencyMs         float64
	GethPeers             int64
	GethBlock             int64
	GethTxPending         int64
	GasPriceGwei          float64
	BaseFeeGwei           float64
	GasUsed               uint64
	GasLimit              uint64
	GasUsagePct           float64
	TxCount               int
	GethInternalLatencyUs float64

	PrysmLatencyMs  float64
	PrysmPeers      int64
	PrysmSlot       int64
	PrysmFinalized  int64
	PrysmValidators int64
	PrysmReorgs     int64
}

// Record renders the row in Header order.
func (r Row) Record() []string {
	return []string{
		r.Timestamp.Format(TimestampFormat),
		fmtFloat(r.GethLatencyMs),
		fmtInt(r.GethPeers),
		fmtInt(r.GethBlock),
		fmtInt(r.GethTxPending),
		fmtFloat(r.GasPriceGwei),
		fmtFloat(r.BaseFeeGwei),
		strconv.FormatUint(r.GasUsed, 10),
		strconv.FormatUint(r.GasLimit, 10),
		fmtFloat(r.GasUsagePct),
		strconv.Itoa(r.TxCount),
		fmtFloat(r.GethInternalLatencyUs),
		fmtFloat(r.PrysmLatencyMs),
		fmtInt(r.PrysmPeers),
		fmtInt(r.PrysmSlot),
		fmtInt(r.PrysmFinalized),
		fmtInt(r.PrysmValidators),
		fmtInt(r.PrysmReorgs),
	}
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func fmtInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
