package optimism

import (
	"math"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/fhesim/fhesim/foundation/report"
)

// blockStats computes the batch level statistics over the fetched block
// headers: average size, average time between blocks, average base fee, and
// the base fee volatility as a standard deviation.
func blockStats(blocks []Block) report.BlockStats {
	stats := report.BlockStats{Blocks: len(blocks)}

	var sizes []float64
	var fees []float64
	var times []float64
	for _, block := range blocks {
		if size, err := hexutil.DecodeUint64(block.Size); err == nil {
			sizes = append(sizes, float64(size))
		}
		if ts, err := hexutil.DecodeUint64(block.Timestamp); err == nil {
			times = append(times, float64(ts))
		}
		if block.BaseFeePerGas != "" {
			if fee, err := hexutil.DecodeUint64(block.BaseFeePerGas); err == nil {
				fees = append(fees, float64(fee))
			}
		}
	}

	stats.AvgBlockSize = mean(sizes)
	stats.AvgBlockTime = avgBlockTime(times)
	stats.AvgGasPrice = mean(fees)
	stats.GasPriceVolatility = stddev(fees)

	return stats
}

// avgBlockTime computes the average seconds between consecutive blocks from
// their timestamps. The blocks are walked newest first, so the span between
// the newest and oldest timestamp covers len-1 intervals.
func avgBlockTime(timestamps []float64) float64 {
	if len(timestamps) < 2 {
		return 0
	}

	min, max := timestamps[0], timestamps[0]
	for _, ts := range timestamps[1:] {
		if ts < min {
			min = ts
		}
		if ts > max {
			max = ts
		}
	}

	return (max - min) / float64(len(timestamps)-1)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	m := mean(values)
	var sum float64
	for _, v := range values {
		sum += (v - m) * (v - m)
	}
	return math.Sqrt(sum / float64(len(values)))
}
