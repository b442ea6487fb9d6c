package simulation

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
)

// saveTrades appends the finished day's trade lifecycle records to the
// replay report, header only once per run. Open-but-never-closed trades
// were force-closed by evaluateDay and appear with the forced flag set.
func (vm *VirtualMarket) saveTrades() {
	if len(vm.closedMeta) == 0 {
		return
	}

	path := filepath.Join(vm.cfg.SaveDir, "trades.tsv")
	if err := os.MkdirAll(vm.cfg.SaveDir, 0o755); err != nil {
		vm.logger.Warn("unable to create report directory", zap.Error(err))
		return
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_APPEND
	if !vm.reportHeaderWritten {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		vm.logger.Warn("unable to write trade report", zap.Error(err))
		return
	}
	defer file.Close()

	if !vm.reportHeaderWritten {
		fmt.Fprintln(file, "Trade ID\tOpening Time\tType\tProfit\tClosing Time\tForced Close")
		vm.reportHeaderWritten = true
	}

	tickets := make([]int32, 0, len(vm.closedMeta))
	for ticket := range vm.closedMeta {
		tickets = append(tickets, ticket)
	}
	sort.Slice(tickets, func(i, j int) bool { return tickets[i] < tickets[j] })

	for _, ticket := range tickets {
		meta := vm.closedMeta[ticket]
		forced := 0
		if meta.forced {
			forced = 1
		}
		fmt.Fprintf(file, "%d\t%d\t%d\t%v\t%d\t%d\n",
			ticket, meta.openedAt.Unix(), meta.tradeType, meta.profit, meta.closedAt.Unix(), forced)
	}
}

// reportTotals prints the end-of-period result summary.
func (vm *VirtualMarket) reportTotals() {
	vm.logger.Info("replay finished",
		zap.Float64("total_profit_pips", vm.totalProfitPips),
		zap.Int("won_trades", vm.wonTrades),
		zap.Int("lost_trades", vm.lostTrades))
}
