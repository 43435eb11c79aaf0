package reconciliation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/KotFed0t/fund_calc_pipeline/internal/model"
	"github.com/KotFed0t/fund_calc_pipeline/utils"
	"github.com/shopspring/decimal"
)

// Reconciliator compares today's weights with the most recent prior successful
// result and flags material day-over-day changes. Alerts are informational:
// they never fail the run or block persistence.
type Reconciliator struct {
	thresholdPct decimal.Decimal
}

func New(thresholdPct decimal.Decimal) *Reconciliator {
	return &Reconciliator{thresholdPct: thresholdPct}
}

// Compare performs a full outer join on (portfolio, symbol) between current
// and previous rows. A key missing on one side counts as weight zero there.
func (r *Reconciliator) Compare(ctx context.Context, current, previous model.WeightResult) model.ReconciliationReport {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Reconciliator.Compare"

	slog.Debug("Compare start", slog.String("rqID", rqID), slog.String("op", op), slog.String("fund", current.Fund))

	curWeights := make(map[string]decimal.Decimal, len(current.Rows))
	keys := make([]string, 0, len(current.Rows))
	for _, row := range current.Rows {
		curWeights[row.Key()] = row.Weight
		keys = append(keys, row.Key())
	}

	prevWeights := make(map[string]decimal.Decimal, len(previous.Rows))
	for _, row := range previous.Rows {
		prevWeights[row.Key()] = row.Weight
		if _, ok := curWeights[row.Key()]; !ok {
			keys = append(keys, row.Key())
		}
	}

	report := model.ReconciliationReport{}

	for _, key := range keys {
		cur := curWeights[key] // zero when absent
		prev := prevWeights[key]

		change := model.WeightChange{
			Key:            key,
			PreviousWeight: prev,
			CurrentWeight:  cur,
			Change:         cur.Sub(prev),
		}
		report.Changes = append(report.Changes, change)

		if prev.IsZero() && cur.Sign() > 0 {
			report.NewComponents = append(report.NewComponents, key)
		}
		if prev.Sign() > 0 && cur.IsZero() {
			report.RemovedComponents = append(report.RemovedComponents, key)
		}

		if change.AbsChange().GreaterThan(r.thresholdPct) {
			report.Alerts = append(report.Alerts, fmt.Sprintf(
				"%s: %s%% → %s%% (Δ%s%spp)",
				key,
				prev.StringFixed(2),
				cur.StringFixed(2),
				signPrefix(change.Change),
				change.Change.Abs().StringFixed(2),
			))
		}
	}

	// biggest movers first, like the original report ordering
	sort.SliceStable(report.Changes, func(i, j int) bool {
		return report.Changes[i].AbsChange().GreaterThan(report.Changes[j].AbsChange())
	})

	if len(report.NewComponents) > 0 {
		report.Alerts = append(report.Alerts, "new components added: "+strings.Join(report.NewComponents, ", "))
	}
	if len(report.RemovedComponents) > 0 {
		report.Alerts = append(report.Alerts, "components removed: "+strings.Join(report.RemovedComponents, ", "))
	}

	slog.Debug("Compare completed",
		slog.String("rqID", rqID),
		slog.String("op", op),
		slog.String("fund", current.Fund),
		slog.Int("alerts", len(report.Alerts)),
	)

	return report
}

func signPrefix(d decimal.Decimal) string {
	if d.Sign() < 0 {
		return "-"
	}
	return "+"
}
