package reconciliation

import (
	"context"
	"sort"
	"testing"

	"github.com/KotFed0t/fund_calc_pipeline/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func resultWith(date string, weights map[string]string) model.WeightResult {
	symbols := make([]string, 0, len(weights))
	for symbol := range weights {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	result := model.WeightResult{Fund: "test_fund", Date: date}
	for _, symbol := range symbols {
		result.Rows = append(result.Rows, model.WeightRow{
			Date:      date,
			Portfolio: "P1",
			Symbol:    symbol,
			Weight:    dec(weights[symbol]),
		})
	}
	return result
}

func TestCompare_NoMaterialChanges(t *testing.T) {
	r := New(dec("5"))

	current := resultWith("20260831", map[string]string{"AAA": "19.25", "BBB": "80.75"})
	previous := resultWith("20260828", map[string]string{"AAA": "18.00", "BBB": "82.00"})

	report := r.Compare(context.Background(), current, previous)

	assert.Empty(t, report.Alerts)
	assert.Len(t, report.Changes, 2)
	assert.Empty(t, report.NewComponents)
	assert.Empty(t, report.RemovedComponents)
}

func TestCompare_AlertAboveThreshold(t *testing.T) {
	r := New(dec("5"))

	current := resultWith("20260831", map[string]string{"AAA": "25.00", "BBB": "75.00"})
	previous := resultWith("20260828", map[string]string{"AAA": "18.00", "BBB": "82.00"})

	report := r.Compare(context.Background(), current, previous)

	require.Len(t, report.Alerts, 2)
	assert.Contains(t, report.Alerts[0], "P1_AAA")
	assert.Contains(t, report.Alerts[0], "18.00% → 25.00%")
	assert.Contains(t, report.Alerts[0], "+7.00pp")
	assert.Contains(t, report.Alerts[1], "-7.00pp")
}

func TestCompare_ExactThresholdDoesNotAlert(t *testing.T) {
	r := New(dec("5"))

	current := resultWith("20260831", map[string]string{"AAA": "23.00", "BBB": "77.00"})
	previous := resultWith("20260828", map[string]string{"AAA": "18.00", "BBB": "82.00"})

	report := r.Compare(context.Background(), current, previous)

	assert.Empty(t, report.Alerts, "a change of exactly 5pp must not alert")
}

func TestCompare_NewAndRemovedComponents(t *testing.T) {
	r := New(dec("5"))

	current := resultWith("20260831", map[string]string{"AAA": "50", "NEW": "50"})
	previous := resultWith("20260828", map[string]string{"AAA": "50", "OLD": "50"})

	report := r.Compare(context.Background(), current, previous)

	assert.Equal(t, []string{"P1_NEW"}, report.NewComponents)
	assert.Equal(t, []string{"P1_OLD"}, report.RemovedComponents)

	// appearance and disappearance show both as 50pp moves and as roster alerts
	require.Len(t, report.Alerts, 4)
	assert.Contains(t, report.Alerts[2], "new components added: P1_NEW")
	assert.Contains(t, report.Alerts[3], "components removed: P1_OLD")
}

func TestCompare_ChangesSortedByMagnitude(t *testing.T) {
	r := New(dec("100"))

	current := resultWith("20260831", map[string]string{"AAA": "21", "BBB": "49", "CCC": "30"})
	previous := resultWith("20260828", map[string]string{"AAA": "20", "BBB": "60", "CCC": "20"})

	report := r.Compare(context.Background(), current, previous)

	require.Len(t, report.Changes, 3)
	assert.Equal(t, "P1_BBB", report.Changes[0].Key)
	assert.Equal(t, "P1_CCC", report.Changes[1].Key)
	assert.Equal(t, "P1_AAA", report.Changes[2].Key)
}

func TestCompare_SignSymmetry(t *testing.T) {
	r := New(dec("5"))

	a := resultWith("20260831", map[string]string{"AAA": "30", "BBB": "70"})
	b := resultWith("20260828", map[string]string{"AAA": "20", "BBB": "80"})

	forward := r.Compare(context.Background(), a, b)
	backward := r.Compare(context.Background(), b, a)

	assert.Len(t, forward.Alerts, len(backward.Alerts))

	forwardChanges := make(map[string]decimal.Decimal)
	for _, c := range forward.Changes {
		forwardChanges[c.Key] = c.Change
	}
	for _, c := range backward.Changes {
		assert.True(t, c.Change.Equal(forwardChanges[c.Key].Neg()), "change for %s must mirror", c.Key)
	}
}
