package filestore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

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

func testResult(date string) model.WeightResult {
	ret := dec("0.42")
	return model.WeightResult{
		Fund: "test_fund",
		Date: date,
		Rows: []model.WeightRow{
			{Date: date, Portfolio: "P1", Symbol: "AAA", Name: "Index A", Weight: dec("19.25"), Return: &ret},
			{Date: date, Portfolio: "P1", Symbol: "BBB", Name: "Index B", Weight: dec("80.75")},
		},
	}
}

func testMeta(ts time.Time) model.Metadata {
	return model.Metadata{
		Fund:             "test_fund",
		CalculationDate:  "20260831",
		RunTimestamp:     ts,
		RuntimeSeconds:   1.5,
		ValidationStatus: "PASSED",
		PortfolioCount:   1,
		RowCount:         2,
	}
}

func TestSave_WritesVersionedArtifactAndLatest(t *testing.T) {
	store := New(t.TempDir())
	ts := time.Date(2026, 8, 31, 14, 30, 5, 0, time.UTC)

	path, err := store.Save(context.Background(), testResult("20260831"), testMeta(ts))
	require.NoError(t, err)

	assert.Equal(t, "test_fund_20260831_143005.csv", filepath.Base(path))

	dir := filepath.Dir(path)

	metaData, err := os.ReadFile(filepath.Join(dir, "test_fund_20260831_143005.json"))
	require.NoError(t, err)

	var meta model.Metadata
	require.NoError(t, json.Unmarshal(metaData, &meta))
	assert.Equal(t, "143005", meta.Version)
	assert.Equal(t, "test_fund", meta.Fund)
	assert.Equal(t, 2, meta.RowCount)

	latest, err := os.ReadFile(filepath.Join(dir, "test_fund_20260831_latest.csv"))
	require.NoError(t, err)
	versioned, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, versioned, latest, "latest alias must mirror the newest versioned artifact")
}

func TestSave_SameSecondRerunsDoNotCollide(t *testing.T) {
	store := New(t.TempDir())
	ts := time.Date(2026, 8, 31, 14, 30, 5, 0, time.UTC)

	first, err := store.Save(context.Background(), testResult("20260831"), testMeta(ts))
	require.NoError(t, err)

	second, err := store.Save(context.Background(), testResult("20260831"), testMeta(ts))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.FileExists(t, first)
	assert.FileExists(t, second)
	assert.Equal(t, "test_fund_20260831_143005_2.csv", filepath.Base(second))
}

func TestPreviousRun_RoundTrip(t *testing.T) {
	store := New(t.TempDir())
	ts := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)

	saved := testResult("20260828")
	_, err := store.Save(context.Background(), saved, testMeta(ts))
	require.NoError(t, err)

	previous, found, err := store.PreviousRun(context.Background(), "test_fund", "20260831")
	require.NoError(t, err)
	require.True(t, found)

	assert.Equal(t, "test_fund", previous.Fund)
	assert.Equal(t, "20260828", previous.Date)
	require.Len(t, previous.Rows, 2)

	assert.Equal(t, "AAA", previous.Rows[0].Symbol)
	assert.True(t, previous.Rows[0].Weight.Equal(dec("19.25")))
	require.NotNil(t, previous.Rows[0].Return)
	assert.True(t, previous.Rows[0].Return.Equal(dec("0.42")))

	assert.Equal(t, "BBB", previous.Rows[1].Symbol)
	assert.Nil(t, previous.Rows[1].Return)
}

func TestPreviousRun_PicksMostRecentDate(t *testing.T) {
	store := New(t.TempDir())

	for _, date := range []string{"20260820", "20260826", "20260828"} {
		_, err := store.Save(context.Background(), testResult(date), testMeta(time.Now()))
		require.NoError(t, err)
	}

	previous, found, err := store.PreviousRun(context.Background(), "test_fund", "20260831")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "20260828", previous.Date)
}

func TestPreviousRun_IgnoresCurrentAndFutureDates(t *testing.T) {
	store := New(t.TempDir())

	for _, date := range []string{"20260826", "20260831", "20260901"} {
		_, err := store.Save(context.Background(), testResult(date), testMeta(time.Now()))
		require.NoError(t, err)
	}

	previous, found, err := store.PreviousRun(context.Background(), "test_fund", "20260831")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "20260826", previous.Date)
}

func TestPreviousRun_SkipsDatesWithoutArtifacts(t *testing.T) {
	base := t.TempDir()
	store := New(base)

	_, err := store.Save(context.Background(), testResult("20260826"), testMeta(time.Now()))
	require.NoError(t, err)

	// a failed-only date leaves a directory without a latest alias behind
	require.NoError(t, os.MkdirAll(filepath.Join(base, "test_fund", "20260828"), 0o755))

	previous, found, err := store.PreviousRun(context.Background(), "test_fund", "20260831")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "20260826", previous.Date)
}

func TestPreviousRun_NoHistory(t *testing.T) {
	store := New(t.TempDir())

	_, found, err := store.PreviousRun(context.Background(), "test_fund", "20260831")
	require.NoError(t, err)
	assert.False(t, found)
}
