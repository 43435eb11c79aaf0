package filestore

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/KotFed0t/fund_calc_pipeline/internal/model"
	"github.com/KotFed0t/fund_calc_pipeline/utils"
	"github.com/shopspring/decimal"
)

const (
	latestSuffix = "latest"
	dateLayout   = "20060102"

	// versionAttempts bounds the counter fallback for same-second re-runs.
	versionAttempts = 100
)

var csvHeader = []string{"Date", "Portfolio", "Symbol", "Name", "Weight", "Return"}

// Store persists versioned weight artifacts as flat files:
//
//	{base}/{fund}/{date}/{fund}_{date}_{version}.csv   (+ .json metadata)
//	{base}/{fund}/{date}/{fund}_{date}_latest.csv      (alias, rewritten atomically)
//
// Version identifiers are time-of-run based with an exclusive-create counter
// fallback, so two near-simultaneous re-runs for the same fund and date can
// never collide or overwrite each other.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// Save writes a new versioned artifact plus metadata and repoints the latest
// alias. It returns the path of the versioned CSV.
func (s *Store) Save(ctx context.Context, result model.WeightResult, meta model.Metadata) (string, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Store.Save"

	slog.Debug("Save start", slog.String("rqID", rqID), slog.String("op", op), slog.String("fund", result.Fund), slog.String("date", result.Date))

	dir := filepath.Join(s.baseDir, result.Fund, result.Date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	version, f, err := s.createVersioned(dir, result.Fund, result.Date, meta.RunTimestamp)
	if err != nil {
		return "", err
	}
	path := f.Name()

	if err := writeCSV(f, result); err != nil {
		f.Close()
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close artifact: %w", err)
	}

	meta.Version = version
	if err := s.writeMetadata(dir, result.Fund, result.Date, version, meta); err != nil {
		return "", err
	}

	if err := s.updateLatest(dir, result.Fund, result.Date, result); err != nil {
		return "", err
	}

	slog.Debug("Save completed", slog.String("rqID", rqID), slog.String("op", op), slog.String("path", path), slog.String("version", version))

	return path, nil
}

// createVersioned opens the versioned CSV with O_EXCL. On a same-second
// collision it appends a counter to the version identifier and retries.
func (s *Store) createVersioned(dir, fund, date string, ts time.Time) (string, *os.File, error) {
	base := ts.Format("150405")

	for attempt := 1; attempt <= versionAttempts; attempt++ {
		version := base
		if attempt > 1 {
			version = fmt.Sprintf("%s_%d", base, attempt)
		}

		path := filepath.Join(dir, fmt.Sprintf("%s_%s_%s.csv", fund, date, version))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return version, f, nil
		}
		if !os.IsExist(err) {
			return "", nil, fmt.Errorf("create artifact: %w", err)
		}
	}

	return "", nil, fmt.Errorf("could not allocate artifact version for %s %s after %d attempts", fund, date, versionAttempts)
}

func (s *Store) writeMetadata(dir, fund, date, version string, meta model.Metadata) error {
	path := filepath.Join(dir, fmt.Sprintf("%s_%s_%s.json", fund, date, version))

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

// LatestAliasPath returns the location of the latest alias for (fund, date).
func (s *Store) LatestAliasPath(fund, date string) string {
	return filepath.Join(s.baseDir, fund, date, fmt.Sprintf("%s_%s_%s.csv", fund, date, latestSuffix))
}

// updateLatest rewrites the latest alias via temp file + rename so readers
// never observe a partially written alias.
func (s *Store) updateLatest(dir, fund, date string, result model.WeightResult) error {
	tmp, err := os.CreateTemp(dir, "latest_*.tmp")
	if err != nil {
		return fmt.Errorf("create latest temp: %w", err)
	}

	if err := writeCSV(tmp, result); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write latest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close latest temp: %w", err)
	}

	latest := s.LatestAliasPath(fund, date)
	if err := os.Rename(tmp.Name(), latest); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("update latest alias: %w", err)
	}
	return nil
}

// PreviousRun resolves the latest-aliased result of the most recent date
// strictly before the given one that has at least one successful artifact.
// Dates with only failed runs leave no artifact behind and are skipped
// transparently. The second return value is false when no prior result exists.
func (s *Store) PreviousRun(ctx context.Context, fund, date string) (model.WeightResult, bool, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Store.PreviousRun"

	fundDir := filepath.Join(s.baseDir, fund)

	entries, err := os.ReadDir(fundDir)
	if err != nil {
		if os.IsNotExist(err) {
			return model.WeightResult{}, false, nil
		}
		return model.WeightResult{}, false, fmt.Errorf("read fund dir: %w", err)
	}

	var dates []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if _, err := time.Parse(dateLayout, name); err != nil {
			continue
		}
		if name < date {
			dates = append(dates, name)
		}
	}

	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	for _, prevDate := range dates {
		latest := s.LatestAliasPath(fund, prevDate)
		f, err := os.Open(latest)
		if err != nil {
			if os.IsNotExist(err) {
				continue // only failed runs on this date
			}
			return model.WeightResult{}, false, fmt.Errorf("open previous artifact: %w", err)
		}

		result, err := readCSV(f, fund, prevDate)
		f.Close()
		if err != nil {
			return model.WeightResult{}, false, fmt.Errorf("parse previous artifact %s: %w", latest, err)
		}

		slog.Debug("previous run resolved", slog.String("rqID", rqID), slog.String("op", op), slog.String("fund", fund), slog.String("prevDate", prevDate))

		return result, true, nil
	}

	return model.WeightResult{}, false, nil
}

func writeCSV(w io.Writer, result model.WeightResult) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for _, row := range result.Rows {
		ret := ""
		if row.Return != nil {
			ret = row.Return.StringFixed(model.WeightPrecision)
		}
		record := []string{
			row.Date,
			row.Portfolio,
			row.Symbol,
			row.Name,
			row.Weight.StringFixed(model.WeightPrecision),
			ret,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func readCSV(r io.Reader, fund, date string) (model.WeightResult, error) {
	cr := csv.NewReader(r)

	records, err := cr.ReadAll()
	if err != nil {
		return model.WeightResult{}, err
	}
	if len(records) == 0 {
		return model.WeightResult{}, fmt.Errorf("empty artifact")
	}

	result := model.WeightResult{Fund: fund, Date: date}

	for i, record := range records[1:] {
		if len(record) != len(csvHeader) {
			return model.WeightResult{}, fmt.Errorf("row %d: expected %d columns, got %d", i+1, len(csvHeader), len(record))
		}

		weight, err := decimal.NewFromString(record[4])
		if err != nil {
			return model.WeightResult{}, fmt.Errorf("row %d: invalid weight %q: %w", i+1, record[4], err)
		}

		row := model.WeightRow{
			Date:      record[0],
			Portfolio: record[1],
			Symbol:    record[2],
			Name:      record[3],
			Weight:    weight,
		}

		if record[5] != "" {
			ret, err := decimal.NewFromString(record[5])
			if err != nil {
				return model.WeightResult{}, fmt.Errorf("row %d: invalid return %q: %w", i+1, record[5], err)
			}
			row.Return = &ret
		}

		result.Rows = append(result.Rows, row)
	}

	return result, nil
}
