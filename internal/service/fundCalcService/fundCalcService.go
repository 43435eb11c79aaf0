package fundCalcService

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/KotFed0t/fund_calc_pipeline/config"
	"github.com/KotFed0t/fund_calc_pipeline/internal/calculator"
	"github.com/KotFed0t/fund_calc_pipeline/internal/fundConfig"
	"github.com/KotFed0t/fund_calc_pipeline/internal/model"
	"github.com/KotFed0t/fund_calc_pipeline/internal/reconciliation"
	"github.com/KotFed0t/fund_calc_pipeline/internal/service"
	"github.com/KotFed0t/fund_calc_pipeline/internal/validator"
	"github.com/KotFed0t/fund_calc_pipeline/utils"
)

// Exit codes of one batch invocation.
const (
	ExitOK      = 0 // every fund calculated and validated
	ExitPartial = 1 // some funds failed, some succeeded
	ExitFailure = 2 // nothing succeeded or the run aborted before calculation
)

type MarketDataApi interface {
	BuildObservation(ctx context.Context, capSymbols, returnSymbols []string, date string) (model.MarketObservation, error)
}

type WeightStore interface {
	Save(ctx context.Context, result model.WeightResult, meta model.Metadata) (string, error)
	PreviousRun(ctx context.Context, fund, date string) (model.WeightResult, bool, error)
	LatestAliasPath(fund, date string) string
}

type CloudStorage interface {
	Enabled() bool
	UploadFundArtifacts(ctx context.Context, fund, date string, paths []string) map[string]bool
}

type ReportGenerator interface {
	Generate(ctx context.Context, date string, runs []model.RunResult, weights map[string]model.WeightResult) ([]byte, string, error)
}

type Notifier interface {
	SendDailySummary(ctx context.Context, date string, results []model.RunResult, attachments []model.Attachment, s3Uploads map[string]map[string]bool) error
	SendCriticalFailure(ctx context.Context, date, reason string) error
}

// FundCalcService orchestrates one batch run: fetch market data once, then
// calculate, validate, reconcile, persist and upload each fund independently.
// A failing fund never blocks the others.
type FundCalcService struct {
	cfg       *config.Config
	marketApi MarketDataApi
	store     WeightStore
	cloud     CloudStorage
	reporter  ReportGenerator
	notifier  Notifier
	calc      *calculator.Calculator
}

func New(cfg *config.Config, marketApi MarketDataApi, store WeightStore, cloud CloudStorage, reporter ReportGenerator, notifier Notifier) *FundCalcService {
	return &FundCalcService{
		cfg:       cfg,
		marketApi: marketApi,
		store:     store,
		cloud:     cloud,
		reporter:  reporter,
		notifier:  notifier,
		calc:      calculator.New(),
	}
}

// Run executes the batch for one calculation date (YYYYMMDD). fundFilter
// restricts the run to a single fund when non-empty. The returned value is the
// process exit code.
func (s *FundCalcService) Run(ctx context.Context, date, fundFilter string) int {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "FundCalcService.Run"

	slog.Info("run start", slog.String("rqID", rqID), slog.String("op", op), slog.String("date", date), slog.String("fundFilter", fundFilter))

	funds, err := fundConfig.LoadFunds(s.cfg.Paths.FundsConfig)
	if err != nil {
		return s.abort(ctx, date, fmt.Sprintf("funds configuration: %s", err))
	}

	funds = filterFunds(funds, fundFilter)
	if len(funds) == 0 {
		return s.abort(ctx, date, service.ErrNoFundsMatched.Error())
	}

	rulesSet, err := fundConfig.LoadValidationRules(s.cfg.Paths.ValidationRules)
	if err != nil {
		return s.abort(ctx, date, fmt.Sprintf("validation rules: %s", err))
	}

	obs, err := s.marketApi.BuildObservation(ctx, capSymbols(funds), allSymbols(funds), date)
	if err != nil {
		return s.abort(ctx, date, fmt.Sprintf("market data fetch: %s", err))
	}

	results := make([]model.RunResult, 0, len(funds))
	weights := make(map[string]model.WeightResult, len(funds))
	s3Uploads := make(map[string]map[string]bool)

	for _, fund := range funds {
		res, fundWeights, uploads := s.runFund(ctx, fund, rulesSet, obs)

		results = append(results, res)
		if fundWeights != nil {
			weights[fund.Name] = *fundWeights
		}
		if uploads != nil {
			s3Uploads[fund.Name] = uploads
		}

		slog.Info("fund finished",
			slog.String("rqID", rqID),
			slog.String("fund", fund.Name),
			slog.String("status", string(res.Status)),
			slog.Float64("runtimeSec", res.Runtime.Seconds()),
		)
	}

	s.sendSummary(ctx, date, results, weights, s3Uploads)

	code := exitCode(results)
	slog.Info("run completed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("exitCode", code))

	return code
}

// runFund contains one fund's failure domain: any error or panic inside turns
// into a FAILED result without touching the other funds.
func (s *FundCalcService) runFund(ctx context.Context, fund model.Fund, rulesSet *fundConfig.RulesSet, obs model.MarketObservation) (res model.RunResult, weights *model.WeightResult, uploads map[string]bool) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "FundCalcService.runFund"

	start := time.Now()
	res = model.RunResult{Fund: fund.Name}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic during fund calculation", slog.String("rqID", rqID), slog.String("op", op), slog.String("fund", fund.Name), slog.Any("panic", r))
			res.Status = model.RunStatusFailed
			res.Error = fmt.Sprintf("panic: %v", r)
			weights = nil
			uploads = nil
		}
		res.Runtime = time.Since(start)
	}()

	rules, err := rulesSet.ForFund(fund.Name)
	if err != nil {
		return failed(res, err), nil, nil
	}

	result, err := s.calc.CalculateFund(ctx, fund, obs)
	if err != nil {
		slog.Error("got error from calc.CalculateFund", slog.String("rqID", rqID), slog.String("op", op), slog.String("fund", fund.Name), slog.String("err", err.Error()))
		return failed(res, err), nil, nil
	}
	res.Warnings = append(res.Warnings, result.CalcWarnings...)

	validation := validator.New(rules).ValidateFund(ctx, fund, result)
	res.Warnings = append(res.Warnings, validation.Warnings()...)
	if !validation.IsValid() {
		err := fmt.Errorf("%w: %s", service.ErrValidationFailed, strings.Join(validation.Errors(), "; "))
		slog.Error("validation failed, artifact not persisted", slog.String("rqID", rqID), slog.String("op", op), slog.String("fund", fund.Name), slog.String("err", err.Error()))
		return failed(res, err), nil, nil
	}

	if rules.ReconEnabled {
		res.Alerts = s.reconcile(ctx, fund.Name, rules, result)
	}

	meta := model.Metadata{
		Fund:             fund.Name,
		CalculationDate:  result.Date,
		RunTimestamp:     time.Now(),
		RuntimeSeconds:   time.Since(start).Seconds(),
		ValidationStatus: validationStatus(validation),
		PortfolioCount:   len(fund.Portfolios),
		RowCount:         len(result.Rows),
	}

	path, err := s.store.Save(ctx, result, meta)
	if err != nil {
		slog.Error("got error from store.Save", slog.String("rqID", rqID), slog.String("op", op), slog.String("fund", fund.Name), slog.String("err", err.Error()))
		return failed(res, err), nil, nil
	}

	res.Status = model.RunStatusSuccess
	res.OutputPath = path

	if s.cloud.Enabled() {
		metaPath := strings.TrimSuffix(path, ".csv") + ".json"
		latestPath := s.store.LatestAliasPath(fund.Name, result.Date)
		uploads = s.cloud.UploadFundArtifacts(ctx, fund.Name, result.Date, []string{path, metaPath, latestPath})
	}

	return res, &result, uploads
}

// reconcile compares against the most recent prior successful result. All of
// its outcomes are informational: changes and lookup failures surface as alerts.
func (s *FundCalcService) reconcile(ctx context.Context, fund string, rules fundConfig.ValidationRules, current model.WeightResult) []string {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "FundCalcService.reconcile"

	previous, found, err := s.store.PreviousRun(ctx, fund, current.Date)
	if err != nil {
		slog.Error("got error from store.PreviousRun", slog.String("rqID", rqID), slog.String("op", op), slog.String("fund", fund), slog.String("err", err.Error()))
		return []string{fmt.Sprintf("reconciliation skipped: %s", err)}
	}
	if !found {
		slog.Info("no prior result found, reconciliation skipped", slog.String("rqID", rqID), slog.String("op", op), slog.String("fund", fund))
		return nil
	}

	report := reconciliation.New(rules.ReconThresholdPct).Compare(ctx, current, previous)
	return report.Alerts
}

func (s *FundCalcService) sendSummary(ctx context.Context, date string, results []model.RunResult, weights map[string]model.WeightResult, s3Uploads map[string]map[string]bool) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "FundCalcService.sendSummary"

	var attachments []model.Attachment

	reportBytes, ext, err := s.reporter.Generate(ctx, date, results, weights)
	if err != nil {
		slog.Error("got error from reporter.Generate", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	} else {
		attachments = append(attachments, model.Attachment{
			Filename: fmt.Sprintf("fund_calc_summary_%s%s", date, ext),
			Data:     reportBytes,
		})
	}

	for _, res := range results {
		if res.OutputPath == "" {
			continue
		}
		data, err := os.ReadFile(res.OutputPath)
		if err != nil {
			slog.Error("can't read artifact for attachment", slog.String("rqID", rqID), slog.String("op", op), slog.String("path", res.OutputPath), slog.String("err", err.Error()))
			continue
		}
		attachments = append(attachments, model.Attachment{Filename: filepath.Base(res.OutputPath), Data: data})
	}

	if err := s.notifier.SendDailySummary(ctx, date, results, attachments, s3Uploads); err != nil {
		// notification failures never change the exit code
		slog.Error("got error from notifier.SendDailySummary", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}
}

func (s *FundCalcService) abort(ctx context.Context, date, reason string) int {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "FundCalcService.Run"

	slog.Error("run aborted", slog.String("rqID", rqID), slog.String("op", op), slog.String("reason", reason))

	if err := s.notifier.SendCriticalFailure(ctx, date, reason); err != nil {
		slog.Error("got error from notifier.SendCriticalFailure", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	return ExitFailure
}

func failed(res model.RunResult, err error) model.RunResult {
	res.Status = model.RunStatusFailed
	res.Error = err.Error()
	return res
}

func validationStatus(v model.FundValidation) string {
	if len(v.Warnings()) > 0 {
		return "PASSED_WITH_WARNINGS"
	}
	return "PASSED"
}

func exitCode(results []model.RunResult) int {
	succeeded, failedCount := 0, 0
	for _, res := range results {
		if res.Status == model.RunStatusSuccess {
			succeeded++
		} else {
			failedCount++
		}
	}

	switch {
	case failedCount == 0:
		return ExitOK
	case succeeded > 0:
		return ExitPartial
	default:
		return ExitFailure
	}
}

func filterFunds(funds []model.Fund, filter string) []model.Fund {
	if filter == "" {
		return funds
	}
	for _, fund := range funds {
		if fund.Name == filter {
			return []model.Fund{fund}
		}
	}
	return nil
}

// capSymbols is the deduplicated union of market-cap driven symbols across all
// funds, so one batched request serves the whole run.
func capSymbols(funds []model.Fund) []string {
	return uniqueStrings(funds, model.Fund.MarketCapSymbols)
}

func allSymbols(funds []model.Fund) []string {
	return uniqueStrings(funds, model.Fund.AllSymbols)
}

func uniqueStrings(funds []model.Fund, pick func(model.Fund) []string) []string {
	seen := make(map[string]struct{})
	var res []string
	for _, fund := range funds {
		for _, s := range pick(fund) {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			res = append(res, s)
		}
	}
	return res
}
