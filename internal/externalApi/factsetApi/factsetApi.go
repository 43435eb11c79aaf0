package factsetApi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/KotFed0t/fund_calc_pipeline/config"
	"github.com/KotFed0t/fund_calc_pipeline/internal/externalApi"
	"github.com/KotFed0t/fund_calc_pipeline/internal/model"
	"github.com/KotFed0t/fund_calc_pipeline/internal/model/factsetModel"
	"github.com/KotFed0t/fund_calc_pipeline/utils"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

type FactsetApi struct {
	client *resty.Client
	cfg    *config.Config
}

func New(cfg *config.Config) *FactsetApi {
	apiKey, err := os.ReadFile(cfg.Factset.ApiKeyFile)
	if err != nil {
		slog.Error("failed reading factset api key file", slog.String("file", cfg.Factset.ApiKeyFile))
		panic(err)
	}

	retryCount := cfg.Factset.RetryAttempts - 1
	if retryCount < 0 {
		retryCount = 0
	}

	client := resty.New().
		SetDebug(cfg.Factset.Debug).
		SetTimeout(cfg.Factset.Timeout).
		SetBaseURL(cfg.Factset.Url).
		SetBasicAuth(strings.ToUpper(cfg.Factset.Username), strings.TrimSpace(string(apiKey))).
		SetRetryCount(retryCount).
		SetRetryWaitTime(cfg.Factset.RetryDelay).
		SetRetryMaxWaitTime(cfg.Factset.RetryDelay * 8).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// retry transport failures and server errors, never auth failures
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		})

	return &FactsetApi{client: client, cfg: cfg}
}

// GetMarketCaps fetches the market-capitalization index value for every symbol
// on the given date (YYYYMMDD). The response must be complete: any symbol with
// a null or missing value fails the fetch with MissingDataError.
func (a *FactsetApi) GetMarketCaps(ctx context.Context, symbols []string, date string) (map[string]decimal.Decimal, error) {
	formula := fmt.Sprintf("FG_MCAP_IDX(%s,%s,,USD)", date, date)
	return a.fetchFormula(ctx, "FactsetApi.GetMarketCaps", symbols, formula, "market cap", true)
}

// GetReturns fetches the one-day return for every symbol on the given date.
// Returns may legitimately be negative.
func (a *FactsetApi) GetReturns(ctx context.Context, symbols []string, date string) (map[string]decimal.Decimal, error) {
	formula := fmt.Sprintf("FG_RETURN(%s,%s)", date, date)
	return a.fetchFormula(ctx, "FactsetApi.GetReturns", symbols, formula, "return", false)
}

func (a *FactsetApi) fetchFormula(ctx context.Context, op string, symbols []string, formula, metric string, requirePositive bool) (map[string]decimal.Decimal, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	slog.Debug("request start", slog.String("rqID", rqID), slog.String("op", op), slog.Int("symbols", len(symbols)))

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParams(map[string]string{
			"ids":      strings.Join(symbols, ","),
			"formulas": formula,
			"flatten":  "Y",
		}).
		Get("/time-series")

	if err != nil {
		slog.Error("error while dialing FactsetApi", slog.String("err", err.Error()), slog.String("rqID", rqID), slog.String("op", op))
		return nil, fmt.Errorf("%w: %s", externalApi.ErrConnection, err.Error())
	}

	if resp.StatusCode() == 401 || resp.StatusCode() == 403 {
		slog.Error("FactsetApi auth failed", slog.Int("status", resp.StatusCode()), slog.String("rqID", rqID), slog.String("op", op))
		return nil, externalApi.ErrAuth
	}

	if resp.IsError() {
		slog.Error("FactsetApi returned error status", slog.Int("status", resp.StatusCode()), slog.String("rqID", rqID), slog.String("op", op))
		return nil, fmt.Errorf("%w: status %d", externalApi.ErrConnection, resp.StatusCode())
	}

	rawSeries := factsetModel.RawTimeSeries{}
	err = json.Unmarshal(resp.Body(), &rawSeries)
	if err != nil {
		slog.Error("can't unmarshall response into factsetModel.RawTimeSeries", slog.String("err", err.Error()), slog.String("rqID", rqID), slog.String("op", op))
		return nil, fmt.Errorf("%w: invalid json response", externalApi.ErrConnection)
	}

	if len(rawSeries.Data) == 0 {
		slog.Error("FactsetApi returned empty data", slog.String("rqID", rqID), slog.String("op", op))
		return nil, externalApi.ErrDataNotAvailable
	}

	res, err := a.parseRawTimeSeries(rawSeries, symbols, formula, metric, requirePositive)
	if err != nil {
		slog.Error("can't parse raw data", slog.String("err", err.Error()), slog.String("rqID", rqID), slog.String("op", op))
		return nil, err
	}

	slog.Debug("request complete", slog.String("rqID", rqID), slog.String("op", op), slog.Int("values", len(res)))

	return res, nil
}

func (a *FactsetApi) parseRawTimeSeries(raw factsetModel.RawTimeSeries, symbols []string, formula, metric string, requirePositive bool) (map[string]decimal.Decimal, error) {
	res := make(map[string]decimal.Decimal, len(raw.Data))
	var missing []string

	for _, row := range raw.Data {
		symbol, ok := row["requestId"].(string)
		if !ok {
			return nil, fmt.Errorf("row without requestId in response")
		}

		value, present := row[formula]
		if !present || value == nil {
			missing = append(missing, symbol)
			continue
		}

		f, ok := value.(float64)
		if !ok {
			missing = append(missing, symbol)
			continue
		}

		// zero and negative market caps are as unusable as absent ones
		if requirePositive && f <= 0 {
			missing = append(missing, symbol)
			continue
		}

		res[symbol] = decimal.NewFromFloat(f)
	}

	for _, symbol := range symbols {
		if _, ok := res[symbol]; !ok {
			missing = append(missing, symbol)
		}
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		missing = dedup(missing)
		return nil, &externalApi.MissingDataError{Metric: metric, Symbols: missing}
	}

	return res, nil
}

func dedup(sorted []string) []string {
	res := sorted[:0]
	for i, s := range sorted {
		if i == 0 || sorted[i-1] != s {
			res = append(res, s)
		}
	}
	return res
}

// BuildObservation performs the batched fetches for one invocation and returns
// the immutable observation shared by every fund. Market caps are mandatory;
// returns are best-effort when enabled and never fail the run.
func (a *FactsetApi) BuildObservation(ctx context.Context, capSymbols, returnSymbols []string, date string) (model.MarketObservation, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "FactsetApi.BuildObservation"

	caps, err := a.GetMarketCaps(ctx, capSymbols, date)
	if err != nil {
		return model.MarketObservation{}, err
	}

	obs := model.MarketObservation{
		Date:    date,
		Caps:    caps,
		Returns: map[string]decimal.Decimal{},
	}

	if a.cfg.Factset.FetchReturns && len(returnSymbols) > 0 {
		returns, err := a.GetReturns(ctx, returnSymbols, date)
		if err != nil {
			slog.Warn("returns fetch failed, output will carry empty returns", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			obs.Returns = returns
		}
	}

	return obs, nil
}
