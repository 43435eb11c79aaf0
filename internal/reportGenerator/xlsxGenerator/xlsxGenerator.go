package xlsxGenerator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/fund_calc_pipeline/internal/model"
	"github.com/KotFed0t/fund_calc_pipeline/utils"
	"github.com/xuri/excelize/v2"
)

type XLSXGenerator struct{}

func New() *XLSXGenerator {
	return &XLSXGenerator{}
}

// Generate builds the daily summary workbook, one sheet per fund in the order
// of runs. weights is keyed by fund name and has no entry for failed funds.
func (g *XLSXGenerator) Generate(ctx context.Context, date string, runs []model.RunResult, weights map[string]model.WeightResult) (fileBytes []byte, fileExtension string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XLSXGenerator.Generate"

	if len(runs) == 0 {
		return nil, "", errors.New("empty run results")
	}

	slog.Debug("Generate start", slog.String("rqID", rqID), slog.String("op", op))

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("got error while closing file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}()

	for i, run := range runs {
		var fundWeights *model.WeightResult
		if w, ok := weights[run.Fund]; ok {
			fundWeights = &w
		}

		err := g.fillSheet(f, run, fundWeights, date, i+1)
		if err != nil {
			return nil, "", err
		}
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		slog.Error("got error while deleting Sheet1", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		slog.Error("got error while saving file to bytes buffer", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	slog.Debug("Generate completed", slog.String("rqID", rqID), slog.String("op", op))

	return buf.Bytes(), ".xlsx", nil
}

func (g *XLSXGenerator) fillSheet(f *excelize.File, run model.RunResult, weights *model.WeightResult, date string, ordinal int) error {
	sheetName := fmt.Sprintf("%d. %s", ordinal, run.Fund)
	_, err := f.NewSheet(sheetName)
	if err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Font: &excelize.Font{
			Bold: true,
			Size: 11,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{"#cfe2f3"},
		},
	})
	if err != nil {
		return err
	}

	if err := f.MergeCell(sheetName, "A1", "F1"); err != nil {
		return err
	}
	f.SetCellValue(sheetName, "A1", fmt.Sprintf("Fund calculation summary - %s", date))
	if err := f.SetCellStyle(sheetName, "A1", "A1", headerStyle); err != nil {
		return fmt.Errorf("apply style: %w", err)
	}

	_ = f.SetCellStr(sheetName, "A2", "fund")
	_ = f.SetCellStr(sheetName, "B2", run.Fund)
	_ = f.SetCellStr(sheetName, "A3", "status")
	_ = f.SetCellStr(sheetName, "B3", string(run.Status))
	_ = f.SetCellStr(sheetName, "A4", "runtime")
	_ = f.SetCellValue(sheetName, "B4", run.Runtime.Seconds())

	if run.Error != "" {
		_ = f.SetCellStr(sheetName, "A5", "error")
		_ = f.SetCellStr(sheetName, "B5", run.Error)
	}

	if weights == nil {
		return nil
	}

	rowNum := 7

	if err := f.MergeCell(sheetName, fmt.Sprintf("A%d", rowNum), fmt.Sprintf("F%d", rowNum)); err != nil {
		return err
	}
	f.SetCellValue(sheetName, fmt.Sprintf("A%d", rowNum), "Weights")

	weightsStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Font: &excelize.Font{
			Bold: true,
			Size: 11,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{"#d9ead3"},
		},
	})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, fmt.Sprintf("A%d", rowNum), fmt.Sprintf("A%d", rowNum), weightsStyle); err != nil {
		return fmt.Errorf("apply style: %w", err)
	}

	rowNum++
	_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", rowNum), "date")
	_ = f.SetCellStr(sheetName, fmt.Sprintf("B%d", rowNum), "portfolio")
	_ = f.SetCellStr(sheetName, fmt.Sprintf("C%d", rowNum), "symbol")
	_ = f.SetCellStr(sheetName, fmt.Sprintf("D%d", rowNum), "name")
	_ = f.SetCellStr(sheetName, fmt.Sprintf("E%d", rowNum), "weight")
	_ = f.SetCellStr(sheetName, fmt.Sprintf("F%d", rowNum), "return")

	for _, weightRow := range weights.Rows {
		rowNum++
		_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", rowNum), weightRow.Date)
		_ = f.SetCellStr(sheetName, fmt.Sprintf("B%d", rowNum), weightRow.Portfolio)
		_ = f.SetCellStr(sheetName, fmt.Sprintf("C%d", rowNum), weightRow.Symbol)
		_ = f.SetCellStr(sheetName, fmt.Sprintf("D%d", rowNum), weightRow.Name)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("E%d", rowNum), weightRow.Weight.InexactFloat64())
		if weightRow.Return != nil {
			_ = f.SetCellValue(sheetName, fmt.Sprintf("F%d", rowNum), weightRow.Return.InexactFloat64())
		}
	}

	if len(run.Warnings) > 0 {
		rowNum += 2
		_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", rowNum), "warnings")
		for _, warning := range run.Warnings {
			rowNum++
			_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", rowNum), warning)
		}
	}

	if len(run.Alerts) > 0 {
		rowNum += 2
		_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", rowNum), "reconciliation alerts")
		for _, alert := range run.Alerts {
			rowNum++
			_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", rowNum), alert)
		}
	}

	return nil
}
