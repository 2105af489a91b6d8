package xlsxGenerator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stockfolio/backend/internal/model"
	"github.com/stockfolio/backend/utils"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Portfolio"

type XLSXGenerator struct{}

func New() *XLSXGenerator {
	return &XLSXGenerator{}
}

func (g *XLSXGenerator) Generate(ctx context.Context, report model.PortfolioReport) (fileBytes []byte, fileExtension string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XLSXGenerator.Generate"

	slog.Debug("Generate start", slog.String("rqID", rqID), slog.String("op", op))

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("got error while closing file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}()

	if err := g.fillSheet(f, report); err != nil {
		slog.Error("got error while filling sheet", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		slog.Error("got error while saving file to bytes buffer", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	slog.Debug("Generate completed", slog.String("rqID", rqID), slog.String("op", op))

	return buf.Bytes(), ".xlsx", nil
}

func (g *XLSXGenerator) fillSheet(f *excelize.File, report model.PortfolioReport) error {
	if _, err := f.NewSheet(sheetName); err != nil {
		return err
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	if err := f.MergeCell(sheetName, "A1", "D1"); err != nil {
		return err
	}

	f.SetCellValue(sheetName, "A1", fmt.Sprintf("Portfolio of %s", report.Username))

	styleID, err := f.NewStyle(&excelize.Style{
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

	if err := f.SetCellStyle(sheetName, "A1", "A1", styleID); err != nil {
		return err
	}

	_ = f.SetCellStr(sheetName, "A2", "ticker")
	_ = f.SetCellStr(sheetName, "B2", "shares")
	_ = f.SetCellStr(sheetName, "C2", "price")
	_ = f.SetCellStr(sheetName, "D2", "value")

	row := 3
	for _, r := range report.Rows {
		_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", row), r.Ticker)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), r.Shares.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), r.Price.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), r.Value.InexactFloat64())
		row++
	}

	row++
	_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", row), "total")
	_ = f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), report.Total.InexactFloat64())
	row++
	_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", row), "cash")
	_ = f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), report.Cash.InexactFloat64())

	return nil
}
