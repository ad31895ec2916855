package catalog

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/360EntSecGroup-Skylar/excelize"
	"github.com/gocarina/gocsv"
)

const (
	ExportCSV  = "csv"
	ExportXLSX = "xlsx"
)

type exportRow struct {
	ID            string `csv:"id"`
	Name          string `csv:"name"`
	Category      string `csv:"category"`
	Price         string `csv:"price"`
	StockQuantity int    `csv:"stock_quantity"`
	Active        bool   `csv:"active"`
	UpdatedAt     string `csv:"updated_at"`
}

var exportHeader = []string{"id", "name", "category", "price", "stock_quantity", "active", "updated_at"}

// ContentType returns the media type of an export format.
func ContentType(format string) string {
	if format == ExportXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Export writes the whole catalog, ordered by name, as csv or xlsx.
func (s *Service) Export(ctx context.Context, format string, w io.Writer) error {
	products, err := s.List(ctx, All())
	if err != nil {
		return err
	}
	rows := make([]*exportRow, 0, len(products))
	for _, p := range products {
		rows = append(rows, &exportRow{
			ID:            strconv.FormatInt(p.ID, 10),
			Name:          p.Name,
			Category:      string(p.Category),
			Price:         p.Price.StringFixed(2),
			StockQuantity: p.StockQuantity,
			Active:        p.IsActive,
			UpdatedAt:     p.UpdatedAt.Format(time.RFC3339),
		})
	}

	switch strings.ToLower(format) {
	case ExportCSV, "":
		return gocsv.Marshal(&rows, w)
	case ExportXLSX:
		return writeXLSX(rows, w)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

func writeXLSX(rows []*exportRow, w io.Writer) error {
	const sheet = "Sheet1"
	xlsx := excelize.NewFile()
	for i, h := range exportHeader {
		xlsx.SetCellValue(sheet, cellName(i, 1), h)
	}
	for r, row := range rows {
		line := r + 2
		values := []interface{}{row.ID, row.Name, row.Category, row.Price, row.StockQuantity, row.Active, row.UpdatedAt}
		for i, v := range values {
			xlsx.SetCellValue(sheet, cellName(i, line), v)
		}
	}
	return xlsx.Write(w)
}

// cellName maps a zero based column and a row number to "A1" notation. The export has fewer than 26 columns.
func cellName(col, row int) string {
	return fmt.Sprintf("%c%d", rune('A'+col), row)
}
