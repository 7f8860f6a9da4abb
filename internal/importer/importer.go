package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"storefront-checkout/internal/domain"

	"github.com/shopspring/decimal"
)

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
	Restock(ctx context.Context, productID string, quantity int) error
}

// Summary counts what a run wrote.
type Summary struct {
	Products  int
	Restocked int
}

// CSVImporter reads sku,name,description,price,currency,stock rows and
// upserts products by SKU. A present stock column sets the absolute level.
type CSVImporter struct {
	reader          *csv.Reader
	products        ProductWriter
	defaultCurrency string
}

func NewCSVImporter(r io.Reader, repo ProductWriter, defaultCurrency string) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	csvr.TrimLeadingSpace = true
	return &CSVImporter{
		reader:          csvr,
		products:        repo,
		defaultCurrency: strings.ToUpper(defaultCurrency),
	}
}

type csvRow struct {
	line     int
	SKU      string
	Name     string
	Desc     string
	Cents    int64
	Currency string
	Stock    *int
}

var requiredHeaders = []string{"sku", "name", "price"}

// Run stops at the first bad row; rows before it stay imported.
func (i *CSVImporter) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	headers, err := i.reader.Read()
	if err != nil {
		return sum, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	for _, h := range requiredHeaders {
		if _, ok := index[h]; !ok {
			return sum, fmt.Errorf("missing column %q", h)
		}
	}

	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sum, fmt.Errorf("read row: %w", err)
		}
		line, _ := i.reader.FieldPos(0)

		row, err := parseRow(record, index, line)
		if err != nil {
			return sum, err
		}
		if row == nil {
			continue
		}
		if row.Currency == "" {
			row.Currency = i.defaultCurrency
		}
		restocked, err := i.save(ctx, row)
		if err != nil {
			return sum, err
		}
		sum.Products++
		if restocked {
			sum.Restocked++
		}
	}
	return sum, nil
}

func (i *CSVImporter) save(ctx context.Context, row *csvRow) (bool, error) {
	p, err := i.products.Upsert(ctx, domain.Product{
		SKU:         row.SKU,
		Name:        row.Name,
		Description: row.Desc,
		PriceCents:  row.Cents,
		Currency:    row.Currency,
	})
	if err != nil {
		return false, fmt.Errorf("line %d: upsert product %q: %w", row.line, row.SKU, err)
	}
	if row.Stock == nil {
		return false, nil
	}
	if err := i.products.Restock(ctx, p.ID, *row.Stock); err != nil {
		return false, fmt.Errorf("line %d: restock %q: %w", row.line, row.SKU, err)
	}
	return true, nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

// parseRow returns nil for blank lines.
func parseRow(record []string, index map[string]int, line int) (*csvRow, error) {
	row := &csvRow{
		line:     line,
		SKU:      pick(record, index, "sku"),
		Name:     pick(record, index, "name"),
		Desc:     pick(record, index, "description"),
		Currency: strings.ToUpper(pick(record, index, "currency")),
	}
	priceStr := pick(record, index, "price")
	stockStr := pick(record, index, "stock")
	if row.SKU == "" && row.Name == "" && priceStr == "" && stockStr == "" {
		return nil, nil
	}
	if row.SKU == "" || row.Name == "" {
		return nil, fmt.Errorf("line %d: sku and name are required", line)
	}

	price, err := decimal.NewFromString(priceStr)
	if err != nil || !price.IsPositive() {
		return nil, fmt.Errorf("line %d: invalid price %q for %q", line, priceStr, row.SKU)
	}
	row.Cents = price.Shift(2).Round(0).IntPart()

	if stockStr != "" {
		n, err := strconv.Atoi(stockStr)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("line %d: invalid stock %q for %q", line, stockStr, row.SKU)
		}
		row.Stock = &n
	}
	return row, nil
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
