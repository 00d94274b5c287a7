// Package export renders a shopping list as a downloadable file.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/phpdave11/gofpdf"

	"github.com/casapps/casrecipes/src/internal/services"
)

// Title heads every rendered shopping list
const Title = "Shopping cart"

// Format is a supported export format
type Format string

const (
	FormatTXT Format = "txt"
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// File is a rendered download
type File struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ContentDisposition is the header value that makes browsers save the file
func (f *File) ContentDisposition() string {
	return fmt.Sprintf("attachment; filename=%q", f.Filename)
}

// ParseFormat maps a query token to a format. Anything unknown is txt.
func ParseFormat(raw string) Format {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case FormatCSV:
		return FormatCSV
	case FormatPDF:
		return FormatPDF
	default:
		return FormatTXT
	}
}

// Render writes list in the requested format, keeping the list order
func Render(list services.ShoppingList, format string) (*File, error) {
	switch ParseFormat(format) {
	case FormatCSV:
		return renderCSV(list)
	case FormatPDF:
		return renderPDF(list)
	default:
		return renderTXT(list), nil
	}
}

func line(item services.ShoppingListItem) string {
	return fmt.Sprintf("%s: %d %s", item.Name, item.TotalAmount, item.MeasurementUnit)
}

func renderTXT(list services.ShoppingList) *File {
	var buf bytes.Buffer
	buf.WriteString(Title)
	buf.WriteString("\n")
	for _, item := range list {
		buf.WriteString(line(item))
		buf.WriteString("\n")
	}

	return &File{
		Filename:    "shopping_cart.txt",
		ContentType: "text/plain; charset=utf-8",
		Body:        buf.Bytes(),
	}
}

func renderCSV(list services.ShoppingList) (*File, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{Title}); err != nil {
		return nil, err
	}
	for _, item := range list {
		record := []string{item.Name, strconv.Itoa(item.TotalAmount), item.MeasurementUnit}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	return &File{
		Filename:    "shopping_cart.csv",
		ContentType: "text/csv; charset=utf-8",
		Body:        buf.Bytes(),
	}, nil
}

func renderPDF(list services.ShoppingList) (*File, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("cp1252")
	pdf.SetTitle(Title, true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, Title)
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 12)
	for _, item := range list {
		pdf.Cell(0, 8, tr(line(item)))
		pdf.Ln(8)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}

	return &File{
		Filename:    "shopping_cart.pdf",
		ContentType: "application/pdf",
		Body:        buf.Bytes(),
	}, nil
}
