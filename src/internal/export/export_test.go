package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casapps/casrecipes/src/internal/services"
)

var list = services.ShoppingList{
	{IngredientID: 2, Name: "Sugar", MeasurementUnit: "g", TotalAmount: 150},
	{IngredientID: 1, Name: "Milk", MeasurementUnit: "ml", TotalAmount: 200},
	{IngredientID: 3, Name: "Sugar", MeasurementUnit: "cup", TotalAmount: 1},
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatCSV, ParseFormat("csv"))
	assert.Equal(t, FormatCSV, ParseFormat(" CSV "))
	assert.Equal(t, FormatPDF, ParseFormat("pdf"))
	assert.Equal(t, FormatTXT, ParseFormat("txt"))
	assert.Equal(t, FormatTXT, ParseFormat(""))
	assert.Equal(t, FormatTXT, ParseFormat("xlsx"))
}

func TestRenderTXT(t *testing.T) {
	file, err := Render(list, "txt")
	require.NoError(t, err)

	assert.Equal(t, "shopping_cart.txt", file.Filename)
	assert.Equal(t, "text/plain; charset=utf-8", file.ContentType)
	assert.Equal(t, `attachment; filename="shopping_cart.txt"`, file.ContentDisposition())
	assert.Equal(t, "Shopping cart\nSugar: 150 g\nMilk: 200 ml\nSugar: 1 cup\n", string(file.Body))
}

func TestRenderFallsBackToTXT(t *testing.T) {
	for _, token := range []string{"", "docx", "json"} {
		file, err := Render(list, token)
		require.NoError(t, err)
		assert.Equal(t, "shopping_cart.txt", file.Filename, token)
	}
}

func TestRenderCSV(t *testing.T) {
	file, err := Render(list, "csv")
	require.NoError(t, err)

	assert.Equal(t, "shopping_cart.csv", file.Filename)
	assert.Equal(t, "text/csv; charset=utf-8", file.ContentType)

	r := csv.NewReader(bytes.NewReader(file.Body))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Shopping cart"},
		{"Sugar", "150", "g"},
		{"Milk", "200", "ml"},
		{"Sugar", "1", "cup"},
	}, records)
}

func TestRenderCSVQuotesCommas(t *testing.T) {
	file, err := Render(services.ShoppingList{{Name: "Salt, sea", MeasurementUnit: "g", TotalAmount: 5}}, "csv")
	require.NoError(t, err)
	assert.Contains(t, string(file.Body), `"Salt, sea",5,g`)
}

func TestRenderPDF(t *testing.T) {
	file, err := Render(list, "pdf")
	require.NoError(t, err)

	assert.Equal(t, "shopping_cart.pdf", file.Filename)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Body, []byte("%PDF-")))
}

func TestRenderEmptyList(t *testing.T) {
	file, err := Render(services.ShoppingList{}, "txt")
	require.NoError(t, err)
	assert.Equal(t, "Shopping cart\n", string(file.Body))
}
