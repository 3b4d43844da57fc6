package api

import (
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProductCSVSkipsHeader(t *testing.T) {
	input := "sku,name,price,stock,image\nSKU-1,Widget,1200,10,w.png\nSKU-2,Gadget,350.50,0,\n"

	products, errs := parseProductCSV(csv.NewReader(strings.NewReader(input)))

	require.Empty(t, errs)
	require.Len(t, products, 2)
	assert.Equal(t, "SKU-1", products[0].SKU)
	assert.Equal(t, 1200.0, products[0].Price)
	assert.Equal(t, 10, products[0].Stock)
	assert.Equal(t, "w.png", products[0].Image)
	assert.Equal(t, 350.50, products[1].Price)
}

func TestParseProductCSVWithoutHeader(t *testing.T) {
	input := "SKU-1,Widget,1200,10\n"

	products, errs := parseProductCSV(csv.NewReader(strings.NewReader(input)))

	require.Empty(t, errs)
	require.Len(t, products, 1)
	assert.Empty(t, products[0].Image)
}

func TestParseProductCSVReportsRowErrors(t *testing.T) {
	input := strings.Join([]string{
		"sku,name,price,stock",
		",Widget,1200,10",       // missing sku
		"SKU-2,Gadget,free,5",   // bad price
		"SKU-3,Doohickey,10,-1", // negative stock
		"SKU-4,OK,10,1",
	}, "\n")

	products, errs := parseProductCSV(csv.NewReader(strings.NewReader(input)))

	assert.Len(t, errs, 3)
	require.Len(t, products, 1)
	assert.Equal(t, "SKU-4", products[0].SKU)
}

func TestParseProductCSVShortRow(t *testing.T) {
	products, errs := parseProductCSV(csv.NewReader(strings.NewReader("SKU-1,Widget\n")))

	assert.Empty(t, products)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "4 columns")
}
