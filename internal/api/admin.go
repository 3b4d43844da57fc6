package api

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"checkout-service/internal/models"

	"github.com/gin-gonic/gin"
)

var csvHeader = []string{"sku", "name", "price", "stock", "image"}

// exportProducts streams the upstream catalog as CSV.
func (h *Handler) exportProducts(c *gin.Context) {
	products, err := h.backend.ListProducts(c.Request.Context(), c.GetString(ctxToken))
	if err != nil {
		status, msg := checkoutErrorStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="products.csv"`)

	w := csv.NewWriter(c.Writer)
	_ = w.Write(csvHeader)
	for _, p := range products {
		_ = w.Write([]string{
			p.SKU,
			p.Name,
			strconv.FormatFloat(p.Price, 'f', 2, 64),
			strconv.Itoa(p.Stock),
			p.Image,
		})
	}
	w.Flush()
}

// importProducts parses an uploaded CSV, validates every row, and pushes the
// batch upstream. Any invalid row rejects the whole file.
func (h *Handler) importProducts(c *gin.Context) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file upload"})
		return
	}
	defer file.Close()

	products, rowErrs := parseProductCSV(csv.NewReader(file))
	if len(rowErrs) > 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid rows", "details": rowErrs})
		return
	}
	if len(products) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no product rows found"})
		return
	}

	if err := h.backend.BulkUpsertProducts(c.Request.Context(), c.GetString(ctxToken), products); err != nil {
		status, msg := checkoutErrorStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusOK, gin.H{"imported": len(products)})
}

// parseProductCSV reads rows of sku,name,price,stock[,image]. A header row
// matching the export format is skipped.
func parseProductCSV(r *csv.Reader) ([]models.Product, []string) {
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, []string{fmt.Sprintf("malformed CSV: %v", err)}
	}

	var products []models.Product
	var rowErrs []string

	for i, row := range rows {
		if i == 0 && len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), "sku") {
			continue
		}
		line := i + 1

		if len(row) < 4 {
			rowErrs = append(rowErrs, fmt.Sprintf("line %d: expected at least 4 columns, got %d", line, len(row)))
			continue
		}

		sku := strings.TrimSpace(row[0])
		name := strings.TrimSpace(row[1])
		if sku == "" || name == "" {
			rowErrs = append(rowErrs, fmt.Sprintf("line %d: sku and name are required", line))
			continue
		}

		price, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
		if err != nil || price <= 0 {
			rowErrs = append(rowErrs, fmt.Sprintf("line %d: invalid price %q", line, row[2]))
			continue
		}

		stock, err := strconv.Atoi(strings.TrimSpace(row[3]))
		if err != nil || stock < 0 {
			rowErrs = append(rowErrs, fmt.Sprintf("line %d: invalid stock %q", line, row[3]))
			continue
		}

		p := models.Product{SKU: sku, Name: name, Price: price, Stock: stock}
		if len(row) > 4 {
			p.Image = strings.TrimSpace(row[4])
		}
		products = append(products, p)
	}

	return products, rowErrs
}
