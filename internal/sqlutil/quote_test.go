package sqlutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Simple table name", "users", "`users`"},
		{"Table with underscore", "order_items", "`order_items`"},
		{"Embedded backtick", "my`table", "`my``table`"},
		{"Only backtick", "`", "````"},
		{"Empty", "", "``"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, QuoteIdentifier(tt.input))
		})
	}
}

func TestQuotePostgresIdentifier(t *testing.T) {
	assert.Equal(t, `"orders"`, QuotePostgresIdentifier("orders"))
	assert.Equal(t, `"Order Items"`, QuotePostgresIdentifier("Order Items"))
	assert.Equal(t, `"my""table"`, QuotePostgresIdentifier(`my"table`))
}

func TestValidateIdentifier(t *testing.T) {
	for _, name := range []string{"users", "Order_Items", "sales-2024", "naïve", strings.Repeat("x", 64)} {
		assert.NoError(t, ValidateIdentifier(name), name)
	}

	tests := []struct {
		name   string
		reason string
	}{
		{"", "empty"},
		{strings.Repeat("x", 65), "longer than 64 bytes"},
		{"a\x00b", "NUL"},
		{"trailing ", "space"},
	}
	for _, tt := range tests {
		err := ValidateIdentifier(tt.name)
		var invalid *InvalidIdentifierError
		require.ErrorAs(t, err, &invalid, tt.name)
		assert.Equal(t, tt.name, invalid.Name)
		assert.Contains(t, err.Error(), tt.reason)
	}
}

func TestTableNameForFile(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"sales.csv", "sales"},
		{"/data/csv/sales.csv", "sales"},
		{"sales-2024.csv", "sales_2024"},
		{"monthly report.CSV", "monthly_report"},
		{"2024.csv", "t_2024"},
		{".csv", "t_"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, TableNameForFile(tt.input))
		})
	}
}
