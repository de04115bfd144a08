package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemNumberUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ItemNumber
		wantErr bool
	}{
		{name: "number", input: `42`, want: 42},
		{name: "numeric string", input: `"1007"`, want: 1007},
		{name: "padded", input: ` 7 `, want: 7},
		{name: "word", input: `"abc"`, wantErr: true},
		{name: "fraction", input: `1.5`, wantErr: true},
		{name: "empty string", input: `""`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n ItemNumber
			err := json.Unmarshal([]byte(tt.input), &n)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestEnumsValid(t *testing.T) {
	assert.True(t, CountryIsrael.Valid())
	assert.False(t, Country("Narnia").Valid())
	assert.False(t, Country("england").Valid())

	assert.True(t, KitTypeThird.Valid())
	assert.False(t, KitType("Goalkeeper").Valid())
}

func TestOrderStatusTerminal(t *testing.T) {
	assert.False(t, OrderStatusPending.Terminal())
	assert.True(t, OrderStatusPaid.Terminal())
	assert.True(t, OrderStatusFailed.Terminal())
}

func TestLineTotal(t *testing.T) {
	item := OrderItem{Price: decimal.RequireFromString("19.99"), Quantity: 3}
	assert.True(t, decimal.RequireFromString("59.97").Equal(item.LineTotal()))
}

func TestPricesEncodeAsNumbers(t *testing.T) {
	b, err := json.Marshal(Item{Name: "Home 24/25", Price: decimal.RequireFromString("89.5")})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"price":89.5`)
}
