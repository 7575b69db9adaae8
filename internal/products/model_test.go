package products

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUnitValid(t *testing.T) {
	for _, unit := range []Unit{UnitLitre, UnitKg, UnitPiece, UnitSachet, UnitPot} {
		require.True(t, unit.Valid(), string(unit))
	}
	require.False(t, Unit("carton").Valid())
	require.False(t, Unit("").Valid())
}

func TestIsLowStock(t *testing.T) {
	require.True(t, Product{StockQuantity: 5, MinStockLevel: 10}.IsLowStock())
	require.True(t, Product{StockQuantity: 10, MinStockLevel: 10}.IsLowStock(), "threshold itself is low")
	require.False(t, Product{StockQuantity: 11, MinStockLevel: 10}.IsLowStock())
	require.True(t, Product{StockQuantity: -2, MinStockLevel: 0}.IsLowStock())
}

func TestIsExpiringSoon(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	window := 7 * 24 * time.Hour
	in3days := now.Add(3 * 24 * time.Hour)
	in10days := now.Add(10 * 24 * time.Hour)
	yesterday := now.Add(-24 * time.Hour)

	require.True(t, Product{ExpirationDate: &in3days}.IsExpiringSoon(now, window))
	require.False(t, Product{ExpirationDate: &in10days}.IsExpiringSoon(now, window))
	require.True(t, Product{ExpirationDate: &yesterday}.IsExpiringSoon(now, window), "already expired counts")
	require.False(t, Product{}.IsExpiringSoon(now, window), "no date never expires")
}
