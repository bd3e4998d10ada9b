package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSeedStock(t *testing.T) {
	tCases := []struct {
		name     string
		seed     string
		expStock map[string]int
		expErr   bool
	}{
		{
			name:     "default_shape",
			seed:     "burger:100,pizza:100,salad:100",
			expStock: map[string]int{"burger": 100, "pizza": 100, "salad": 100},
		},
		{
			name:     "whitespace_tolerant",
			seed:     " burger : 10 , pizza:5 ",
			expStock: map[string]int{"burger": 10, "pizza": 5},
		},
		{
			name:     "empty",
			seed:     "",
			expStock: map[string]int{},
		},
		{
			name:   "missing_count",
			seed:   "burger",
			expErr: true,
		},
		{
			name:   "non_numeric_count",
			seed:   "burger:lots",
			expErr: true,
		},
		{
			name:   "negative_count",
			seed:   "burger:-1",
			expErr: true,
		},
	}

	for _, tCase := range tCases {
		t.Run(tCase.name, func(t *testing.T) {
			c := InventoryService{Seed: tCase.seed}
			stock, err := c.SeedStock()
			if tCase.expErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tCase.expStock, stock)
		})
	}
}

func TestLoadInventoryServiceDefaults(t *testing.T) {
	c, err := LoadInventoryService()
	require.NoError(t, err)
	require.Equal(t, 10, c.Prefetch)
	require.Equal(t, 1, c.Workers)
	require.Equal(t, 5, c.MaxAttempts)
	require.NotEmpty(t, c.AMQP.URL)
}
