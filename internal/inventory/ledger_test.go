package inventory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReserve(t *testing.T) {
	tCases := []struct {
		name         string
		item         string
		quantity     int
		expRemaining int
		expErr       error
	}{
		{name: "plenty", item: "burger", quantity: 5, expRemaining: 95},
		{name: "exact", item: "salad", quantity: 10, expRemaining: 0},
		{name: "insufficient", item: "pizza", quantity: 1000, expErr: ErrInsufficientStock},
		{name: "unknown_item", item: "sushi", quantity: 1, expErr: ErrInsufficientStock},
	}

	for _, tCase := range tCases {
		t.Run(tCase.name, func(t *testing.T) {
			l := NewLedger(map[string]int{"burger": 100, "pizza": 100, "salad": 10})
			before := l.Stock(tCase.item)

			remaining, err := l.Reserve(tCase.item, tCase.quantity)
			if tCase.expErr != nil {
				require.ErrorIs(t, err, tCase.expErr)
				require.Equal(t, before, l.Stock(tCase.item), "a failed reserve leaves the ledger unchanged")
				return
			}
			require.NoError(t, err)
			require.Equal(t, tCase.expRemaining, remaining)
			require.Equal(t, tCase.expRemaining, l.Stock(tCase.item))
		})
	}
}

func TestLedgerDoesNotAliasSeedMap(t *testing.T) {
	seed := map[string]int{"burger": 100}
	l := NewLedger(seed)
	seed["burger"] = 1

	require.Equal(t, 100, l.Stock("burger"))
}
