package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrice_LimitTiers(t *testing.T) {
	p := NewPricer()

	tests := []struct {
		name      string
		riskScore string
		wantLimit int64
	}{
		{"lowest risk", "5", 700_000},
		{"tier boundary ten", "10", 700_000},
		{"moderate risk", "16.67", 500_000},
		{"tier boundary twenty", "20", 500_000},
		{"elevated risk", "25", 250_000},
		{"floor tier", "43", 100_000},
		{"approvable above last explicit tier", "43.5", 100_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			terms, err := p.Price(decimal.RequireFromString(tt.riskScore), 700)
			require.NoError(t, err)
			assert.Equal(t, tt.wantLimit, terms.CreditLimit)
		})
	}
}

func TestPrice_APRTiers(t *testing.T) {
	p := NewPricer()

	tests := []struct {
		name        string
		creditScore int
		wantAPR     string
	}{
		{"exceptional", 820, "0"},
		{"boundary eight hundred", 800, "0"},
		{"very good", 750, "16.24"},
		{"good", 700, "20.24"},
		{"fair", 600, "24.24"},
		{"poor", 500, "26.24"},
		{"floor", 300, "26.24"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			terms, err := p.Price(decimal.NewFromInt(15), tt.creditScore)
			require.NoError(t, err)
			assert.True(t, terms.APR.Equal(decimal.RequireFromString(tt.wantAPR)),
				"apr was %s", terms.APR)
		})
	}
}

func TestPrice_RejectsUnapprovableScore(t *testing.T) {
	p := NewPricer()

	_, err := p.Price(decimal.NewFromInt(44), 700)
	require.Error(t, err)

	_, err = p.Price(decimal.NewFromInt(105), 700)
	require.Error(t, err)
}
