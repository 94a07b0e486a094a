package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/lumabank/credit-engine/internal/domain"
)

type limitTier struct {
	maxRiskScore decimal.Decimal
	limit        int64
}

type aprTier struct {
	minCreditScore int
	apr            decimal.Decimal
}

// Pricer maps an approved application's scores onto credit terms. Pure and
// deterministic; it is never invoked for declined applications, so a risk
// score at or past the approval cut-off is a caller bug.
type Pricer struct {
	limits    []limitTier
	aprs      []aprTier
	scoreCeil decimal.Decimal
}

func NewPricer() *Pricer {
	return &Pricer{
		limits: []limitTier{
			{decimal.NewFromInt(10), 700_000},
			{decimal.NewFromInt(20), 500_000},
			{decimal.NewFromInt(30), 250_000},
		},
		aprs: []aprTier{
			{800, decimal.NewFromFloat(0.00)},
			{740, decimal.NewFromFloat(16.24)},
			{670, decimal.NewFromFloat(20.24)},
			{580, decimal.NewFromFloat(24.24)},
			{0, decimal.NewFromFloat(26.24)},
		},
		scoreCeil: decimal.NewFromInt(44),
	}
}

func (p *Pricer) Price(totalRiskScore decimal.Decimal, creditScore int) (*domain.CreditTerms, error) {
	if !totalRiskScore.LessThan(p.scoreCeil) {
		return nil, fmt.Errorf("Price: risk score %s is not approvable", totalRiskScore.StringFixed(2))
	}

	// First match wins; everything approvable past the last explicit tier
	// prices at the floor limit.
	limit := int64(100_000)
	for _, t := range p.limits {
		if totalRiskScore.LessThanOrEqual(t.maxRiskScore) {
			limit = t.limit
			break
		}
	}

	var apr decimal.Decimal
	for _, t := range p.aprs {
		if creditScore >= t.minCreditScore {
			apr = t.apr
			break
		}
	}

	return &domain.CreditTerms{CreditLimit: limit, APR: apr}, nil
}
