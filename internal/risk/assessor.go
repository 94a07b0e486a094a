package risk

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/lumabank/credit-engine/internal/domain"
	"github.com/lumabank/credit-engine/internal/logging"
)

// Approval cut-off: a total risk score of exactly 44 is declined.
var approvalThreshold = decimal.NewFromInt(44)

var employmentPoints = map[domain.EmploymentStatus]int{
	domain.EmploymentEmployed:     0,
	domain.EmploymentSelfEmployed: 10,
	domain.EmploymentUnemployed:   15,
	domain.EmploymentNotEmployed:  15,
}

var bankingPoints = map[domain.BankingStatus]int{
	domain.BankingCheckingAndSavings: 0,
	domain.BankingCheckingOnly:       5,
	domain.BankingNone:               15,
	domain.BankingOther:              15,
}

const (
	minCreditScore = 300
	maxCreditScore = 850
)

type Input struct {
	EmploymentStatus domain.EmploymentStatus
	BankingStatus    domain.BankingStatus
	AnnualIncome     int64
	Debts            domain.DebtProfile
}

// Assessor turns an applicant's financial snapshot into a risk assessment.
// It is pure apart from audit logging: every invocation, approved or
// declined, logs inputs, intermediate points, and the decision.
type Assessor struct{}

func NewAssessor() *Assessor {
	return &Assessor{}
}

func (a *Assessor) Assess(ctx context.Context, in Input) (*domain.RiskAssessment, error) {
	if in.AnnualIncome <= 0 {
		return nil, fmt.Errorf("Assess: %w", domain.ErrInvalidFinancials)
	}
	if in.Debts.Mortgage < 0 || in.Debts.Auto < 0 || in.Debts.Credit < 0 || in.Debts.Other < 0 {
		return nil, fmt.Errorf("Assess: negative debt component: %w", domain.ErrInvalidFinancials)
	}

	riskPoints := employmentPoints[in.EmploymentStatus] + bankingPoints[in.BankingStatus]

	dti := decimal.NewFromInt(in.Debts.Total()).Div(decimal.NewFromInt(in.AnnualIncome))
	dtiPct := dti.Mul(decimal.NewFromInt(100))

	total := decimal.NewFromInt(int64(riskPoints)).Add(dtiPct)

	decision := domain.DecisionDeclined
	if total.LessThan(approvalThreshold) {
		decision = domain.DecisionApproved
	}

	assessment := &domain.RiskAssessment{
		CreditScore:       creditScore(riskPoints, dtiPct),
		RiskPoints:        riskPoints,
		DebtToIncomeRatio: dti,
		TotalRiskScore:    total,
		Decision:          decision,
	}

	logging.Audit(ctx).Info("risk assessment",
		"employment_status", in.EmploymentStatus,
		"banking_status", in.BankingStatus,
		"annual_income", in.AnnualIncome,
		"total_debt", in.Debts.Total(),
		"risk_points", riskPoints,
		"dti", dti.StringFixed(4),
		"total_risk_score", total.StringFixed(2),
		"credit_score", assessment.CreditScore,
		"decision", decision,
	)

	return assessment, nil
}

// creditScore is a deterministic score over the same inputs, bounded to
// [300, 850]. It feeds APR pricing and is independent of the approval
// threshold test.
func creditScore(riskPoints int, dtiPct decimal.Decimal) int {
	penalty := decimal.NewFromInt(int64(riskPoints * 10)).
		Add(dtiPct.Mul(decimal.NewFromInt(5)))

	score := int(decimal.NewFromInt(maxCreditScore).Sub(penalty).Round(0).IntPart())
	if score < minCreditScore {
		return minCreditScore
	}
	if score > maxCreditScore {
		return maxCreditScore
	}
	return score
}
