package bridge

import (
	"github.com/lumabank/credit-engine/internal/domain"
	"github.com/lumabank/credit-engine/internal/workflow"
	"github.com/shopspring/decimal"
)

type debtsPayload struct {
	Mortgage int64 `json:"mortgage"`
	Auto     int64 `json:"auto"`
	Credit   int64 `json:"credit"`
	Other    int64 `json:"other"`
}

type applicantPayload struct {
	SSN              string       `json:"ssn"`
	Email            string       `json:"email"`
	Name             string       `json:"name"`
	Address          string       `json:"address"`
	EmploymentStatus string       `json:"employmentStatus"`
	BankingStatus    string       `json:"bankingStatus"`
	Income           int64        `json:"income"`
	Debts            debtsPayload `json:"debts"`
}

type applicationRequest struct {
	CorrelationID string           `json:"correlationId"`
	Applicant     applicantPayload `json:"applicant"`
}

type termsPayload struct {
	CreditLimit int64           `json:"creditLimit"`
	APR         decimal.Decimal `json:"apr"`
}

type accountPayload struct {
	AccountID        string `json:"accountId"`
	MaskedCardNumber string `json:"maskedCardNumber"`
}

type decisionResponse struct {
	CorrelationID        string          `json:"correlationId"`
	ApplicationReference string          `json:"applicationReference,omitempty"`
	Decision             string          `json:"decision,omitempty"`
	Terms                *termsPayload   `json:"terms,omitempty"`
	Account              *accountPayload `json:"account,omitempty"`
	Reason               string          `json:"reason,omitempty"`
}

type alertMessage struct {
	CorrelationID        string `json:"correlationId"`
	ApplicationReference string `json:"applicationReference,omitempty"`
	Reason               string `json:"reason"`
	Attempts             int    `json:"attempts"`
}

func buildResponse(correlationID string, res *workflow.Result) decisionResponse {
	out := decisionResponse{
		CorrelationID:        correlationID,
		ApplicationReference: res.ApplicationRef,
		Decision:             string(res.Decision),
	}
	if res.Decision == domain.DecisionApproved {
		out.Terms = &termsPayload{
			CreditLimit: res.Terms.CreditLimit,
			APR:         res.Terms.APR,
		}
		out.Account = &accountPayload{
			AccountID:        res.Account.AccountID.String(),
			MaskedCardNumber: res.Account.MaskedNumber,
		}
	} else {
		out.Reason = res.Reason
	}
	return out
}
