package domain

import "errors"

var (
	ErrNotFound                     = errors.New("not found")
	ErrValidation                   = errors.New("validation failed")
	ErrInvalidFinancials            = errors.New("annual income must be greater than zero")
	ErrDuplicateSSN                 = errors.New("applicant already exists for this ssn")
	ErrDuplicateEmail               = errors.New("email already registered")
	ErrDuplicateReference           = errors.New("application reference already exists")
	ErrInsufficientAvailableBalance = errors.New("insufficient available balance")
	ErrInvalidAmount                = errors.New("amount must be non-zero")
	ErrExcessivePayment             = errors.New("payment exceeds current balance")
	ErrInvalidReversal              = errors.New("original transaction is not reversible")
	ErrIssuanceCollision            = errors.New("card number generation exhausted retries")
	ErrVersionConflict              = errors.New("optimistic lock conflict")
	ErrNotDeclined                  = errors.New("only declined applications may be removed")
	ErrAccountExists                = errors.New("account already issued for this application")
)
