package shared

import "errors"

var (
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = errors.New("accounting: journal lines must balance")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("accounting: journal requires at least two lines")
	// ErrUnknownAccount indicates a missing or inactive account.
	ErrUnknownAccount = errors.New("accounting: unknown or inactive account")
	// ErrAccountInUse indicates the account has posted lines and cannot be removed.
	ErrAccountInUse = errors.New("accounting: account has posted journal lines")
	// ErrPeriodLocked indicates a posting dated inside a locked period.
	ErrPeriodLocked = errors.New("accounting: period locked")
	// ErrJournalNotFound indicates missing entry.
	ErrJournalNotFound = errors.New("accounting: journal entry not found")
	// ErrInvalidStatus indicates action can't proceed.
	ErrInvalidStatus = errors.New("accounting: invalid status transition")
	// ErrSequenceExhausted indicates the document number width overflowed.
	ErrSequenceExhausted = errors.New("accounting: document sequence exhausted")
	// ErrInvalidAmount indicates an amount below zero or beyond currency precision.
	ErrInvalidAmount = errors.New("accounting: invalid amount")
	// ErrOverpayment indicates a payment above a document's open balance.
	ErrOverpayment = errors.New("accounting: payment exceeds open balance")
)
