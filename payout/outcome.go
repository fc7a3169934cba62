package payout

import "github.com/gagliardetto/solana-go"

// Status is the terminal classification of one payout attempt.
type Status string

const (
	StatusSuccess           Status = "success"
	StatusInvalidRequest    Status = "invalid_request"
	StatusInsufficientFunds Status = "insufficient_funds"
	StatusNetworkFailure    Status = "network_failure"
	StatusSubmissionFailure Status = "submission_failure"
)

// Outcome is the result of one payout execution attempt. It is terminal: the
// engine keeps no record of past attempts, so the caller owns reporting it.
type Outcome struct {
	Status Status
	// Signature is set whenever a transaction was submitted, including on
	// failed or unconfirmed attempts, so the attempt can be reconciled
	// against the ledger.
	Signature solana.Signature
	// TokensSent is the whole-token quantity delivered, token payouts only.
	TokensSent float64
	// Detail is a human-readable diagnostic. It never contains key material
	// or endpoint URLs.
	Detail string
}

// Succeeded reports whether the payout confirmed on chain.
func (o Outcome) Succeeded() bool { return o.Status == StatusSuccess }
