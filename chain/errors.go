package chain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

var (
	// ErrInsufficientFunds indicates the treasury account could not cover the
	// transfer plus fees. This can surface at submission time even after a
	// pre-flight balance check passed.
	ErrInsufficientFunds = errors.New("insufficient funds on chain")

	// ErrInvalidDestination indicates the ledger rejected the destination
	// account of a submitted transfer.
	ErrInvalidDestination = errors.New("invalid destination account")

	// ErrBlockhashNotFound indicates the anchoring block reference expired
	// before the transaction was accepted.
	ErrBlockhashNotFound = errors.New("blockhash not found or expired")
)

// NetworkError is a transient transport failure talking to the RPC endpoint.
// The on-chain outcome of any in-flight submission is unknown to the caller.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network failure during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// SubmissionError is a definitive rejection of a submitted transaction that
// does not map onto a more specific sentinel.
type SubmissionError struct {
	Detail string
	Err    error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("transaction rejected: %s", e.Detail)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// classifySubmitError maps a sendTransaction failure onto the closed error
// set. All string matching on provider error shapes lives in this file; the
// engine and handlers branch on types and sentinels only.
func classifySubmitError(err error) error {
	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) {
		// Not a node response, so the transaction never reached the ledger.
		return &NetworkError{Op: "send transaction", Err: err}
	}
	msg := strings.ToLower(rpcErr.Message)
	switch {
	case strings.Contains(msg, "insufficient lamports"),
		strings.Contains(msg, "insufficient funds"):
		return fmt.Errorf("%w: %s", ErrInsufficientFunds, rpcErr.Message)
	case strings.Contains(msg, "invalid account data"),
		strings.Contains(msg, "accountnotfound"),
		strings.Contains(msg, "incorrect program id"):
		return fmt.Errorf("%w: %s", ErrInvalidDestination, rpcErr.Message)
	case strings.Contains(msg, "blockhash not found"):
		return fmt.Errorf("%w: %s", ErrBlockhashNotFound, rpcErr.Message)
	default:
		return &SubmissionError{Detail: rpcErr.Message, Err: err}
	}
}

// classifyTransactionError maps the ledger's structured transaction error
// (reported via signature status) onto the closed error set.
func classifyTransactionError(txErr any) error {
	msg := strings.ToLower(fmt.Sprintf("%v", txErr))
	switch {
	case strings.Contains(msg, "insufficientfunds"),
		strings.Contains(msg, "insufficient funds"),
		strings.Contains(msg, "custom:1"), // token program: insufficient funds
		strings.Contains(msg, "custom(1)"):
		return fmt.Errorf("%w: transaction failed with %v", ErrInsufficientFunds, txErr)
	case strings.Contains(msg, "invalidaccountdata"),
		strings.Contains(msg, "accountnotfound"):
		return fmt.Errorf("%w: transaction failed with %v", ErrInvalidDestination, txErr)
	case strings.Contains(msg, "blockhashnotfound"):
		return fmt.Errorf("%w: transaction failed with %v", ErrBlockhashNotFound, txErr)
	default:
		return &SubmissionError{Detail: fmt.Sprintf("transaction failed with %v", txErr)}
	}
}

// isAccountNotFound reports whether an RPC error means the queried account
// does not exist, which callers treat as a zero balance rather than a failure.
func isAccountNotFound(err error) bool {
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		return strings.Contains(strings.ToLower(rpcErr.Message), "could not find account")
	}
	return false
}
