package chain

import (
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/stretchr/testify/assert"
)

func TestClassifySubmitError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "insufficient lamports",
			err:  &jsonrpc.RPCError{Code: -32002, Message: "Transfer: insufficient lamports 100, need 50000000"},
			want: ErrInsufficientFunds,
		},
		{
			name: "insufficient funds for instruction",
			err:  &jsonrpc.RPCError{Code: -32002, Message: "Transaction simulation failed: insufficient funds for instruction"},
			want: ErrInsufficientFunds,
		},
		{
			name: "invalid account data",
			err:  &jsonrpc.RPCError{Code: -32002, Message: "invalid account data for instruction"},
			want: ErrInvalidDestination,
		},
		{
			name: "expired blockhash",
			err:  &jsonrpc.RPCError{Code: -32002, Message: "Blockhash not found"},
			want: ErrBlockhashNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, classifySubmitError(tt.err), tt.want)
		})
	}
}

func TestClassifySubmitError_TransportFailure(t *testing.T) {
	got := classifySubmitError(errors.New("dial tcp: connection refused"))
	var netErr *NetworkError
	assert.ErrorAs(t, got, &netErr)
}

func TestClassifySubmitError_GenericRejection(t *testing.T) {
	got := classifySubmitError(&jsonrpc.RPCError{Code: -32002, Message: "Transaction precompile verification failure"})
	var subErr *SubmissionError
	assert.ErrorAs(t, got, &subErr)
	assert.Contains(t, subErr.Detail, "precompile")
}

func TestClassifyTransactionError(t *testing.T) {
	tests := []struct {
		name  string
		txErr any
		want  error
	}{
		{
			name:  "token program custom error 1",
			txErr: map[string]any{"InstructionError": []any{0, map[string]any{"Custom": 1}}},
			want:  ErrInsufficientFunds,
		},
		{
			name:  "invalid account data",
			txErr: map[string]any{"InstructionError": []any{0, "InvalidAccountData"}},
			want:  ErrInvalidDestination,
		},
		{
			name:  "blockhash expired",
			txErr: "BlockhashNotFound",
			want:  ErrBlockhashNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, classifyTransactionError(tt.txErr), tt.want)
		})
	}
}
