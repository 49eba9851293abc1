package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSwapCommand(t *testing.T) {
	tests := []struct {
		input    string
		amount   string
		from, to string
		wantErr  bool
	}{
		{input: "swap 10 HBAR to SAUCE", amount: "10", from: "HBAR", to: "SAUCE"},
		{input: "1.5 usdc TO hbar", amount: "1.5", from: "USDC", to: "HBAR"},
		{input: "  swap   2   hbars   to   usdc ", amount: "2", from: "HBAR", to: "USDC"},
		{input: "100 SAUCE to 0.0.456858", amount: "100", from: "SAUCE", to: "0.0.456858"},
		{input: "swap 0 HBAR to SAUCE", wantErr: true},
		{input: "swap 1. HBAR to SAUCE", wantErr: true},
		{input: "swap HBAR to SAUCE", wantErr: true},
		{input: "swap 1 HBAR SAUCE", wantErr: true},
		{input: "swap 1 HBAR to HBARS", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			req, err := ParseSwapCommand(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.amount, req.Amount)
			assert.Equal(t, tt.from, req.SourceToken)
			assert.Equal(t, tt.to, req.DestToken)
		})
	}
}
