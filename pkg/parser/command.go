package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"hedera-swap/pkg/types"
)

// <amount> <source> TO <dest>, where a token is a symbol or a 0.0.N id
var swapPattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s+([A-Z0-9]+|\d+\.\d+\.\d+)\s+TO\s+([A-Z0-9]+|\d+\.\d+\.\d+)$`)

// ParseSwapCommand parses a natural language swap command
// Examples:
//   - "swap 1 HBAR to SAUCE"
//   - "1.5 USDC to HBAR"
//   - "100 SAUCE to 0.0.456858"
func ParseSwapCommand(command string) (*types.SwapRequest, error) {
	// Normalize the command
	command = strings.Join(strings.Fields(strings.ToUpper(command)), " ")

	// Remove the word "SWAP" if present at the beginning
	command = strings.TrimPrefix(command, "SWAP ")

	matches := swapPattern.FindStringSubmatch(command)
	if matches == nil {
		return nil, fmt.Errorf("invalid swap command format. Expected: 'swap <amount> <token> to <token>' (e.g., 'swap 10 HBAR to SAUCE')")
	}

	req := &types.SwapRequest{
		Amount:      matches[1],
		SourceToken: NormalizeTokenSymbol(matches[2]),
		DestToken:   NormalizeTokenSymbol(matches[3]),
	}
	if err := ValidateSwapRequest(req); err != nil {
		return nil, err
	}
	return req, nil
}

// ValidateSwapRequest validates that a swap request has all required fields
func ValidateSwapRequest(req *types.SwapRequest) error {
	if req.Amount == "" {
		return fmt.Errorf("amount is required")
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", req.Amount, err)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("amount must be greater than zero")
	}
	if req.SourceToken == "" {
		return fmt.Errorf("source token is required")
	}
	if req.DestToken == "" {
		return fmt.Errorf("destination token is required")
	}
	if req.SourceToken == req.DestToken {
		return fmt.Errorf("cannot swap %s to itself", req.SourceToken)
	}
	return nil
}

// NormalizeTokenSymbol normalizes token symbols to standard format
func NormalizeTokenSymbol(symbol string) string {
	symbol = strings.TrimSpace(strings.ToUpper(symbol))

	aliases := map[string]string{
		"HBARS": types.NativeSymbol,
		"ℏ":     types.NativeSymbol,
	}

	if normalized, exists := aliases[symbol]; exists {
		return normalized
	}

	return symbol
}
