package utils

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// ValidateAmount checks if an amount string is a valid non-negative decimal
func ValidateAmount(amount string) (decimal.Decimal, error) {
	if amount == "" {
		return decimal.Zero, fmt.Errorf("amount cannot be empty")
	}

	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount format: %w", err)
	}

	if dec.IsNegative() {
		return decimal.Zero, fmt.Errorf("amount cannot be negative")
	}

	return dec, nil
}

// ValidatePublicKey parses a base58 account address.
func ValidatePublicKey(address string) (solana.PublicKey, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return solana.PublicKey{}, fmt.Errorf("address cannot be empty")
	}

	key, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid address %q: %w", address, err)
	}
	return key, nil
}

// ValidateSignature checks that sig is a base58 transaction signature.
func ValidateSignature(sig string) error {
	if sig == "" {
		return fmt.Errorf("transaction signature cannot be empty")
	}
	if _, err := solana.SignatureFromBase58(sig); err != nil {
		return fmt.Errorf("invalid transaction signature: %w", err)
	}
	return nil
}
