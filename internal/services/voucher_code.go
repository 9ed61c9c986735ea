package services

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Voucher codes are 8 characters drawn from A-Z and 0-9.
const (
	VoucherCodeLength   = 8
	voucherCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxVoucherAttempts  = 5
)

var voucherAlphabetSize = big.NewInt(int64(len(voucherCodeAlphabet)))

// GenerateVoucherCode returns a random code using crypto/rand.
func GenerateVoucherCode() (string, error) {
	code := make([]byte, VoucherCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, voucherAlphabetSize)
		if err != nil {
			return "", fmt.Errorf("failed to generate voucher code: %w", err)
		}
		code[i] = voucherCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}

// IsVoucherCode reports whether code has the voucher code shape.
func IsVoucherCode(code string) bool {
	if len(code) != VoucherCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if !(c >= 'A' && c <= 'Z') && !(c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
