package utils

import (
	"math"
	"strings"
)

// FallbackBankName is used when the free-text account input carries no
// recognizable bank name (first token purely numeric).
const FallbackBankName = "기타"

// ParseAccount splits a free-text account field into a bank name and an
// account number. The first whitespace token is the bank name unless it
// is purely numeric; in that case the whole input is treated as the
// account number and the bank name falls back to FallbackBankName.
// The account number is filtered to digits and hyphens.
func ParseAccount(raw string) (bankName, accountNumber string) {
	tokens := strings.Fields(raw)
	if len(tokens) == 0 {
		return FallbackBankName, ""
	}

	if isNumeric(tokens[0]) {
		return FallbackBankName, filterAccountNumber(strings.Join(tokens, ""))
	}

	return tokens[0], filterAccountNumber(strings.Join(tokens[1:], ""))
}

// ParseFare extracts a non-negative whole-KRW amount from user fare
// text by keeping digits only. Text without any digit parses to 0, as
// does input whose digits would overflow int64.
func ParseFare(raw string) int64 {
	var fare int64
	for _, r := range raw {
		if r < '0' || r > '9' {
			continue
		}
		if fare > math.MaxInt64/10 || (fare == math.MaxInt64/10 && r > '7') {
			return 0
		}
		fare = fare*10 + int64(r-'0')
	}
	return fare
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func filterAccountNumber(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
