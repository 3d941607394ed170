package receipt

import (
	"math"
	"strconv"
	"strings"
)

// FormatNumber renders a number with space-separated thousands and at
// most maxDecimals decimal places, dropping trailing zeros:
//
//	60000.00   -> "60 000"
//	60000.05   -> "60 000.05"
//	60000.2345 -> "60 000.23"
func FormatNumber(v float64, maxDecimals int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	if maxDecimals < 0 {
		maxDecimals = 0
	}

	s := strconv.FormatFloat(v, 'f', maxDecimals, 64)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, decPart, _ := strings.Cut(s, ".")
	decPart = strings.TrimRight(decPart, "0")

	out := groupThousands(intPart)
	if decPart != "" {
		out += "." + decPart
	}
	if neg && strings.Trim(out, "0.") != "" {
		out = "-" + out
	}
	return out
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
