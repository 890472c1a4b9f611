// Package pricing holds the bid increment rule and DOGE/USD display math.
package pricing

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Bernard-Murphy/dbay-public/internal/domain"
)

const (
	// IncrementThreshold is the price from which the larger increment applies.
	IncrementThreshold = 100
	smallIncrement     = 1
	largeIncrement     = 5
)

// MinNextBid returns the lowest acceptable bid over the current price.
func MinNextBid(current int64) int64 {
	if current >= IncrementThreshold {
		return current + largeIncrement
	}
	return current + smallIncrement
}

// ParseDoge parses user input as a whole DOGE amount.
func ParseDoge(input string) (int64, error) {
	input = strings.TrimSpace(strings.ReplaceAll(input, ",", ""))
	if input == "" {
		return 0, domain.ErrInvalidAmount
	}
	v, err := strconv.ParseInt(input, 10, 64)
	if err != nil {
		return 0, domain.ErrInvalidAmount
	}
	return v, nil
}

// ValidateBid parses a bid and checks it against the minimum next bid.
func ValidateBid(input string, current int64) (int64, error) {
	amount, err := ParseDoge(input)
	if err != nil {
		return 0, err
	}
	if min := MinNextBid(current); amount < min {
		return 0, fmt.Errorf("%w: minimum bid is Ð%s", domain.ErrBidTooLow, FormatDoge(min))
	}
	return amount, nil
}

// DogeToUSD converts a DOGE amount to USD after rounding to whole DOGE.
func DogeToUSD(doge float64, rate float64) float64 {
	return math.Round(doge) * rate
}

// USDToDoge converts a USD value back to the nearest whole DOGE.
func USDToDoge(usd float64, rate float64) int64 {
	if rate <= 0 {
		return 0
	}
	return int64(math.Round(usd / rate))
}

// ParseUSD parses a non-negative dollar amount such as "$1,250.50".
func ParseUSD(input string) (float64, error) {
	input = strings.TrimSpace(input)
	input = strings.TrimPrefix(input, "$")
	input = strings.ReplaceAll(input, ",", "")
	v, err := strconv.ParseFloat(strings.TrimSpace(input), 64)
	if err != nil || v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, domain.ErrInvalidAmount
	}
	return v, nil
}

// DogeFromUSD parses a USD input and converts it at rate.
func DogeFromUSD(input string, rate float64) (int64, error) {
	usd, err := ParseUSD(input)
	if err != nil {
		return 0, err
	}
	if rate <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	return USDToDoge(usd, rate), nil
}

// FormatDoge renders a whole DOGE amount with thousands separators.
func FormatDoge(doge int64) string {
	return groupThousands(doge)
}

// FormatUSD renders a USD value with thousands separators and two decimals,
// e.g. $63,545.34.
func FormatUSD(usd float64) string {
	cents := int64(math.Round(usd * 100))
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%s.%02d", sign, groupThousands(cents/100), cents%100)
}

// FormatDogeWithUSD renders "1,234 ($308.50)".
func FormatDogeWithUSD(doge int64, rate float64) string {
	return fmt.Sprintf("%s (%s)", FormatDoge(doge), FormatUSD(DogeToUSD(float64(doge), rate)))
}

func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	if len(s) <= 3 {
		if neg {
			return "-" + s
		}
		return s
	}

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	head := len(s) % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if b.Len() > 0 && !(neg && b.Len() == 1) {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
