package utils

import (
	"strconv"
	"strings"
	"time"
)

// FormatDate returns the date as "2 January 2006"; zero times format as "".
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(time.Local).Format("2 January 2006")
}

// FormatDatePtr is FormatDate for optional timestamps.
func FormatDatePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return FormatDate(*t)
}

// FormatRupees renders an amount with Indian digit grouping, e.g. ₹1,00,000.
func FormatRupees(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)
	if len(digits) <= 3 {
		return sign + "₹" + digits
	}

	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	groups := make([]string, 0, len(head)/2+1)
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	if head != "" {
		groups = append([]string{head}, groups...)
	}
	return sign + "₹" + strings.Join(groups, ",") + "," + tail
}

var (
	ones = []string{"", "One", "Two", "Three", "Four", "Five", "Six", "Seven", "Eight", "Nine",
		"Ten", "Eleven", "Twelve", "Thirteen", "Fourteen", "Fifteen", "Sixteen", "Seventeen", "Eighteen", "Nineteen"}
	tens = []string{"", "", "Twenty", "Thirty", "Forty", "Fifty", "Sixty", "Seventy", "Eighty", "Ninety"}
)

// RupeesInWords spells an amount the way receipts do: "Rupees Thirty Thousand Only".
func RupeesInWords(amount int64) string {
	if amount <= 0 {
		return "Rupees Zero Only"
	}

	var parts []string
	for _, unit := range []struct {
		size int64
		name string
	}{
		{10000000, "Crore"},
		{100000, "Lakh"},
		{1000, "Thousand"},
		{100, "Hundred"},
	} {
		if amount >= unit.size {
			parts = append(parts, belowHundred(amount/unit.size), unit.name)
			amount %= unit.size
		}
	}
	if amount > 0 {
		parts = append(parts, belowHundred(amount))
	}
	return "Rupees " + strings.Join(parts, " ") + " Only"
}

func belowHundred(n int64) string {
	if n >= 100 {
		// crore multiples above 99 recurse through the full speller
		return strings.TrimSuffix(strings.TrimPrefix(RupeesInWords(n), "Rupees "), " Only")
	}
	if n < 20 {
		return ones[n]
	}
	if n%10 == 0 {
		return tens[n/10]
	}
	return tens[n/10] + "-" + ones[n%10]
}
