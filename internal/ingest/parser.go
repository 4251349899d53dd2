package ingest

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/carson-networks/spendiq-server/internal/storage/transaction"
)

const (
	expenseTitlePrefix = "Compra aprobada por"
	incomeTitle        = "Nu"
	hiddenContent      = "content hidden"
)

var (
	expensePattern = regexp.MustCompile(`Tu compra en ([\w\s]+) por \$([\d,.]+) con tu tarjeta terminada en ([\d]+)`)
	incomePattern  = regexp.MustCompile(`([\w\s]+) te envio \$([\d,.]+) con motivo de ([\w\s]+)`)
)

// Event is a transaction extracted from a bank notification.
type Event struct {
	Name   string
	Amount int64
	Type   transaction.Type
}

// Parse extracts an event from a notification title and body. It returns false for
// notifications that are redacted or do not match a known template.
func Parse(title, text string) (Event, bool) {
	if strings.Contains(strings.ToLower(text), hiddenContent) {
		return Event{}, false
	}

	switch {
	case strings.HasPrefix(title, expenseTitlePrefix):
		return match(expensePattern, text, transaction.TypeExpense)
	case title == incomeTitle:
		return match(incomePattern, text, transaction.TypeIncome)
	}
	return Event{}, false
}

func match(pattern *regexp.Regexp, text string, txType transaction.Type) (Event, bool) {
	groups := pattern.FindStringSubmatch(text)
	if groups == nil {
		return Event{}, false
	}
	amount, ok := ParseAmount(groups[2])
	if !ok {
		return Event{}, false
	}
	return Event{Name: groups[1], Amount: amount, Type: txType}, true
}

// ParseAmount reads an amount written with "." thousands separators and an optional ","
// decimal part. The decimal part is discarded, not rounded: "120.500,75" is 120500.
func ParseAmount(raw string) (int64, bool) {
	cleaned := strings.ReplaceAll(raw, ".", "")
	if i := strings.IndexByte(cleaned, ','); i >= 0 {
		cleaned = cleaned[:i]
	}
	amount, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil || amount <= 0 {
		return 0, false
	}
	return amount, true
}
