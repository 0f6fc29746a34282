package gridparse

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/sheetledger/internal/domain"
)

// DefaultPerPage is the page size used when none is requested.
const DefaultPerPage = 50

// Filters narrow a transaction list. Zero values disable a filter.
type Filters struct {
	UncategorizedOnly bool
	Account           string
	// FromDate keeps transactions dated on or after it.
	FromDate string
}

// Page is one slice of a filtered list.
type Page struct {
	Items    []domain.Transaction `json:"items"`
	Total    int                  `json:"total"`
	Page     int                  `json:"page"`
	PerPage  int                  `json:"per_page"`
	LastPage int                  `json:"last_page"`
}

// dateLayouts are the renderings of a date cell we understand besides ISO.
var dateLayouts = []string{"1/2/2006", "01/02/2006", "2006/01/02", "Jan 2, 2006", "2 Jan 2006"}

// Filter returns the transactions matching every set filter, in order.
func Filter(txs []domain.Transaction, f Filters) []domain.Transaction {
	from, fromOK := ParseDate(f.FromDate)

	out := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if f.UncategorizedOnly && !tx.IsUncategorized() {
			continue
		}
		if f.Account != "" && tx.Account != f.Account {
			continue
		}
		if f.FromDate != "" && !onOrAfter(tx.Date, f.FromDate, from, fromOK) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

func onOrAfter(date, rawFrom string, from civil.Date, fromOK bool) bool {
	if fromOK {
		if d, ok := ParseDate(date); ok {
			return !d.Before(from)
		}
	}
	return date >= rawFrom
}

// ParseDate reads a date cell. ISO dates and the common US and long forms
// are accepted.
func ParseDate(s string) (civil.Date, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return civil.Date{}, false
	}
	if d, err := civil.ParseDate(s); err == nil {
		return d, true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t), true
		}
	}
	return civil.Date{}, false
}

// Paginate cuts one 1-indexed page out of txs. Pages and sizes below 1
// fall back to the first page and DefaultPerPage.
func Paginate(txs []domain.Transaction, page, perPage int) Page {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}

	total := len(txs)
	lastPage := (total + perPage - 1) / perPage
	if lastPage < 1 {
		lastPage = 1
	}

	items := []domain.Transaction{}
	if start := (page - 1) * perPage; start < total {
		end := start + perPage
		if end > total {
			end = total
		}
		items = append(items, txs[start:end]...)
	}

	return Page{
		Items:    items,
		Total:    total,
		Page:     page,
		PerPage:  perPage,
		LastPage: lastPage,
	}
}
