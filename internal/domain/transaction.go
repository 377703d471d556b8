package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// TransactionType distinguishes money coming in from money going out.
type TransactionType string

const (
	TypeIncome  TransactionType = "income"
	TypeExpense TransactionType = "expense"
)

// Category classifies an expense. Income transactions carry no category.
type Category string

const (
	CategoryGroceries   Category = "groceries"
	CategoryTaxi        Category = "taxi"
	CategoryElectronics Category = "electronics"
	CategoryRestaurant  Category = "restaurant"
	CategoryOther       Category = "other"
)

// AllCategories lists every valid expense category.
var AllCategories = []Category{
	CategoryGroceries,
	CategoryTaxi,
	CategoryElectronics,
	CategoryRestaurant,
	CategoryOther,
}

// DisplayName returns the human-readable category label.
func (c Category) DisplayName() string {
	switch c {
	case CategoryGroceries:
		return "Groceries"
	case CategoryTaxi:
		return "Taxi"
	case CategoryElectronics:
		return "Electronics"
	case CategoryRestaurant:
		return "Restaurant"
	case CategoryOther:
		return "Other"
	}
	return string(c)
}

// Icon returns the glyph shown next to the category.
func (c Category) Icon() string {
	switch c {
	case CategoryGroceries:
		return "🛒"
	case CategoryTaxi:
		return "🚕"
	case CategoryElectronics:
		return "📱"
	case CategoryRestaurant:
		return "🍽️"
	case CategoryOther:
		return "📦"
	}
	return "📦"
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryGroceries, CategoryTaxi, CategoryElectronics, CategoryRestaurant, CategoryOther:
		return true
	}
	return false
}

// Transaction is an immutable ledger entry denominated in BTC.
// Once inserted it is never edited or deleted.
type Transaction struct {
	ID       uuid.UUID       `json:"id"`
	Amount   float64         `json:"amount"`
	Type     TransactionType `json:"type"`
	Category Category        `json:"category,omitempty"`
	Date     time.Time       `json:"date"`
}

// NewIncome builds an income transaction dated now.
func NewIncome(amount float64) Transaction {
	return Transaction{
		ID:     uuid.New(),
		Amount: amount,
		Type:   TypeIncome,
		Date:   time.Now(),
	}
}

// NewExpense builds an expense transaction dated now.
func NewExpense(amount float64, category Category) Transaction {
	return Transaction{
		ID:       uuid.New(),
		Amount:   amount,
		Type:     TypeExpense,
		Category: category,
		Date:     time.Now(),
	}
}

// SignedAmount is the transaction's contribution to the running balance.
func (t Transaction) SignedAmount() float64 {
	if t.Type == TypeIncome {
		return t.Amount
	}
	return -t.Amount
}

// TransactionGroup is a UI-facing aggregation of one local calendar day.
// Groups are derived state, recomputed from the working set on every change.
type TransactionGroup struct {
	Date         time.Time     `json:"date"`
	Transactions []Transaction `json:"transactions"`
}

// GroupByDay partitions transactions by local calendar day.
// Transactions within a day are sorted newest-first, and so are the days.
func GroupByDay(transactions []Transaction) []TransactionGroup {
	byDay := make(map[time.Time][]Transaction)
	for _, t := range transactions {
		day := startOfDay(t.Date)
		byDay[day] = append(byDay[day], t)
	}

	groups := make([]TransactionGroup, 0, len(byDay))
	for day, txns := range byDay {
		sort.Slice(txns, func(i, j int) bool {
			return txns[i].Date.After(txns[j].Date)
		})
		groups = append(groups, TransactionGroup{Date: day, Transactions: txns})
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Date.After(groups[j].Date)
	})
	return groups
}

func startOfDay(t time.Time) time.Time {
	local := t.Local()
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
}
