package domain

import "strings"

// Category is a display label for transactions. Transactions keep the
// category name by value, so renaming the catalog never rewrites history.
type Category struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Type  TransactionType `json:"type"`
	Icon  string          `json:"icon"`
	Color string          `json:"color"`
}

// DefaultCategories is the built-in category catalog.
var DefaultCategories = []Category{
	{ID: "food", Name: "Food", Type: TransactionTypeExpense, Icon: "utensils", Color: "#ef4444"},
	{ID: "transport", Name: "Transport", Type: TransactionTypeExpense, Icon: "car", Color: "#3b82f6"},
	{ID: "housing", Name: "Housing", Type: TransactionTypeExpense, Icon: "home", Color: "#10b981"},
	{ID: "entertainment", Name: "Entertainment", Type: TransactionTypeExpense, Icon: "film", Color: "#8b5cf6"},
	{ID: "salary", Name: "Salary", Type: TransactionTypeIncome, Icon: "briefcase", Color: "#22c55e"},
	{ID: "investment", Name: "Investment", Type: TransactionTypeIncome, Icon: "trending-up", Color: "#f59e0b"},
}

// LookupCategory finds a catalog entry by id or case-insensitive name.
func LookupCategory(name string) (Category, bool) {
	for _, c := range DefaultCategories {
		if c.ID == name || strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Category{}, false
}
