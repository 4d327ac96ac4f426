package domain

// AccountType classifies an account.
type AccountType string

const (
	AccountTypeBank       AccountType = "Bank"
	AccountTypeCash       AccountType = "Cash"
	AccountTypeInvestment AccountType = "Investment"
	AccountTypeCredit     AccountType = "Credit"
)

// Valid reports whether t is one of the known account types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeBank, AccountTypeCash, AccountTypeInvestment, AccountTypeCredit:
		return true
	}
	return false
}

// Account is a container of money owned by a user. Balance is the running
// total of every transaction applied to it since creation, plus its opening
// balance.
type Account struct {
	ID       string      `json:"id"`
	UserID   string      `json:"userId"`
	Name     string      `json:"name"`
	Type     AccountType `json:"type"`
	Balance  float64     `json:"balance"`
	Currency string      `json:"currency"`
}

// GetID returns the account identifier.
func (a Account) GetID() string {
	return a.ID
}

// FindAccount returns the account with the given id.
func FindAccount(accounts []Account, id string) (Account, bool) {
	for _, a := range accounts {
		if a.ID == id {
			return a, true
		}
	}
	return Account{}, false
}
