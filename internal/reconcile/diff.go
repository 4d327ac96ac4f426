package reconcile

import (
	"github.com/dvloznov/wealthflow/internal/domain"
	"github.com/google/go-cmp/cmp"
)

// Op is the kind of mutation an intent carries.
type Op string

const (
	OpAdd    Op = "add"
	OpUpdate Op = "update"
	OpRemove Op = "remove"
)

// Entity is anything with a stable identifier.
type Entity interface {
	GetID() string
}

// Intent is an explicit persistence command. For OpRemove only ID is set.
type Intent[T Entity] struct {
	Op     Op     `json:"op"`
	Entity T      `json:"entity"`
	ID     string `json:"id"`
}

// Add returns an add intent for e.
func Add[T Entity](e T) Intent[T] {
	return Intent[T]{Op: OpAdd, Entity: e, ID: e.GetID()}
}

// Update returns an update intent for e.
func Update[T Entity](e T) Intent[T] {
	return Intent[T]{Op: OpUpdate, Entity: e, ID: e.GetID()}
}

// Remove returns a remove intent for id.
func Remove[T Entity](id string) Intent[T] {
	return Intent[T]{Op: OpRemove, ID: id}
}

// Diff classifies the change from prev to next.
//
// If any id from prev is missing in next, a single remove intent for the
// first such id is returned and nothing else is inspected. Otherwise every
// entity in next that is new yields an add and every entity that differs
// from its previous version (according to equal) yields an update, in the
// order of next. Equal collections yield no intents.
func Diff[T Entity](prev, next []T, equal func(a, b T) bool) []Intent[T] {
	nextIDs := make(map[string]struct{}, len(next))
	for _, e := range next {
		nextIDs[e.GetID()] = struct{}{}
	}
	for _, e := range prev {
		if _, ok := nextIDs[e.GetID()]; !ok {
			return []Intent[T]{Remove[T](e.GetID())}
		}
	}

	prevByID := make(map[string]T, len(prev))
	for _, e := range prev {
		prevByID[e.GetID()] = e
	}

	var intents []Intent[T]
	for _, e := range next {
		old, ok := prevByID[e.GetID()]
		switch {
		case !ok:
			intents = append(intents, Add(e))
		case !equal(old, e):
			intents = append(intents, Update(e))
		}
	}
	return intents
}

// DiffAccounts classifies an account collection change.
func DiffAccounts(prev, next []domain.Account) []Intent[domain.Account] {
	return Diff(prev, next, func(a, b domain.Account) bool { return a == b })
}

// DiffStocks classifies a holding collection change. Holdings are compared
// field by field, including price provenance.
func DiffStocks(prev, next []domain.StockHolding) []Intent[domain.StockHolding] {
	return Diff(prev, next, func(a, b domain.StockHolding) bool { return cmp.Equal(a, b) })
}

// DiffTransactions classifies a transaction collection change by length.
// A longer next means next[0] was added, since new transactions are
// prepended. A shorter next means the first prev id absent from next was
// removed. ok is false when no change can be inferred.
func DiffTransactions(prev, next []domain.Transaction) (intent Intent[domain.Transaction], ok bool) {
	switch {
	case len(next) > len(prev):
		return Add(next[0]), true
	case len(next) < len(prev):
		present := make(map[string]struct{}, len(next))
		for _, tx := range next {
			present[tx.ID] = struct{}{}
		}
		for _, tx := range prev {
			if _, found := present[tx.ID]; !found {
				return Intent[domain.Transaction]{Op: OpRemove, Entity: tx, ID: tx.ID}, true
			}
		}
	}
	return Intent[domain.Transaction]{}, false
}
