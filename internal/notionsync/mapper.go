package notionsync

import (
	"time"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/wealthflow/internal/domain"
	"github.com/dvloznov/wealthflow/internal/valuation"
)

// IDProperty holds the ledger id on every mirrored page. Pages without it
// are treated as stale.
const IDProperty = "WealthFlow ID"

func titleProp(s string) notionapi.TitleProperty {
	return notionapi.TitleProperty{
		Title: []notionapi.RichText{{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: s}}},
	}
}

func textProp(s string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{
		RichText: []notionapi.RichText{{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: s}}},
	}
}

func dateProp(t time.Time) notionapi.DateProperty {
	d := notionapi.Date(t)
	return notionapi.DateProperty{Date: &notionapi.DateObject{Start: &d}}
}

func selectProp(name string) notionapi.SelectProperty {
	return notionapi.SelectProperty{Select: notionapi.Option{Name: name}}
}

// AccountProperties maps an account onto the Accounts database:
// Name, Type, Balance, Currency.
func AccountProperties(a domain.Account) notionapi.Properties {
	props := notionapi.Properties{
		"Name":     titleProp(a.Name),
		IDProperty: textProp(a.ID),
		"Balance":  notionapi.NumberProperty{Number: a.Balance},
	}
	if a.Type != "" {
		props["Type"] = selectProp(string(a.Type))
	}
	if a.Currency != "" {
		props["Currency"] = selectProp(a.Currency)
	}
	return props
}

// TransactionProperties maps a transaction onto the Transactions database.
// accountNames resolves the account reference; a transaction whose account
// was deleted keeps the raw id.
func TransactionProperties(tx domain.Transaction, accountNames map[string]string) notionapi.Properties {
	title := tx.Note
	if title == "" {
		title = tx.Category
	}

	props := notionapi.Properties{
		"Description": titleProp(title),
		IDProperty:    textProp(tx.ID),
		"Date":        dateProp(tx.Date),
		"Amount":      notionapi.NumberProperty{Number: tx.Amount},
		"Type":        selectProp(string(tx.Type)),
	}

	account := tx.AccountID
	if name, ok := accountNames[tx.AccountID]; ok {
		account = name
	}
	props["Account"] = textProp(account)

	if tx.Category != "" {
		props["Category"] = selectProp(tx.Category)
	}
	if tx.Note != "" {
		props["Notes"] = textProp(tx.Note)
	}
	return props
}

// StockProperties maps a holding and its valuation onto the Stocks database.
func StockProperties(h domain.StockHolding) notionapi.Properties {
	v := valuation.Value(h)

	props := notionapi.Properties{
		"Symbol":       titleProp(h.Symbol),
		IDProperty:     textProp(h.ID),
		"Shares":       notionapi.NumberProperty{Number: h.Shares},
		"Average Cost": notionapi.NumberProperty{Number: h.AverageCost},
		"Price":        notionapi.NumberProperty{Number: h.Price()},
		"Market Value": notionapi.NumberProperty{Number: v.MarketValue},
		"P/L %":        notionapi.NumberProperty{Number: v.PLPercent},
	}
	if h.Name != "" {
		props["Name"] = textProp(h.Name)
	}
	if h.LastUpdated != nil {
		props["Last Updated"] = dateProp(*h.LastUpdated)
	}
	if len(h.Sources) > 0 {
		props["Source"] = notionapi.URLProperty{URL: h.Sources[0].URI}
	}
	return props
}

// pageLedgerID reads IDProperty from a page. Pages decoded from the API
// carry pointer properties; pages built locally carry values.
func pageLedgerID(page notionapi.Page) string {
	var rt []notionapi.RichText
	switch p := page.Properties[IDProperty].(type) {
	case *notionapi.RichTextProperty:
		rt = p.RichText
	case notionapi.RichTextProperty:
		rt = p.RichText
	}
	if len(rt) == 0 {
		return ""
	}
	if rt[0].PlainText != "" {
		return rt[0].PlainText
	}
	if rt[0].Text != nil {
		return rt[0].Text.Content
	}
	return ""
}
