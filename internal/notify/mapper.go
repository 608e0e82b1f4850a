package notify

import (
	"github.com/dvloznov/bank-sync/internal/domain"
	"github.com/jomei/notionapi"
)

// Property names of the Notion transactions feed database.
const (
	PropName       = "Name"
	PropDate       = "Date"
	PropAmount     = "Amount"
	PropCurrency   = "Currency"
	PropAccount    = "Account"
	PropTeam       = "Team"
	PropMethod     = "Method"
	PropCategory   = "Category"
	PropStatus     = "Status"
	PropInternalID = "Internal ID"
)

// TransactionToNotionProperties converts a synced transaction to Notion properties.
func TransactionToNotionProperties(tx domain.Transaction) notionapi.Properties {
	date := notionapi.Date(tx.Date)
	amount, _ := tx.Amount.Float64()

	props := notionapi.Properties{
		PropName: notionapi.TitleProperty{
			Title: richText(tx.Name),
		},
		PropDate: notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &date},
		},
		PropAmount: notionapi.NumberProperty{
			Number: amount,
		},
		PropAccount: notionapi.RichTextProperty{
			RichText: richText(tx.BankAccountID),
		},
		PropTeam: notionapi.RichTextProperty{
			RichText: richText(tx.TeamID),
		},
		PropMethod: notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(tx.Method)},
		},
		PropStatus: notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(tx.Status)},
		},
		PropInternalID: notionapi.RichTextProperty{
			RichText: richText(tx.InternalID),
		},
	}

	if tx.Currency != "" {
		props[PropCurrency] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: tx.Currency},
		}
	}

	if tx.Category != nil {
		props[PropCategory] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(*tx.Category)},
		}
	}

	return props
}

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: s},
		},
	}
}

// extractInternalID extracts the internal id from a Notion page's properties.
// Returns empty string if not found.
func extractInternalID(page notionapi.Page) string {
	if prop, ok := page.Properties[PropInternalID]; ok {
		if rt, ok := prop.(*notionapi.RichTextProperty); ok {
			if len(rt.RichText) > 0 {
				return rt.RichText[0].PlainText
			}
		}
	}
	return ""
}
