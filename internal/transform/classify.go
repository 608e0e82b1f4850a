package transform

import (
	"strings"

	"github.com/dvloznov/bank-sync/internal/domain"
)

// accountClasses maps normalized upstream account-type vocabulary to a class.
var accountClasses = map[string]domain.AccountClass{
	"depository":      domain.ClassDepository,
	"checking":        domain.ClassDepository,
	"savings":         domain.ClassDepository,
	"current":         domain.ClassDepository,
	"cash":            domain.ClassDepository,
	"credit":          domain.ClassCredit,
	"credit_card":     domain.ClassCredit,
	"other_asset":     domain.ClassOtherAsset,
	"investment":      domain.ClassOtherAsset,
	"brokerage":       domain.ClassOtherAsset,
	"loan":            domain.ClassLoan,
	"mortgage":        domain.ClassLoan,
	"student":         domain.ClassLoan,
	"other_liability": domain.ClassOtherLiability,
}

// Classify maps a free-form account type to the closed set of account
// classes. Unrecognized input, including the empty string, is ClassUndefined.
func Classify(accountType string) domain.AccountClass {
	key := strings.ToLower(strings.TrimSpace(accountType))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	if class, ok := accountClasses[key]; ok {
		return class
	}
	return domain.ClassUndefined
}
