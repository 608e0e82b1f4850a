package transform

import (
	"testing"

	"github.com/dvloznov/bank-sync/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		in   string
		want domain.AccountClass
	}{
		{"depository", domain.ClassDepository},
		{"Checking", domain.ClassDepository},
		{" savings ", domain.ClassDepository},
		{"credit", domain.ClassCredit},
		{"credit-card", domain.ClassCredit},
		{"Credit Card", domain.ClassCredit},
		{"other_asset", domain.ClassOtherAsset},
		{"investment", domain.ClassOtherAsset},
		{"loan", domain.ClassLoan},
		{"mortgage", domain.ClassLoan},
		{"other_liability", domain.ClassOtherLiability},
		{"OTHER LIABILITY", domain.ClassOtherLiability},
		{"", domain.ClassUndefined},
		{"crypto", domain.ClassUndefined},
		{"undefined", domain.ClassUndefined},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.in))
		})
	}
}

func TestClassify_IsTotal(t *testing.T) {
	valid := map[domain.AccountClass]bool{
		domain.ClassDepository:     true,
		domain.ClassCredit:         true,
		domain.ClassOtherAsset:     true,
		domain.ClassLoan:           true,
		domain.ClassOtherLiability: true,
		domain.ClassUndefined:      true,
	}
	inputs := []string{"", " ", "\x00", "💳", "depository\n", "DEPOSITORY", "loan-loan", "a very long account type name with words"}
	for _, in := range inputs {
		got := Classify(in)
		assert.True(t, valid[got], "Classify(%q) = %q is outside the closed set", in, got)
		assert.Equal(t, got, Classify(in), "Classify(%q) is not deterministic", in)
	}
}
