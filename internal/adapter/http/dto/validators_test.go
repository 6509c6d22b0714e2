package dto

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- SanitizeStruct tests ---

func TestSanitizeStruct_TrimsWhitespace(t *testing.T) {
	req := CreateWithdrawalRequest{
		AmountUSD: " 150.00 ",
		Currency:  " BTC ",
		Pin:       " 1234 ",
	}
	SanitizeStruct(&req)

	assert.Equal(t, "150.00", req.AmountUSD)
	assert.Equal(t, "BTC", req.Currency)
	assert.Equal(t, "1234", req.Pin)
}

func TestSanitizeStruct_EscapesHTML(t *testing.T) {
	req := ReasonRequest{Reason: "funds <script>alert('x')</script> missing"}
	SanitizeStruct(&req)

	assert.Contains(t, req.Reason, "&lt;script&gt;")
	assert.NotContains(t, req.Reason, "<script>")
}

func TestSanitizeStruct_HandlesPointerString(t *testing.T) {
	ref := "  0xabc123  "
	req := CreateInvestmentRequest{PlanID: "p", AmountUSD: "100", Currency: "BTC", UserTxRef: &ref}
	SanitizeStruct(&req)

	assert.Equal(t, "0xabc123", *req.UserTxRef)
}

func TestSanitizeStruct_NilPointerIsNoOp(t *testing.T) {
	req := CreateInvestmentRequest{PlanID: "p"}
	SanitizeStruct(&req)
	assert.Nil(t, req.UserTxRef)
}

func TestSanitizeStruct_NonPointerIsNoOp(t *testing.T) {
	s := "hello"
	SanitizeStruct(s) // should not panic
}

// --- Custom Validator tests ---

func TestSafeID(t *testing.T) {
	valid := []string{"ref-001", "REF_002", "a.b.c", "0x9f86d081884c7d65", "bc1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh", "tx:42"}
	for _, tc := range valid {
		assert.True(t, safeStringRe.MatchString(tc), "expected valid: %s", tc)
	}

	invalid := []string{"ref 001", "ref<001>", "ref;DROP", "", "ref\n001"}
	for _, tc := range invalid {
		assert.False(t, safeStringRe.MatchString(tc), "expected invalid: %s", tc)
	}
}

func TestDecimalString(t *testing.T) {
	tests := []struct {
		amount string
		valid  bool
	}{
		{"1000", true},
		{"1000.50", true},
		{"0.02", true},
		{"-5", true}, // sign is a service-level rule
		{"1e3", false},
		{"abc", false},
		{"1,000", false},
	}

	for _, tc := range tests {
		t.Run(tc.amount, func(t *testing.T) {
			err := binding.Validator.ValidateStruct(&CreateWithdrawalRequest{
				AmountUSD: tc.amount,
				Currency:  "BTC",
				Pin:       "1234",
			})
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestCreateInvestmentRequest_Binding(t *testing.T) {
	ok := CreateInvestmentRequest{
		PlanID:    "7f1c6f34-4c59-4a1f-9d0e-2b7f3c1a0001",
		AmountUSD: "1000",
		Currency:  "BTC",
	}
	require.NoError(t, binding.Validator.ValidateStruct(&ok))

	bad := ok
	bad.PlanID = "basic"
	assert.Error(t, binding.Validator.ValidateStruct(&bad))

	bad = ok
	bad.Currency = "B-T-C"
	assert.Error(t, binding.Validator.ValidateStruct(&bad))
}

func TestParseDecimal(t *testing.T) {
	d, err := ParseDecimal(" 210.00 ")
	require.NoError(t, err)
	assert.Equal(t, "210", d.String())

	_, err = ParseDecimal("ten")
	assert.Error(t, err)
}
