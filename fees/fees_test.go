package fees

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/payments/types"
)

func TestPolicy_PercentAndFixed(t *testing.T) {
	p, err := NewPolicy(PolicyConfig{
		SenderRules: []Rule{
			{Recipient: "ops", Percent: decimal.NewFromInt(1)},
			{Recipient: "system", Fixed: 3, Mandatory: true},
		},
		BeneficiaryRules: []Rule{
			{Recipient: "ops", Percent: decimal.NewFromInt(3), Fixed: 1},
		},
	}, 10, 0)
	require.NoError(t, err)

	fees, err := p.ApplyFees("usd", "alice", "bob", 250, "")
	require.NoError(t, err)

	assert.Equal(t, []types.Fee{
		{Recipient: "ops", Amount: 2},
		{Recipient: "system", Amount: 3, Mandatory: true},
	}, fees.SenderPays)
	// floor(250 * 3%) + 1
	assert.Equal(t, []types.Fee{{Recipient: "ops", Amount: 8}}, fees.BeneficiaryPays)
}

func TestPolicy_ZeroFeesAreDropped(t *testing.T) {
	p, err := NewPolicy(PolicyConfig{
		SenderRules: []Rule{{Recipient: "ops", Percent: decimal.NewFromInt(1)}},
	}, 10, 0)
	require.NoError(t, err)

	fees, err := p.ApplyFees("usd", "alice", "bob", 50, "")
	require.NoError(t, err)
	assert.Empty(t, fees.SenderPays)
}

func TestPolicy_DiscountWaivesOptionalFees(t *testing.T) {
	p, err := NewPolicy(PolicyConfig{
		SenderRules: []Rule{
			{Recipient: "ops", Fixed: 2},
			{Recipient: "system", Fixed: 3, Mandatory: true},
		},
		BeneficiaryRules: []Rule{{Recipient: "ops", Fixed: 3}},
		Discounts:        []types.AccountID{"treasury"},
	}, 10, 1)
	require.NoError(t, err)

	fees, err := p.ApplyFees("usd", "treasury", "bob", 20, "")
	require.NoError(t, err)
	assert.Equal(t, []types.Fee{{Recipient: "system", Amount: 3, Mandatory: true}}, fees.SenderPays)
	assert.Equal(t, []types.Fee{{Recipient: "ops", Amount: 3}}, fees.BeneficiaryPays)
}

func TestPolicy_AssetScopedRule(t *testing.T) {
	p, err := NewPolicy(PolicyConfig{
		SenderRules: []Rule{{Recipient: "ops", Fixed: 1, Assets: []types.AssetID{"eur"}}},
	}, 10, 0)
	require.NoError(t, err)

	usd, err := p.ApplyFees("usd", "alice", "bob", 20, "")
	require.NoError(t, err)
	assert.Empty(t, usd.SenderPays)

	eur, err := p.ApplyFees("eur", "alice", "bob", 20, "")
	require.NoError(t, err)
	assert.Len(t, eur.SenderPays, 1)
}

func TestNewPolicy_Rejects(t *testing.T) {
	tests := []struct {
		name string
		cfg  PolicyConfig
	}{
		{"missing recipient", PolicyConfig{SenderRules: []Rule{{Fixed: 1}}}},
		{"percent above 100", PolicyConfig{SenderRules: []Rule{{Recipient: "ops", Percent: decimal.NewFromInt(101)}}}},
		{"too many discounts", PolicyConfig{Discounts: []types.AccountID{"a", "b"}}},
		{"too many rules", PolicyConfig{BeneficiaryRules: []Rule{{Recipient: "a"}, {Recipient: "b"}, {Recipient: "c"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPolicy(tt.cfg, 2, 1)
			require.Error(t, err)
		})
	}
}

func TestNoneAndHandlerFunc(t *testing.T) {
	fees, err := None{}.ApplyFees("usd", "alice", "bob", 100, "")
	require.NoError(t, err)
	assert.Empty(t, fees.SenderPays)
	assert.Empty(t, fees.BeneficiaryPays)

	var calls int
	h := HandlerFunc(func(types.AssetID, types.AccountID, types.AccountID, types.Balance, string) (types.Fees, error) {
		calls++
		return types.Fees{}, nil
	})
	_, err = h.ApplyFees("usd", "alice", "bob", 1, "hi")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
