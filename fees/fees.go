// Package fees computes the fees charged on each side of a payment.
package fees

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/vitwit/payments/types"
	"github.com/vitwit/payments/utils"
)

// Handler enumerates the fees of a payment. It is called once per payment
// creation and must be deterministic in its inputs.
type Handler interface {
	ApplyFees(asset types.AssetID, sender, beneficiary types.AccountID, amount types.Balance, remark string) (types.Fees, error)
}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc func(asset types.AssetID, sender, beneficiary types.AccountID, amount types.Balance, remark string) (types.Fees, error)

func (f HandlerFunc) ApplyFees(asset types.AssetID, sender, beneficiary types.AccountID, amount types.Balance, remark string) (types.Fees, error) {
	return f(asset, sender, beneficiary, amount, remark)
}

// None charges no fees.
type None struct{}

func (None) ApplyFees(types.AssetID, types.AccountID, types.AccountID, types.Balance, string) (types.Fees, error) {
	return types.Fees{}, nil
}

// Rule charges Percent of the amount plus Fixed to one side of a payment.
type Rule struct {
	Recipient types.AccountID `json:"recipient" validate:"required"`
	Percent   decimal.Decimal `json:"percent"`
	Fixed     types.Balance   `json:"fixed"`
	Mandatory bool            `json:"mandatory"`
	// Assets restricts the rule to the listed assets; empty applies to all.
	Assets []types.AssetID `json:"assets,omitempty"`
}

func (r Rule) appliesTo(asset types.AssetID) bool {
	if len(r.Assets) == 0 {
		return true
	}
	for _, a := range r.Assets {
		if a == asset {
			return true
		}
	}
	return false
}

func (r Rule) amount(amount types.Balance) (types.Balance, error) {
	share, err := utils.PercentOf(amount, r.Percent)
	if err != nil {
		return 0, err
	}
	return utils.CheckedAdd(share, r.Fixed)
}

// Policy is a rule-based Handler. Accounts on the discount list pay only the
// mandatory fees on their own side.
type Policy struct {
	senderRules      []Rule
	beneficiaryRules []Rule
	discounts        map[types.AccountID]struct{}
}

// PolicyConfig describes a Policy.
type PolicyConfig struct {
	SenderRules      []Rule            `json:"senderRules" validate:"dive"`
	BeneficiaryRules []Rule            `json:"beneficiaryRules" validate:"dive"`
	Discounts        []types.AccountID `json:"discounts"`
}

// NewPolicy builds a Policy, rejecting more than maxDiscounts discount accounts
// and more than maxFees rules on either side.
func NewPolicy(cfg PolicyConfig, maxFees, maxDiscounts int) (*Policy, error) {
	if err := utils.ValidateStruct(cfg); err != nil {
		return nil, fmt.Errorf("fee policy: %w", err)
	}
	if len(cfg.Discounts) > maxDiscounts {
		return nil, fmt.Errorf("fee policy: %d discount accounts exceed limit of %d", len(cfg.Discounts), maxDiscounts)
	}
	if len(cfg.SenderRules) > maxFees || len(cfg.BeneficiaryRules) > maxFees {
		return nil, fmt.Errorf("fee policy: more than %d rules on one side", maxFees)
	}
	for _, rules := range [][]Rule{cfg.SenderRules, cfg.BeneficiaryRules} {
		for _, r := range rules {
			if err := utils.ValidatePercentage(r.Percent); err != nil {
				return nil, fmt.Errorf("fee policy: rule for %s: %w", r.Recipient, err)
			}
		}
	}

	p := &Policy{
		senderRules:      append([]Rule(nil), cfg.SenderRules...),
		beneficiaryRules: append([]Rule(nil), cfg.BeneficiaryRules...),
		discounts:        make(map[types.AccountID]struct{}, len(cfg.Discounts)),
	}
	for _, who := range cfg.Discounts {
		p.discounts[who] = struct{}{}
	}
	return p, nil
}

func (p *Policy) ApplyFees(asset types.AssetID, sender, beneficiary types.AccountID, amount types.Balance, _ string) (types.Fees, error) {
	senderPays, err := p.side(p.senderRules, asset, sender, amount)
	if err != nil {
		return types.Fees{}, err
	}
	beneficiaryPays, err := p.side(p.beneficiaryRules, asset, beneficiary, amount)
	if err != nil {
		return types.Fees{}, err
	}
	return types.Fees{SenderPays: senderPays, BeneficiaryPays: beneficiaryPays}, nil
}

func (p *Policy) side(rules []Rule, asset types.AssetID, payer types.AccountID, amount types.Balance) ([]types.Fee, error) {
	_, discounted := p.discounts[payer]

	var out []types.Fee
	for _, r := range rules {
		if !r.appliesTo(asset) || (discounted && !r.Mandatory) {
			continue
		}
		fee, err := r.amount(amount)
		if err != nil {
			return nil, err
		}
		if fee == 0 {
			continue
		}
		out = append(out, types.Fee{Recipient: r.Recipient, Amount: fee, Mandatory: r.Mandatory})
	}
	return out, nil
}
