package utils

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/vitwit/payments/types"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterAlias("percent", "gte=0,lte=100")
}

// ValidateStruct validates s using its struct tags.
func ValidateStruct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// ValidateAmount checks if an amount string is a valid non-negative decimal
func ValidateAmount(amount string) (*decimal.Decimal, error) {
	if amount == "" {
		return nil, types.NewError(types.ErrInvalidAmount, "amount cannot be empty")
	}

	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, types.WrapError(types.ErrInvalidAmount, err, "invalid amount format")
	}

	if dec.IsNegative() {
		return nil, types.NewError(types.ErrInvalidAmount, "amount cannot be negative")
	}

	return &dec, nil
}

// ValidatePercentage checks that p lies in [0, 100].
func ValidatePercentage(p decimal.Decimal) error {
	if p.IsNegative() || p.GreaterThan(hundred) {
		return fmt.Errorf("percentage %s must be between 0 and 100", p)
	}
	return nil
}

// ValidateRemark ensures a remark fits in maxLen bytes.
func ValidateRemark(remark string, maxLen int) error {
	if len(remark) > maxLen {
		return types.NewError(types.ErrRemarkTooLong, "remark is %d bytes, limit is %d", len(remark), maxLen)
	}
	return nil
}
