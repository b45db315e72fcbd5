package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaymentError(t *testing.T) {
	cause := errors.New("disk full")
	inner := WrapError(ErrStorage, cause, "store payment %d", 4)
	outer := WrapError(ErrHoldFailed, inner, "hold")
	wrapped := fmt.Errorf("pay: %w", outer)

	assert.Equal(t, "STORAGE_ERROR: store payment 4: disk full", inner.Error())
	assert.True(t, IsCode(wrapped, ErrHoldFailed))
	assert.True(t, IsCode(wrapped, ErrStorage))
	assert.False(t, IsCode(wrapped, ErrMathError))
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, ErrHoldFailed, CodeOf(wrapped))
	assert.Empty(t, CodeOf(cause))
}

func TestFeesTotal(t *testing.T) {
	f := Fees{
		SenderPays:      []Fee{{Recipient: "ops", Amount: 2}, {Recipient: "system", Amount: 3, Mandatory: true}},
		BeneficiaryPays: []Fee{{Recipient: "ops", Amount: ^Balance(0)}, {Recipient: "system", Amount: 1}},
	}
	total, err := f.SenderTotal()
	assert.NoError(t, err)
	assert.Equal(t, Balance(5), total)

	_, err = f.BeneficiaryTotal()
	assert.True(t, IsCode(err, ErrBalanceOverflow))
}

func TestPaymentClone(t *testing.T) {
	p := &Payment{Amount: 20, Fees: Fees{SenderPays: []Fee{{Recipient: "ops", Amount: 2}}}}
	c := p.Clone()
	c.Fees.SenderPays[0].Amount = 9
	assert.Equal(t, Balance(2), p.Fees.SenderPays[0].Amount)
	assert.Nil(t, (*Payment)(nil).Clone())
}
