package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/payments/types"
)

func TestLog(t *testing.T) {
	l := NewLog()
	_, ok := l.Last()
	assert.False(t, ok)

	l.Emit(types.Event{Kind: types.EventPaymentCreated, PaymentID: 1})
	l.Emit(types.Event{Kind: types.EventPaymentCreated, PaymentID: 2})
	l.Emit(types.Event{Kind: types.EventPaymentReleased, PaymentID: 1})

	assert.Equal(t, 3, l.Len())
	assert.Equal(t, []types.EventKind{
		types.EventPaymentCreated, types.EventPaymentCreated, types.EventPaymentReleased,
	}, l.Kinds())

	last, ok := l.Last()
	require.True(t, ok)
	assert.Equal(t, types.EventPaymentReleased, last.Kind)

	forOne := l.ForPayment(1)
	require.Len(t, forOne, 2)
	assert.Equal(t, types.EventPaymentReleased, forOne[1].Kind)

	all := l.All()
	all[0].Kind = "mutated"
	assert.Equal(t, types.EventPaymentCreated, l.All()[0].Kind)
}

func TestMulti(t *testing.T) {
	a, b := NewLog(), NewLog()
	s := Multi(a, b, Discard)
	s.Emit(types.Event{Kind: types.EventPaymentCancelled})

	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 1, b.Len())
}
