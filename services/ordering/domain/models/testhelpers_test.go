package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validAddress(t *testing.T) Address {
	t.Helper()
	a, err := NewAddress("1 Main St", "Redmond", "WA", "US", "98052")
	require.NoError(t, err)
	return a
}

func validPayment(t *testing.T) PaymentMethod {
	t.Helper()
	p, err := NewPaymentMethod(1, "4012888888881881", "535", "Alice Buyer", time.Now().AddDate(2, 0, 0))
	require.NoError(t, err)
	return p
}

func validOrder(t *testing.T) *Order {
	t.Helper()
	o, err := NewOrder("U1", "Alice", validAddress(t), validPayment(t))
	require.NoError(t, err)
	return o
}
