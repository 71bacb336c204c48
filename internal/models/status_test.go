package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"bookstore-orders/internal/models"
)

func TestParseOrderStatus(t *testing.T) {
	status, err := models.ParseOrderStatus("PENDING")
	assert.NoError(t, err)
	assert.Equal(t, models.OrderPending, status)

	status, err = models.ParseOrderStatus("cancel_requested")
	assert.NoError(t, err)
	assert.Equal(t, models.OrderCancelRequested, status)

	_, err = models.ParseOrderStatus("shipped_back")
	assert.Error(t, err)
}

func TestCanTransition(t *testing.T) {
	// User cancellation is only allowed before shipping.
	assert.True(t, models.CanTransition(models.EventUserCancel, models.OrderPending))
	assert.True(t, models.CanTransition(models.EventUserCancel, models.OrderProcessing))
	assert.False(t, models.CanTransition(models.EventUserCancel, models.OrderShipped))
	assert.False(t, models.CanTransition(models.EventUserCancel, models.OrderDelivered))
	assert.False(t, models.CanTransition(models.EventUserCancel, models.OrderCancelled))

	// Delivery confirmation requires the order to be in transit.
	assert.True(t, models.CanTransition(models.EventConfirmDelivery, models.OrderShipped))
	assert.False(t, models.CanTransition(models.EventConfirmDelivery, models.OrderPending))
	assert.False(t, models.CanTransition(models.EventConfirmDelivery, models.OrderDelivered))

	// Returns can be requested while shipped or after delivery.
	assert.True(t, models.CanTransition(models.EventRequestReturn, models.OrderShipped))
	assert.True(t, models.CanTransition(models.EventRequestReturn, models.OrderDelivered))
	assert.False(t, models.CanTransition(models.EventRequestReturn, models.OrderPending))
	assert.False(t, models.CanTransition(models.EventRequestReturn, models.OrderReturned))
}

func TestHoldsStock(t *testing.T) {
	holding := map[models.OrderStatus]bool{
		models.OrderPending:    true,
		models.OrderProcessing: true,
		models.OrderShipped:    true,
	}

	for _, status := range models.AllOrderStatuses {
		assert.Equal(t, holding[status], status.HoldsStock(), "status %s", status)
	}
}

func TestTerminal(t *testing.T) {
	assert.True(t, models.OrderCancelled.Terminal())
	assert.True(t, models.OrderReturned.Terminal())
	assert.True(t, models.OrderFailed.Terminal())
	assert.False(t, models.OrderDelivered.Terminal())
	assert.False(t, models.OrderPending.Terminal())
}
