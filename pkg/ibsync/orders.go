package ibsync

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/conneroisu/ibsync/pkg/gwerrs"
	"github.com/conneroisu/ibsync/pkg/ibsync/events"
	"github.com/conneroisu/ibsync/pkg/ibsync/market"
)

// PlaceOrder submits an order and returns the order id assigned to it.
// Unlike the data operations, placement does not wait for an
// acknowledgement event; callers track the order with OrderStatus or
// OpenOrders. A transport write failure surfaces as an error, since a
// silently dropped order is not an acceptable degradation.
func (c *Client) PlaceOrder(ctx context.Context, contract market.Contract, order market.Order) (int64, error) {
	if !c.IsConnected() {
		return 0, gwerrs.NewClientError(
			gwerrs.ErrCodeNotConnected,
			"not connected to gateway",
			nil,
		)
	}

	orderID := c.orderIDs.Next()
	params := map[string]any{
		"order_id": orderID,
		"contract": contract,
		"order":    order,
	}

	if err := c.transport.Send(ctx, events.KindPlaceOrder, orderID, params); err != nil {
		return 0, gwerrs.WrapError(
			gwerrs.CategoryTransport,
			gwerrs.ErrCodeWriteFailed,
			"place order",
			err,
		)
	}

	c.log.WithFields(logrus.Fields{
		"order_id": orderID,
		"symbol":   contract.Symbol,
		"action":   order.Action,
		"quantity": order.TotalQuantity,
		"type":     order.OrderType,
	}).Info("order placed")

	return orderID, nil
}

// CancelOrder requests cancellation of a previously placed order.
// Cancellation is acknowledged asynchronously through order status
// events, not by this call.
func (c *Client) CancelOrder(ctx context.Context, orderID int64) error {
	if !c.IsConnected() {
		return gwerrs.NewClientError(
			gwerrs.ErrCodeNotConnected,
			"not connected to gateway",
			nil,
		)
	}

	params := map[string]any{"order_id": orderID}
	if err := c.transport.Send(ctx, events.KindCancelOrder, orderID, params); err != nil {
		return gwerrs.WrapError(
			gwerrs.CategoryTransport,
			gwerrs.ErrCodeWriteFailed,
			"cancel order",
			err,
		)
	}

	c.log.WithField("order_id", orderID).Info("order cancellation requested")

	return nil
}
