package node

import (
	technostore "github.com/technostore/technostore/go"
)

// wireHooks feeds store outcomes into the node's logs and metrics.
func (n *Node) wireHooks() {
	n.store.
		OnAfterPurchase(func(c technostore.PurchaseResultContext) error {
			n.metrics.purchases.Inc()
			n.updateInventory(c.Receipt.Product)
			log.Infow("product bought",
				"product", c.Receipt.Product,
				"buyer", c.Receipt.Buyer.Hex(),
				"amount", c.Receipt.Amount.String(),
				"height", c.Receipt.Height,
			)
			return nil
		}).
		OnPurchaseFailure(func(c technostore.PurchaseFailureContext) error {
			code := technostore.ErrorCode(c.Error)
			n.metrics.failures.WithLabelValues("buyProduct", code).Inc()
			log.Warnw("purchase failed", "buyer", c.Buyer.Hex(), "index", c.Index, "code", code, "error", c.Error)
			return nil
		}).
		OnAfterRefund(func(c technostore.RefundResultContext) error {
			n.metrics.refunds.Inc()
			n.updateInventory(c.Receipt.Product)
			log.Infow("product refunded",
				"product", c.Receipt.Product,
				"buyer", c.Receipt.Buyer.Hex(),
				"amount", c.Receipt.Amount.String(),
				"purchasedAt", c.Receipt.PurchasedAt,
				"height", c.Receipt.Height,
			)
			return nil
		}).
		OnRefundFailure(func(c technostore.RefundFailureContext) error {
			code := technostore.ErrorCode(c.Error)
			n.metrics.failures.WithLabelValues("refundProduct", code).Inc()
			log.Warnw("refund failed", "buyer", c.Buyer.Hex(), "index", c.Index, "code", code, "error", c.Error)
			return nil
		})
}

func (n *Node) updateInventory(name string) {
	if q, err := n.store.QuantityOf(name); err == nil {
		n.metrics.inventory.WithLabelValues(name).Set(float64(q))
	}
}
