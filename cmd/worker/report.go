package main

import (
	"github.com/glowface/api/broker"

	"go.uber.org/zap"
)

func report(logger *zap.Logger, n *broker.Notification) {
	fields := []zap.Field{
		zap.String("EventID", n.EventID),
		zap.String("EventType", n.Type),
		zap.String("UserID", n.UserID),
		zap.String("CustomerID", n.CustomerID),
		zap.String("SubscriptionID", n.SubscriptionID),
		zap.Time("OccurredAt", n.OccurredAt),
	}
	if n.InvoiceID != "" {
		fields = append(fields, zap.String("InvoiceID", n.InvoiceID))
	}
	if n.Status != "" {
		fields = append(fields, zap.String("Status", n.Status))
	}

	switch n.Type {
	case "invoice.payment_failed":
		logger.Warn("Payment failed", fields...)
	case "customer.subscription.deleted":
		logger.Info("Subscription canceled", fields...)
	default:
		logger.Info("Billing notification", fields...)
	}
}
