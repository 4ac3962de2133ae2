package broker

import (
	"fmt"
	"time"

	extErrors "github.com/pkg/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const contentType = "application/x-protobuf"

// Marshal encodes n as a protobuf Struct
func (n *Notification) Marshal() ([]byte, error) {
	st, err := structpb.NewStruct(map[string]interface{}{
		"type":           n.Type,
		"eventId":        n.EventID,
		"userId":         n.UserID,
		"customerId":     n.CustomerID,
		"subscriptionId": n.SubscriptionID,
		"invoiceId":      n.InvoiceID,
		"status":         n.Status,
		"occurredAt":     n.OccurredAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot build notification struct")
	}
	return proto.Marshal(st)
}

// Unmarshal decodes a notification encoded by Marshal
func (n *Notification) Unmarshal(b []byte) error {
	var st structpb.Struct
	if err := proto.Unmarshal(b, &st); err != nil {
		return extErrors.Wrap(err, "Cannot decode notification")
	}
	fields := st.GetFields()
	str := func(key string) string {
		return fields[key].GetStringValue()
	}
	if str("type") == "" {
		return fmt.Errorf("notification has no type")
	}
	*n = Notification{
		Type:           str("type"),
		EventID:        str("eventId"),
		UserID:         str("userId"),
		CustomerID:     str("customerId"),
		SubscriptionID: str("subscriptionId"),
		InvoiceID:      str("invoiceId"),
		Status:         str("status"),
	}
	if at := str("occurredAt"); at != "" {
		t, err := time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return extErrors.Wrap(err, "Invalid occurredAt in notification")
		}
		n.OccurredAt = t
	}
	return nil
}
