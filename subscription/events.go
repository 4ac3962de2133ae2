package subscription

// EventType is the closed set of Stripe events the reconciler acts on
type EventType int

// Defining the recognized events. EventUnknown covers every other tag.
const (
	EventUnknown EventType = iota
	EventCheckoutCompleted
	EventSubscriptionUpdated
	EventSubscriptionDeleted
	EventInvoicePaymentSucceeded
	EventInvoicePaymentFailed
)

var eventTags = map[string]EventType{
	"checkout.session.completed":    EventCheckoutCompleted,
	"customer.subscription.updated": EventSubscriptionUpdated,
	"customer.subscription.deleted": EventSubscriptionDeleted,
	"invoice.payment_succeeded":     EventInvoicePaymentSucceeded,
	"invoice.payment_failed":        EventInvoicePaymentFailed,
}

// ParseEventType maps a Stripe event tag to an EventType
func ParseEventType(tag string) EventType {
	if t, ok := eventTags[tag]; ok {
		return t
	}
	return EventUnknown
}

func (t EventType) String() string {
	for tag, v := range eventTags {
		if v == t {
			return tag
		}
	}
	return "unknown"
}
