package subscription

// PlanType is the plan a user subscribes to
type PlanType string

// Defining the plans available for purchase
const (
	PlanMonthly PlanType = "monthly"
	PlanAnnual  PlanType = "annual"
)

// Valid reports whether p is one of the plans available for purchase
func (p PlanType) Valid() bool {
	switch p {
	case PlanMonthly, PlanAnnual:
		return true
	}
	return false
}

// Status is the lifecycle status of a subscription. Values other than the ones
// below come verbatim from Stripe and are stored as is.
type Status string

// Defining the statuses this service sets or checks itself
const (
	StatusActive   Status = "active"
	StatusCanceled Status = "canceled"
	StatusPastDue  Status = "past_due"
	StatusExpired  Status = "expired"
)

// Metadata keys attached to checkout sessions and subscriptions on Stripe
const (
	metadataUserID   = "userId"
	metadataPlanType = "planType"
)
