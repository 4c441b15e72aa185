package order

// Status is the raw marketplace order status
type Status string

const (
	StatusUnpaid      Status = "UNPAID"
	StatusReadyToShip Status = "READY_TO_SHIP"
	StatusProcessed   Status = "PROCESSED"
	StatusShipped     Status = "SHIPPED"
	StatusCompleted   Status = "COMPLETED"
	StatusCancelled   Status = "CANCELLED"
	StatusInvoicePend Status = "INVOICE_PENDING"
)

// ActionStatus is the internal workflow state derived from Status
type ActionStatus string

const (
	ActionOrder         ActionStatus = "ORDER"
	ActionReadyToPrint  ActionStatus = "READY_TO_PRINT"
	ActionExported      ActionStatus = "EXPORTED"
	ActionRequestCancel ActionStatus = "REQUEST_CANCEL"
)

// OtherStatusNone is the default other_status value
const OtherStatusNone = "NONE"

// FulfillmentFlag says whether the seller or the marketplace fulfills
type FulfillmentFlag string

const (
	FulfilledBySeller FulfillmentFlag = "SELLER"
	FulfilledByShopee FulfillmentFlag = "SHOPEE"
)

var actionStatusTable = map[Status]ActionStatus{
	StatusReadyToShip: ActionReadyToPrint,
	StatusShipped:     ActionExported,
	StatusCancelled:   ActionRequestCancel,
}

// MapActionStatus derives the workflow state for a marketplace status.
// Unknown statuses fall back to ORDER; the second return value is false
// when the fallback was taken so callers can warn.
func MapActionStatus(s Status) (ActionStatus, bool) {
	if a, ok := actionStatusTable[s]; ok {
		return a, true
	}
	switch s {
	case StatusUnpaid, StatusProcessed, StatusCompleted, StatusInvoicePend:
		return ActionOrder, true
	}
	return ActionOrder, false
}

// NormalizeFulfillmentFlag maps the wire value to the internal enum
func NormalizeFulfillmentFlag(wire string) FulfillmentFlag {
	switch wire {
	case "fulfilled_by_shopee":
		return FulfilledByShopee
	case "fulfilled_by_cb_seller", "fulfilled_by_local_seller":
		return FulfilledBySeller
	}
	return FulfilledBySeller
}

// TrackingEligibleStatuses are the states in which the marketplace may
// already have a tracking number for an order.
var TrackingEligibleStatuses = []Status{StatusProcessed, StatusShipped, StatusCompleted}

// TrackingEligible reports whether the marketplace may already have a
// tracking number for an order in this state.
func TrackingEligible(s Status) bool {
	switch s {
	case StatusProcessed, StatusShipped, StatusCompleted:
		return true
	}
	return false
}
