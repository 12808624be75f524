package entities

import "time"

type ReturnStatus string

const (
	ReturnRequested ReturnStatus = "Requested"
	ReturnApproved  ReturnStatus = "Approved"
	ReturnRejected  ReturnStatus = "Rejected"
	ReturnPicked    ReturnStatus = "Picked"
	ReturnRefunded  ReturnStatus = "Refunded"
	ReturnCancelled ReturnStatus = "Cancelled"
)

var returnEdges = map[ReturnStatus][]ReturnStatus{
	ReturnRequested: {ReturnApproved, ReturnRejected, ReturnCancelled},
	ReturnApproved:  {ReturnPicked, ReturnCancelled},
	ReturnPicked:    {ReturnRefunded},
	ReturnRejected:  nil,
	ReturnRefunded:  nil,
	ReturnCancelled: nil,
}

func (s ReturnStatus) Valid() bool {
	_, ok := returnEdges[s]
	return ok
}

func (s ReturnStatus) CanTransition(to ReturnStatus) bool {
	for _, next := range returnEdges[s] {
		if next == to {
			return true
		}
	}
	return false
}

// ForcesOrderReturned reports whether reaching this status moves the parent
// order to Returned.
func (s ReturnStatus) ForcesOrderReturned() bool {
	return s == ReturnPicked || s == ReturnRefunded
}

type RefundStatus string

const (
	RefundPending   RefundStatus = "Pending"
	RefundInitiated RefundStatus = "Initiated"
	RefundSucceeded RefundStatus = "Succeeded"
	RefundFailed    RefundStatus = "Failed"
)

type ReturnItem struct {
	ProductID     string
	Name          string
	Category      string
	Image         string
	Price         int64
	OriginalPrice int64
	Quantity      int
}

// ReturnOrder is one request to return a subset of an order's items. An order
// may accumulate several over time, each progressing independently. Items and
// the pickup address are copied by value so later order edits cannot corrupt
// the historical record.
type ReturnOrder struct {
	ID      string
	OrderID string
	UserID  *string

	Reason   string
	Comment  string
	ImageURL string

	Items         []ReturnItem
	PickupAddress Address
	PickupAgentID *string

	Status       ReturnStatus
	RefundStatus RefundStatus

	RefundID            string
	RefundAmount        int64
	RefundFailureReason string

	RequestedAt time.Time
	ApprovedAt  *time.Time
	RejectedAt  *time.Time
	PickedAt    *time.Time
	RefundedAt  *time.Time
	CancelledAt *time.Time

	Version int64
}
