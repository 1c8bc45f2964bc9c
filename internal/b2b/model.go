package b2b

import "time"

// Status is a distributor order's lifecycle state.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusAccepted  Status = "ACCEPTED"
	StatusPacked    Status = "PACKED"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
	StatusRejected  Status = "REJECTED"
	StatusCancelled Status = "CANCELLED"
)

// IsValid checks if the status is a known lifecycle state.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusPacked, StatusShipped,
		StatusDelivered, StatusRejected, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusDelivered, StatusRejected, StatusCancelled:
		return true
	default:
		return false
	}
}

var transitions = map[Status][]Status{
	StatusPending:  {StatusAccepted, StatusRejected, StatusCancelled},
	StatusAccepted: {StatusPacked},
	StatusPacked:   {StatusShipped},
	StatusShipped:  {StatusDelivered},
}

// CanTransitionTo enforces the forward-only lifecycle. No skips, no
// backward moves.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Order is a pharmacy's purchase order against a linked distributor.
type Order struct {
	ID            string          `json:"id"`
	OrderNumber   string          `json:"order_number"`
	PharmacyID    string          `json:"pharmacy_id"`
	DistributorID string          `json:"distributor_id"`
	Status        Status          `json:"status"`
	Lines         []Line          `json:"lines"`
	SubTotal      float64         `json:"sub_total"`
	GrandTotal    float64         `json:"grand_total"`
	AssigneeID    *string         `json:"assignee_id,omitempty"`
	DeliveryOTP   string          `json:"-"`
	Notes         string          `json:"notes,omitempty"`
	Timeline      []TimelineEntry `json:"timeline,omitempty"`
	CreatedBy     string          `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Line is one requested product. Lots are bound at PACKED when the
// distributor's stock is committed.
type Line struct {
	ID        string  `json:"id"`
	ProductID string  `json:"product_id"`
	Quantity  int64   `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	LineTotal float64 `json:"line_total"`
	Lots      []Lot   `json:"lots,omitempty"`
}

// Lot records which distributor batch filled (part of) a line.
type Lot struct {
	BatchID     string    `json:"batch_id"`
	BatchNumber string    `json:"batch_number"`
	ExpiryDate  time.Time `json:"expiry_date"`
	Quantity    int64     `json:"quantity"`
}

// TimelineEntry is one append-only history row. Entries are never
// updated or removed.
type TimelineEntry struct {
	ID        int64     `json:"id"`
	OrderID   string    `json:"order_id"`
	Status    Status    `json:"status"`
	ActorID   string    `json:"actor_id"`
	Remark    string    `json:"remark,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ListFilters narrows order listings for either side of the link.
type ListFilters struct {
	Status Status
	Limit  int
	Offset int
}
