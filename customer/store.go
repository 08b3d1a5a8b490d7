package customer

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Store is the persistence contract for customer records. Implementations
// must serialize writes per customer id so overlapping sessions cannot lose
// updates, and must keep AddComplaint atomic: complaint text, ticket id and
// the open resolution status land together or not at all.
type Store interface {
	// Get returns a snapshot of the record, or ErrNotFound.
	Get(ctx context.Context, customerID string) (Record, error)
	// Update sets one mutable field. Identity fields return ErrImmutableField.
	Update(ctx context.Context, customerID string, field string, value any) error
	// AddComplaint files a complaint and returns the new ticket id.
	AddComplaint(ctx context.Context, customerID string, complaint string) (string, error)
	// AppendConversation appends a rendered transcript to the record history.
	AppendConversation(ctx context.Context, customerID string, transcript string) error
	// RandomID picks any customer id, for callers that dial without a target.
	RandomID(ctx context.Context) (string, error)
}

// newTicketID builds a complaint ticket id: COMP + first 8 uuid chars,
// uppercased. Collisions are rechecked by the caller against existing ids.
func newTicketID() string {
	return "COMP" + strings.ToUpper(uuid.NewString()[:8])
}

// SeedRecords is the bootstrap customer table used when a backing store is
// empty or missing.
func SeedRecords() []Record {
	return []Record{
		{
			CustomerID:    "CUST001",
			Name:          "Alice Johnson",
			Products:      []string{"Organic Apples", "Whole Wheat Bread"},
			OrderID:       "ORD1001",
			Location:      "New York, NY",
			Price:         35.50,
			PaidStatus:    PaidStatusPaid,
			PaymentMethod: "credit_card",
			OrderStatus:   "delivered",
		},
		{
			CustomerID:    "CUST002",
			Name:          "Bob Williams",
			Products:      []string{"Almond Milk", "Granola Bars"},
			OrderID:       "ORD1002",
			Location:      "Los Angeles, CA",
			Price:         22.00,
			PaidStatus:    PaidStatusUnpaid,
			PaymentMethod: "paypal",
			OrderStatus:   "shipped",
		},
		{
			CustomerID:    "CUST003",
			Name:          "Charlie Brown",
			Products:      []string{"Greek Yogurt", "Fresh Berries"},
			OrderID:       "ORD1003",
			Location:      "Chicago, IL",
			Price:         15.75,
			PaidStatus:    PaidStatusPaid,
			PaymentMethod: "debit_card",
			OrderStatus:   "delivered",
		},
		{
			CustomerID:    "CUST004",
			Name:          "Diana Miller",
			Products:      []string{"Chicken Breast", "Organic Broccoli"},
			OrderID:       "ORD1004",
			Location:      "Houston, TX",
			Price:         45.00,
			PaidStatus:    PaidStatusPaid,
			PaymentMethod: "credit_card",
			OrderStatus:   "delivered",
		},
		{
			CustomerID:    "CUST005",
			Name:          "Ethan Davis",
			Products:      []string{"Pasta", "Tomato Sauce", "Parmesan Cheese"},
			OrderID:       "ORD1005",
			Location:      "Phoenix, AZ",
			Price:         12.50,
			PaidStatus:    PaidStatusUnpaid,
			PaymentMethod: "cash_on_delivery",
			OrderStatus:   "processing",
		},
	}
}
