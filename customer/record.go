package customer

import (
	"errors"
	"fmt"
	"strings"
)

type PaidStatus string

const (
	PaidStatusPaid     PaidStatus = "paid"
	PaidStatusUnpaid   PaidStatus = "unpaid"
	PaidStatusRefunded PaidStatus = "refunded"
)

type ResolutionStatus string

const (
	ResolutionOpen      ResolutionStatus = "open"
	ResolutionResolved  ResolutionStatus = "resolved"
	ResolutionEscalated ResolutionStatus = "escalated"
)

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Record is one customer row in the follow-up table. CustomerID is the
// immutable identity; everything else is mutated only through Store
// operations.
//
// Invariant: ComplaintID != "" implies Complaint != "".
type Record struct {
	CustomerID          string           `json:"customer_id"`
	Name                string           `json:"name"`
	Products            []string         `json:"products"`
	OrderID             string           `json:"order_id"`
	Location            string           `json:"location"`
	Price               float64          `json:"price"`
	PaidStatus          PaidStatus       `json:"paid_status"`
	PaymentMethod       string           `json:"payment_method"`
	OrderStatus         string           `json:"order_status"`
	Complaint           string           `json:"complaint,omitempty"`
	ComplaintID         string           `json:"complaint_id,omitempty"`
	Resolution          ResolutionStatus `json:"resolution_status,omitempty"`
	Sentiment           Sentiment        `json:"sentiment,omitempty"`
	Review              string           `json:"review,omitempty"`
	LastContact         string           `json:"last_contact,omitempty"`
	ConversationHistory []string         `json:"conversation_history"`
}

var (
	ErrNotFound       = errors.New("customer not found")
	ErrCorruptStore   = errors.New("customer store corrupt")
	ErrImmutableField = errors.New("field is immutable")
	ErrUnknownField   = errors.New("unknown field")
	ErrInvalidValue   = errors.New("invalid field value")
)

// Field names accepted by Store.Update. Identity and complaint fields are
// absent on purpose: identity never changes, complaints go through
// AddComplaint so the text/ticket invariant holds.
const (
	FieldPaidStatus    = "paid_status"
	FieldPaymentMethod = "payment_method"
	FieldOrderStatus   = "order_status"
	FieldResolution    = "resolution_status"
	FieldSentiment     = "sentiment"
	FieldReview        = "review"
	FieldLastContact   = "last_contact"
)

var immutableFields = map[string]struct{}{
	"customer_id":  {},
	"name":         {},
	"order_id":     {},
	"products":     {},
	"complaint":    {},
	"complaint_id": {},
}

// Validate checks internal consistency.
func (r *Record) Validate() error {
	if strings.TrimSpace(r.CustomerID) == "" {
		return fmt.Errorf("%w: customer_id is empty", ErrInvalidValue)
	}
	if r.Price < 0 {
		return fmt.Errorf("%w: price is negative", ErrInvalidValue)
	}
	if r.ComplaintID != "" && strings.TrimSpace(r.Complaint) == "" {
		return fmt.Errorf("%w: complaint_id without complaint text", ErrInvalidValue)
	}
	return nil
}

// ApplyUpdate sets one mutable field, rejecting identity fields and values
// outside the declared enums.
func (r *Record) ApplyUpdate(field string, value any) error {
	name := strings.ToLower(strings.TrimSpace(field))
	if _, ok := immutableFields[name]; ok {
		return fmt.Errorf("%w: %s", ErrImmutableField, name)
	}

	str, ok := value.(string)
	if !ok {
		return fmt.Errorf("%w: field %s expects a string, got %T", ErrInvalidValue, name, value)
	}
	str = strings.TrimSpace(str)

	switch name {
	case FieldPaidStatus:
		switch PaidStatus(str) {
		case PaidStatusPaid, PaidStatusUnpaid, PaidStatusRefunded:
			r.PaidStatus = PaidStatus(str)
		default:
			return fmt.Errorf("%w: paid_status=%q", ErrInvalidValue, str)
		}
	case FieldPaymentMethod:
		r.PaymentMethod = str
	case FieldOrderStatus:
		r.OrderStatus = str
	case FieldResolution:
		switch ResolutionStatus(str) {
		case ResolutionOpen, ResolutionResolved, ResolutionEscalated:
			r.Resolution = ResolutionStatus(str)
		default:
			return fmt.Errorf("%w: resolution_status=%q", ErrInvalidValue, str)
		}
	case FieldSentiment:
		switch Sentiment(str) {
		case SentimentPositive, SentimentNeutral, SentimentNegative:
			r.Sentiment = Sentiment(str)
		default:
			return fmt.Errorf("%w: sentiment=%q", ErrInvalidValue, str)
		}
	case FieldReview:
		r.Review = str
	case FieldLastContact:
		r.LastContact = str
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	return nil
}

// Clone returns a deep copy so snapshots handed to callers cannot alias
// store-owned state.
func (r *Record) Clone() Record {
	cp := *r
	cp.Products = append([]string(nil), r.Products...)
	cp.ConversationHistory = append([]string(nil), r.ConversationHistory...)
	return cp
}
