package customer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// PostgresConfig configures the Postgres-backed store.
type PostgresConfig struct {
	DSN string `envconfig:"DSN" split_words:"true" required:"true"`
}

type customerRow struct {
	bun.BaseModel `bun:"table:customers"`

	CustomerID          string   `bun:"customer_id,pk"`
	Name                string   `bun:"name"`
	Products            []string `bun:"products,array"`
	OrderID             string   `bun:"order_id"`
	Location            string   `bun:"location"`
	Price               float64  `bun:"price"`
	PaidStatus          string   `bun:"paid_status"`
	PaymentMethod       string   `bun:"payment_method"`
	OrderStatus         string   `bun:"order_status"`
	Complaint           string   `bun:"complaint"`
	ComplaintID         string   `bun:"complaint_id"`
	Resolution          string   `bun:"resolution_status"`
	Sentiment           string   `bun:"sentiment"`
	Review              string   `bun:"review"`
	LastContact         string   `bun:"last_contact"`
	ConversationHistory []string `bun:"conversation_history,array"`
}

func rowFromRecord(r Record) customerRow {
	return customerRow{
		CustomerID:          r.CustomerID,
		Name:                r.Name,
		Products:            r.Products,
		OrderID:             r.OrderID,
		Location:            r.Location,
		Price:               r.Price,
		PaidStatus:          string(r.PaidStatus),
		PaymentMethod:       r.PaymentMethod,
		OrderStatus:         r.OrderStatus,
		Complaint:           r.Complaint,
		ComplaintID:         r.ComplaintID,
		Resolution:          string(r.Resolution),
		Sentiment:           string(r.Sentiment),
		Review:              r.Review,
		LastContact:         r.LastContact,
		ConversationHistory: r.ConversationHistory,
	}
}

func (row customerRow) toRecord() Record {
	return Record{
		CustomerID:          row.CustomerID,
		Name:                row.Name,
		Products:            row.Products,
		OrderID:             row.OrderID,
		Location:            row.Location,
		Price:               row.Price,
		PaidStatus:          PaidStatus(row.PaidStatus),
		PaymentMethod:       row.PaymentMethod,
		OrderStatus:         row.OrderStatus,
		Complaint:           row.Complaint,
		ComplaintID:         row.ComplaintID,
		Resolution:          ResolutionStatus(row.Resolution),
		Sentiment:           Sentiment(row.Sentiment),
		Review:              row.Review,
		LastContact:         row.LastContact,
		ConversationHistory: row.ConversationHistory,
	}
}

// BunStore keeps customer records in Postgres, one row per customer.
// Read-modify-write cycles take a row lock so writes to one customer are
// serialized across sessions and processes.
type BunStore struct {
	db *bun.DB
}

func NewBunStore(cfg PostgresConfig) *BunStore {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN)))
	return &BunStore{db: bun.NewDB(sqldb, pgdialect.New())}
}

// Bootstrap creates the table when missing and loads the seed rows for ids
// not already present.
func (s *BunStore) Bootstrap(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().
		Model((*customerRow)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create customers table: %w", err)
	}

	seed := SeedRecords()
	rows := make([]customerRow, 0, len(seed))
	for _, rec := range seed {
		rows = append(rows, rowFromRecord(rec))
	}
	if _, err := s.db.NewInsert().
		Model(&rows).
		On("CONFLICT (customer_id) DO NOTHING").
		Exec(ctx); err != nil {
		return fmt.Errorf("seed customers table: %w", err)
	}
	return nil
}

func (s *BunStore) Close() error {
	return s.db.Close()
}

func (s *BunStore) Get(ctx context.Context, customerID string) (Record, error) {
	var row customerRow
	err := s.db.NewSelect().
		Model(&row).
		Where("customer_id = ?", customerID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: id=%s", ErrNotFound, customerID)
	}
	if err != nil {
		return Record{}, fmt.Errorf("load customer %s: %w", customerID, err)
	}
	return row.toRecord(), nil
}

func (s *BunStore) Update(ctx context.Context, customerID string, field string, value any) error {
	return s.mutate(ctx, customerID, func(r *Record) error {
		return r.ApplyUpdate(field, value)
	})
}

func (s *BunStore) AddComplaint(ctx context.Context, customerID string, complaint string) (string, error) {
	complaint = strings.TrimSpace(complaint)
	if complaint == "" {
		return "", fmt.Errorf("%w: complaint text is empty", ErrInvalidValue)
	}

	var ticketID string
	err := s.mutate(ctx, customerID, func(r *Record) error {
		for {
			ticketID = newTicketID()
			exists, err := s.db.NewSelect().
				Model((*customerRow)(nil)).
				Where("complaint_id = ?", ticketID).
				Exists(ctx)
			if err != nil {
				return fmt.Errorf("check ticket id: %w", err)
			}
			if !exists {
				break
			}
		}
		r.Complaint = complaint
		r.ComplaintID = ticketID
		r.Resolution = ResolutionOpen
		return nil
	})
	if err != nil {
		return "", err
	}
	return ticketID, nil
}

func (s *BunStore) AppendConversation(ctx context.Context, customerID string, transcript string) error {
	if strings.TrimSpace(transcript) == "" {
		return nil
	}
	return s.mutate(ctx, customerID, func(r *Record) error {
		r.ConversationHistory = append(r.ConversationHistory, transcript)
		return nil
	})
}

func (s *BunStore) RandomID(ctx context.Context) (string, error) {
	var row customerRow
	err := s.db.NewSelect().
		Model(&row).
		Column("customer_id").
		OrderExpr("random()").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: table is empty", ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("pick random customer: %w", err)
	}
	return row.CustomerID, nil
}

func (s *BunStore) mutate(ctx context.Context, customerID string, fn func(*Record) error) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var row customerRow
		err := tx.NewSelect().
			Model(&row).
			Where("customer_id = ?", customerID).
			For("UPDATE").
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: id=%s", ErrNotFound, customerID)
		}
		if err != nil {
			return fmt.Errorf("load customer %s: %w", customerID, err)
		}

		rec := row.toRecord()
		if err := fn(&rec); err != nil {
			return err
		}
		if err := rec.Validate(); err != nil {
			return err
		}

		updated := rowFromRecord(rec)
		if _, err := tx.NewUpdate().
			Model(&updated).
			WherePK().
			Exec(ctx); err != nil {
			return fmt.Errorf("save customer %s: %w", customerID, err)
		}
		return nil
	})
}
