package customer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

const redisTxRetries = 5

// RedisConfig configures the Redis-backed store.
type RedisConfig struct {
	Addr      string `split_words:"true" default:"localhost:6379"`
	Password  string `split_words:"true"`
	DB        int    `split_words:"true" default:"0"`
	KeyPrefix string `split_words:"true" default:"voca:customer:"`
}

// RedisStore keeps one JSON value per customer key. Read-modify-write cycles
// run under WATCH so concurrent sessions touching the same customer retry
// instead of losing updates.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisStore(cfg RedisConfig) *RedisStore {
	prefix := strings.TrimSpace(cfg.KeyPrefix)
	if prefix == "" {
		prefix = "voca:customer:"
	}
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		keyPrefix: prefix,
	}
}

func (s *RedisStore) key(customerID string) string {
	return s.keyPrefix + customerID
}

func (s *RedisStore) indexKey() string {
	return s.keyPrefix + "ids"
}

func (s *RedisStore) ticketsKey() string {
	return s.keyPrefix + "tickets"
}

// Bootstrap loads the seed table for ids not already present.
func (s *RedisStore) Bootstrap(ctx context.Context) error {
	for _, rec := range SeedRecords() {
		raw, err := sonic.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal seed record: %w", err)
		}
		ok, err := s.client.SetNX(ctx, s.key(rec.CustomerID), raw, 0).Result()
		if err != nil {
			return fmt.Errorf("seed customer %s: %w", rec.CustomerID, err)
		}
		if ok {
			if err := s.client.SAdd(ctx, s.indexKey(), rec.CustomerID).Err(); err != nil {
				return fmt.Errorf("index customer %s: %w", rec.CustomerID, err)
			}
		}
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Get(ctx context.Context, customerID string) (Record, error) {
	raw, err := s.client.Get(ctx, s.key(customerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, fmt.Errorf("%w: id=%s", ErrNotFound, customerID)
	}
	if err != nil {
		return Record{}, fmt.Errorf("load customer %s: %w", customerID, err)
	}

	var rec Record
	if err := sonic.Unmarshal(raw, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorruptStore, err)
	}
	return rec, nil
}

func (s *RedisStore) Update(ctx context.Context, customerID string, field string, value any) error {
	return s.mutate(ctx, customerID, func(r *Record) error {
		return r.ApplyUpdate(field, value)
	})
}

func (s *RedisStore) AddComplaint(ctx context.Context, customerID string, complaint string) (string, error) {
	complaint = strings.TrimSpace(complaint)
	if complaint == "" {
		return "", fmt.Errorf("%w: complaint text is empty", ErrInvalidValue)
	}

	// Claim a store-unique ticket id first; the set is the collision check.
	var ticketID string
	for {
		ticketID = newTicketID()
		added, err := s.client.SAdd(ctx, s.ticketsKey(), ticketID).Result()
		if err != nil {
			return "", fmt.Errorf("claim ticket id: %w", err)
		}
		if added == 1 {
			break
		}
	}

	err := s.mutate(ctx, customerID, func(r *Record) error {
		r.Complaint = complaint
		r.ComplaintID = ticketID
		r.Resolution = ResolutionOpen
		return nil
	})
	if err != nil {
		// Release the claimed id so a later complaint can reuse it.
		s.client.SRem(ctx, s.ticketsKey(), ticketID)
		return "", err
	}
	return ticketID, nil
}

func (s *RedisStore) AppendConversation(ctx context.Context, customerID string, transcript string) error {
	if strings.TrimSpace(transcript) == "" {
		return nil
	}
	return s.mutate(ctx, customerID, func(r *Record) error {
		r.ConversationHistory = append(r.ConversationHistory, transcript)
		return nil
	})
}

func (s *RedisStore) RandomID(ctx context.Context) (string, error) {
	id, err := s.client.SRandMember(ctx, s.indexKey()).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%w: table is empty", ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("pick random customer: %w", err)
	}
	return id, nil
}

func (s *RedisStore) mutate(ctx context.Context, customerID string, fn func(*Record) error) error {
	key := s.key(customerID)

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: id=%s", ErrNotFound, customerID)
		}
		if err != nil {
			return fmt.Errorf("load customer %s: %w", customerID, err)
		}

		var rec Record
		if err := sonic.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("%w: %v", ErrCorruptStore, err)
		}
		if err := fn(&rec); err != nil {
			return err
		}
		if err := rec.Validate(); err != nil {
			return err
		}

		updated, err := sonic.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal customer %s: %w", customerID, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		return err
	}

	for i := 0; i < redisTxRetries; i++ {
		err := s.client.Watch(ctx, txn, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("update customer %s: too many concurrent writers", customerID)
}
