package customer

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"
)

// FileConfig configures the flat-file store.
type FileConfig struct {
	Path string `split_words:"true" default:"customer_database.json"`
}

// FileStore keeps the whole customer table in one JSON file. A single
// mutex serializes all writes, which also satisfies the per-key discipline:
// there is only one file. Writes go through a temp file + rename so a failed
// write leaves the previous table intact.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(cfg FileConfig) (*FileStore, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("store file path is required")
	}

	s := &FileStore{path: path}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := s.writeTable(SeedRecords()); err != nil {
			return nil, fmt.Errorf("seed customer table: %w", err)
		}
		log.Info().Str("path", path).Msg("seeded customer table")
	} else if err != nil {
		return nil, fmt.Errorf("stat customer table: %w", err)
	}

	return s, nil
}

func (s *FileStore) Get(ctx context.Context, customerID string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, err := s.readTable()
	if err != nil {
		return Record{}, err
	}
	for i := range table {
		if table[i].CustomerID == customerID {
			return table[i].Clone(), nil
		}
	}
	return Record{}, fmt.Errorf("%w: id=%s", ErrNotFound, customerID)
}

func (s *FileStore) Update(ctx context.Context, customerID string, field string, value any) error {
	return s.mutate(customerID, func(r *Record) error {
		return r.ApplyUpdate(field, value)
	})
}

func (s *FileStore) AddComplaint(ctx context.Context, customerID string, complaint string) (string, error) {
	complaint = strings.TrimSpace(complaint)
	if complaint == "" {
		return "", fmt.Errorf("%w: complaint text is empty", ErrInvalidValue)
	}

	var ticketID string
	err := s.mutateTable(func(table []Record) error {
		idx := -1
		taken := make(map[string]struct{}, len(table))
		for i := range table {
			if table[i].ComplaintID != "" {
				taken[table[i].ComplaintID] = struct{}{}
			}
			if table[i].CustomerID == customerID {
				idx = i
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: id=%s", ErrNotFound, customerID)
		}

		ticketID = newTicketID()
		for {
			if _, dup := taken[ticketID]; !dup {
				break
			}
			ticketID = newTicketID()
		}

		table[idx].Complaint = complaint
		table[idx].ComplaintID = ticketID
		table[idx].Resolution = ResolutionOpen
		return nil
	})
	if err != nil {
		return "", err
	}
	return ticketID, nil
}

func (s *FileStore) AppendConversation(ctx context.Context, customerID string, transcript string) error {
	if strings.TrimSpace(transcript) == "" {
		return nil
	}
	return s.mutate(customerID, func(r *Record) error {
		r.ConversationHistory = append(r.ConversationHistory, transcript)
		return nil
	})
}

func (s *FileStore) RandomID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, err := s.readTable()
	if err != nil {
		return "", err
	}
	if len(table) == 0 {
		return "", fmt.Errorf("%w: table is empty", ErrNotFound)
	}
	return table[rand.IntN(len(table))].CustomerID, nil
}

func (s *FileStore) mutate(customerID string, fn func(*Record) error) error {
	return s.mutateTable(func(table []Record) error {
		for i := range table {
			if table[i].CustomerID == customerID {
				if err := fn(&table[i]); err != nil {
					return err
				}
				return table[i].Validate()
			}
		}
		return fmt.Errorf("%w: id=%s", ErrNotFound, customerID)
	})
}

func (s *FileStore) mutateTable(fn func([]Record) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, err := s.readTable()
	if err != nil {
		return err
	}
	if err := fn(table); err != nil {
		return err
	}
	return s.writeTable(table)
}

// readTable loads the table. A file that no longer parses is replaced with a
// fresh seed table and the call fails with ErrCorruptStore so the caller
// knows this operation saw data loss; the next call works against the seed.
func (s *FileStore) readTable() ([]Record, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read customer table: %w", err)
	}

	var table []Record
	if err := sonic.Unmarshal(raw, &table); err != nil {
		log.Error().Err(err).Str("path", s.path).Msg("customer table corrupt, recreating from seed")
		if werr := s.writeTable(SeedRecords()); werr != nil {
			return nil, fmt.Errorf("%w: recreate after parse failure: %v", ErrCorruptStore, werr)
		}
		return nil, fmt.Errorf("%w: %v", ErrCorruptStore, err)
	}
	return table, nil
}

func (s *FileStore) writeTable(table []Record) error {
	raw, err := sonic.MarshalIndent(table, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal customer table: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".customers-*.json")
	if err != nil {
		return fmt.Errorf("create temp table: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp table: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp table: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace customer table: %w", err)
	}
	return nil
}
