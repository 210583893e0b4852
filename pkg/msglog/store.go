package msglog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const storeLogPrefix = "msglog:store"

// Record is one accepted message.
type Record struct {
	ID          string    `json:"id"`
	Transport   string    `json:"transport"`
	Route       string    `json:"route,omitempty"`
	RemoteAddr  string    `json:"remote_addr"`
	MessageID   string    `json:"message_id,omitempty"`
	MessageType string    `json:"message_type,omitempty"`
	Payload     []byte    `json:"payload,omitempty"`
	Received    time.Time `json:"received"`
}

// Store provides database access for the message log.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store with the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Insert writes one message record. A zero Received defaults to now and an
// empty ID gets a fresh uuid.
func (s *Store) Insert(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Received.IsZero() {
		rec.Received = time.Now().UTC()
	}
	payload := rec.Payload
	if len(payload) == 0 || !json.Valid(payload) {
		payload = []byte("{}")
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO messages (id, transport, route, remote_addr, message_id, message_type, payload, received)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.Transport, rec.Route, rec.RemoteAddr, rec.MessageID, rec.MessageType, payload, rec.Received)
	if err != nil {
		return fmt.Errorf("%s - insert message: %w", storeLogPrefix, err)
	}

	slog.Debug(fmt.Sprintf("%s - Logged message %s via %s", storeLogPrefix, rec.ID, rec.Transport))
	return nil
}

// CountByTransport returns the number of logged messages per transport.
func (s *Store) CountByTransport(ctx context.Context) (map[string]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT transport, COUNT(*) FROM messages GROUP BY transport`)
	if err != nil {
		return nil, fmt.Errorf("%s - count messages: %w", storeLogPrefix, err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var transport string
		var count int64
		if err := rows.Scan(&transport, &count); err != nil {
			return nil, fmt.Errorf("%s - scan count row: %w", storeLogPrefix, err)
		}
		counts[transport] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s - count rows: %w", storeLogPrefix, err)
	}
	return counts, nil
}
