// Package storage provides the persistent record-store implementations.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"roadwatch/internal/domain"
	"roadwatch/internal/ports"
)

const recordsTable = "processed_agent_data"

var recordColumns = []string{
	"id", "user_id", "road_state", "x", "y", "z", "latitude", "longitude", "timestamp",
}

// PostgresStore persists classified records into Postgres. Every method
// runs as its own implicit transaction; there is no cross-call state.
type PostgresStore struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ ports.RecordStore = (*PostgresStore)(nil)

// OpenPostgres connects to Postgres and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewPostgresStore(db), nil
}

// NewPostgresStore wires an existing sql.DB connection pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// InitSchema ensures the records table exists. Ids are SERIAL: unique,
// monotone, never reused after deletion.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS processed_agent_data (
		id SERIAL PRIMARY KEY,
		user_id INTEGER NOT NULL,
		road_state TEXT NOT NULL,
		x DOUBLE PRECISION NOT NULL,
		y DOUBLE PRECISION NOT NULL,
		z DOUBLE PRECISION NOT NULL,
		latitude DOUBLE PRECISION NOT NULL,
		longitude DOUBLE PRECISION NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL
	)`

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Insert commits one record and returns the id Postgres assigned.
func (s *PostgresStore) Insert(ctx context.Context, record domain.ProcessedAgentData) (int64, error) {
	var id int64
	err := s.sb.Insert(recordsTable).
		Columns("user_id", "road_state", "x", "y", "z", "latitude", "longitude", "timestamp").
		Values(
			record.AgentData.UserID,
			string(record.RoadState),
			record.AgentData.Accelerometer.X,
			record.AgentData.Accelerometer.Y,
			record.AgentData.Accelerometer.Z,
			record.AgentData.Gps.Latitude,
			record.AgentData.Gps.Longitude,
			record.AgentData.Timestamp.UTC(),
		).
		Suffix("RETURNING id").
		RunWith(s.db).
		QueryRowContext(ctx).
		Scan(&id)
	if err != nil {
		return 0, storeFailure("insert record", err)
	}

	return id, nil
}

// Get returns one stored record by id.
func (s *PostgresStore) Get(ctx context.Context, id int64) (domain.StoredAgentData, error) {
	row := s.sb.Select(recordColumns...).
		From(recordsTable).
		Where(sq.Eq{"id": id}).
		RunWith(s.db).
		QueryRowContext(ctx)

	record, err := scanStored(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StoredAgentData{}, ports.ErrNotFound
	}
	if err != nil {
		return domain.StoredAgentData{}, storeFailure("get record", err)
	}
	return record, nil
}

// List returns all stored records ordered by id.
func (s *PostgresStore) List(ctx context.Context) ([]domain.StoredAgentData, error) {
	rows, err := s.sb.Select(recordColumns...).
		From(recordsTable).
		OrderBy("id").
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return nil, storeFailure("list records", err)
	}
	defer rows.Close()

	records := make([]domain.StoredAgentData, 0)
	for rows.Next() {
		record, err := scanStored(rows)
		if err != nil {
			return nil, storeFailure("scan record", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, storeFailure("iterate records", err)
	}

	return records, nil
}

// Update replaces every field of a record except its id.
func (s *PostgresStore) Update(ctx context.Context, id int64, record domain.ProcessedAgentData) (domain.StoredAgentData, error) {
	result, err := s.sb.Update(recordsTable).
		Set("user_id", record.AgentData.UserID).
		Set("road_state", string(record.RoadState)).
		Set("x", record.AgentData.Accelerometer.X).
		Set("y", record.AgentData.Accelerometer.Y).
		Set("z", record.AgentData.Accelerometer.Z).
		Set("latitude", record.AgentData.Gps.Latitude).
		Set("longitude", record.AgentData.Gps.Longitude).
		Set("timestamp", record.AgentData.Timestamp.UTC()).
		Where(sq.Eq{"id": id}).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return domain.StoredAgentData{}, storeFailure("update record", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return domain.StoredAgentData{}, storeFailure("update result", err)
	}
	if affected == 0 {
		return domain.StoredAgentData{}, ports.ErrNotFound
	}

	return domain.NewStored(id, record), nil
}

// Delete removes a record permanently, reporting whether a row existed.
func (s *PostgresStore) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := s.sb.Delete(recordsTable).
		Where(sq.Eq{"id": id}).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return false, storeFailure("delete record", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, storeFailure("delete result", err)
	}
	return affected > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStored(row rowScanner) (domain.StoredAgentData, error) {
	var (
		record domain.StoredAgentData
		state  string
	)
	err := row.Scan(
		&record.ID,
		&record.UserID,
		&state,
		&record.X,
		&record.Y,
		&record.Z,
		&record.Latitude,
		&record.Longitude,
		&record.Timestamp,
	)
	if err != nil {
		return domain.StoredAgentData{}, err
	}
	record.RoadState = domain.RoadState(state)
	record.Timestamp = record.Timestamp.UTC()
	return record, nil
}

// storeFailure wraps a driver error into the store-unavailable kind while
// keeping the cause visible in the message.
func storeFailure(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ports.ErrStoreUnavailable, err)
}
