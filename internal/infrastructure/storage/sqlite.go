package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"roadwatch/internal/domain"
	"roadwatch/internal/ports"
)

// SQLiteStore is the file-backed record store used for local development
// and tests. It satisfies the same contract as PostgresStore.
type SQLiteStore struct {
	db *sql.DB
}

var _ ports.RecordStore = (*SQLiteStore)(nil)

// OpenSQLite initializes the database file, creating directories as needed.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// InitSchema ensures the records table exists. AUTOINCREMENT keeps ids
// monotone and never reused, matching the Postgres SERIAL behavior.
func (s *SQLiteStore) InitSchema(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS processed_agent_data (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		road_state TEXT NOT NULL,
		x REAL NOT NULL,
		y REAL NOT NULL,
		z REAL NOT NULL,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		timestamp TEXT NOT NULL
	);`

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Insert commits one record and returns the generated id.
func (s *SQLiteStore) Insert(ctx context.Context, record domain.ProcessedAgentData) (int64, error) {
	result, err := s.db.ExecContext(
		ctx,
		`INSERT INTO processed_agent_data (user_id, road_state, x, y, z, latitude, longitude, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?);`,
		record.AgentData.UserID,
		string(record.RoadState),
		record.AgentData.Accelerometer.X,
		record.AgentData.Accelerometer.Y,
		record.AgentData.Accelerometer.Z,
		record.AgentData.Gps.Latitude,
		record.AgentData.Gps.Longitude,
		record.AgentData.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, storeFailure("insert record", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, storeFailure("insert id", err)
	}
	return id, nil
}

// Get returns one stored record by id.
func (s *SQLiteStore) Get(ctx context.Context, id int64) (domain.StoredAgentData, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, user_id, road_state, x, y, z, latitude, longitude, timestamp
		 FROM processed_agent_data WHERE id = ?;`,
		id,
	)

	record, err := scanStoredSQLite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StoredAgentData{}, ports.ErrNotFound
	}
	if err != nil {
		return domain.StoredAgentData{}, storeFailure("get record", err)
	}
	return record, nil
}

// List returns all stored records ordered by id.
func (s *SQLiteStore) List(ctx context.Context) ([]domain.StoredAgentData, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, user_id, road_state, x, y, z, latitude, longitude, timestamp
		 FROM processed_agent_data ORDER BY id;`,
	)
	if err != nil {
		return nil, storeFailure("list records", err)
	}
	defer rows.Close()

	records := make([]domain.StoredAgentData, 0)
	for rows.Next() {
		record, err := scanStoredSQLite(rows)
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
func (s *SQLiteStore) Update(ctx context.Context, id int64, record domain.ProcessedAgentData) (domain.StoredAgentData, error) {
	result, err := s.db.ExecContext(
		ctx,
		`UPDATE processed_agent_data
		 SET user_id = ?, road_state = ?, x = ?, y = ?, z = ?, latitude = ?, longitude = ?, timestamp = ?
		 WHERE id = ?;`,
		record.AgentData.UserID,
		string(record.RoadState),
		record.AgentData.Accelerometer.X,
		record.AgentData.Accelerometer.Y,
		record.AgentData.Accelerometer.Z,
		record.AgentData.Gps.Latitude,
		record.AgentData.Gps.Longitude,
		record.AgentData.Timestamp.UTC().Format(time.RFC3339Nano),
		id,
	)
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
func (s *SQLiteStore) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM processed_agent_data WHERE id = ?;`, id)
	if err != nil {
		return false, storeFailure("delete record", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, storeFailure("delete result", err)
	}
	return affected > 0, nil
}

func scanStoredSQLite(row rowScanner) (domain.StoredAgentData, error) {
	var (
		record domain.StoredAgentData
		state  string
		ts     string
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
		&ts,
	)
	if err != nil {
		return domain.StoredAgentData{}, err
	}

	record.RoadState = domain.RoadState(state)
	parsed, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return domain.StoredAgentData{}, fmt.Errorf("parse timestamp %q: %w", ts, err)
	}
	record.Timestamp = parsed.UTC()
	return record, nil
}
