package main

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mgazza/energy-costs/billing"
)

// Store keeps readings and contracts in a SQLite database so reports can run
// without calling the energy APIs.
type Store struct {
	db *sql.DB
}

// OpenStore opens or creates the database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS readings (
    taken_at INTEGER NOT NULL,
    energy_type TEXT NOT NULL,
    amount REAL NOT NULL,
    PRIMARY KEY (taken_at, energy_type)
);

CREATE TABLE IF NOT EXISTS contracts (
    energy_type TEXT NOT NULL,
    start_date INTEGER NOT NULL,
    end_date INTEGER,
    base_price REAL NOT NULL,
    working_price REAL NOT NULL,
    PRIMARY KEY (energy_type, start_date)
);
`)
	return err
}

// SaveReadings inserts readings, replacing the amount of any reading already
// stored for the same instant and energy type.
func (s *Store) SaveReadings(ctx context.Context, readings []billing.MeterReading) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO readings (taken_at, energy_type, amount) VALUES (?, ?, ?)
ON CONFLICT (taken_at, energy_type) DO UPDATE SET amount = excluded.amount`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range readings {
		if _, err := stmt.ExecContext(ctx, r.Date.UnixNano(), string(r.EnergyType), r.Amount); err != nil {
			return fmt.Errorf("failed to save reading %s: %w", r.Date.Format(time.RFC3339), err)
		}
	}
	return tx.Commit()
}

// SaveContracts inserts contracts keyed by energy type and start date.
func (s *Store) SaveContracts(ctx context.Context, contracts []billing.Contract) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO contracts (energy_type, start_date, end_date, base_price, working_price) VALUES (?, ?, ?, ?, ?)
ON CONFLICT (energy_type, start_date) DO UPDATE SET
    end_date = excluded.end_date,
    base_price = excluded.base_price,
    working_price = excluded.working_price`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range contracts {
		var end sql.NullInt64
		if c.EndDate != nil {
			end = sql.NullInt64{Int64: c.EndDate.UnixNano(), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, string(c.EnergyType), c.StartDate.UnixNano(), end, c.BasePrice, c.WorkingPrice); err != nil {
			return fmt.Errorf("failed to save %s contract from %s: %w", c.EnergyType, c.StartDate.Format(time.RFC3339), err)
		}
	}
	return tx.Commit()
}

// Readings returns the readings taken within [start, end]. Zero bounds are open.
func (s *Store) Readings(ctx context.Context, start, end time.Time) ([]billing.MeterReading, error) {
	from, to := nanoBounds(start, end)
	rows, err := s.db.QueryContext(ctx, `
SELECT taken_at, energy_type, amount FROM readings
WHERE taken_at BETWEEN ? AND ?
ORDER BY taken_at, energy_type`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var readings []billing.MeterReading
	for rows.Next() {
		var (
			takenAt    int64
			energyType string
			r          billing.MeterReading
		)
		if err := rows.Scan(&takenAt, &energyType, &r.Amount); err != nil {
			return nil, err
		}
		r.Date = time.Unix(0, takenAt).UTC()
		r.EnergyType = billing.EnergyType(energyType)
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

// Contracts returns the contracts overlapping [start, end]. Zero bounds are open.
func (s *Store) Contracts(ctx context.Context, start, end time.Time) ([]billing.Contract, error) {
	from, to := nanoBounds(start, end)
	rows, err := s.db.QueryContext(ctx, `
SELECT energy_type, start_date, end_date, base_price, working_price FROM contracts
WHERE start_date <= ? AND (end_date IS NULL OR end_date >= ?)
ORDER BY start_date, energy_type`, to, from)
	if err != nil {
		return nil, fmt.Errorf("failed to query contracts: %w", err)
	}
	defer rows.Close()

	var contracts []billing.Contract
	for rows.Next() {
		var (
			energyType string
			startDate  int64
			endDate    sql.NullInt64
			c          billing.Contract
		)
		if err := rows.Scan(&energyType, &startDate, &endDate, &c.BasePrice, &c.WorkingPrice); err != nil {
			return nil, err
		}
		c.EnergyType = billing.EnergyType(energyType)
		c.StartDate = time.Unix(0, startDate).UTC()
		if endDate.Valid {
			t := time.Unix(0, endDate.Int64).UTC()
			c.EndDate = &t
		}
		contracts = append(contracts, c)
	}
	return contracts, rows.Err()
}

func nanoBounds(start, end time.Time) (int64, int64) {
	from, to := int64(math.MinInt64), int64(math.MaxInt64)
	if !start.IsZero() {
		from = start.UnixNano()
	}
	if !end.IsZero() {
		to = end.UnixNano()
	}
	return from, to
}
