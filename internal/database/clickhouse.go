package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"

	"iot-oximeter/internal/models"
)

// ClickHouseDB stores acknowledged oximeter readings and the device registry
type ClickHouseDB struct {
	conn driver.Conn
}

// connOptions builds the driver options for the measurement store
func connOptions(addr, database, username, password string) *clickhouse.Options {
	return &clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	}
}

// NewClickHouseDB opens the measurement store and makes sure its tables exist
func NewClickHouseDB(addr, database, username, password string) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(connOptions(addr, database, username, password))
	if err != nil {
		return nil, fmt.Errorf("failed to open measurement store at %s: %w", addr, err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("measurement store at %s not reachable: %w", addr, err)
	}

	log.Printf("Measurement store: connected to ClickHouse %s/%s", addr, database)

	db := &ClickHouseDB{conn: conn}
	if err := db.InitSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to prepare measurement tables: %w", err)
	}

	return db, nil
}

// InitSchema creates the necessary tables if they don't exist
func (db *ClickHouseDB) InitSchema() error {
	ctx := context.Background()

	for _, tableSQL := range AllTables() {
		if err := db.conn.Exec(ctx, tableSQL); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	log.Printf("Measurement store: %d tables ready", len(AllTables()))
	return nil
}

// SaveMeasurement saves one acknowledged oximeter reading
func (db *ClickHouseDB) SaveMeasurement(m *models.Measurement) error {
	ctx := context.Background()

	id, err := uuid.Parse(m.ID)
	if err != nil {
		return fmt.Errorf("invalid measurement id %q: %w", m.ID, err)
	}

	err = db.conn.Exec(ctx, InsertMeasurementSQL,
		id,
		m.Timestamp,
		m.DeviceID,
		m.HeartRate,
		m.SpO2,
		m.RawPayload,
	)

	if err != nil {
		return fmt.Errorf("failed to insert measurement: %w", err)
	}

	return nil
}

// UpsertDevice inserts or updates a device in the registry
func (db *ClickHouseDB) UpsertDevice(device *models.Device) error {
	ctx := context.Background()

	// ReplacingMergeTree keeps the row with the latest last_seen
	err := db.conn.Exec(ctx, UpsertDeviceSQL,
		device.DeviceID,
		device.RegisteredAt,
		device.LastSeen,
		device.MeasurementCount,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert device: %w", err)
	}

	return nil
}

// Close releases the measurement store connection. Safe on a zero value.
func (db *ClickHouseDB) Close() error {
	if db.conn == nil {
		return nil
	}
	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close measurement store: %w", err)
	}
	log.Println("Measurement store: connection closed")
	return nil
}
