package database

// SQL schemas for all ClickHouse tables

const (
	// MeasurementsTableSQL creates the oximeter_measurements table
	MeasurementsTableSQL = `
		CREATE TABLE IF NOT EXISTS oximeter_measurements (
			id UUID,
			timestamp DateTime64(3),
			device_id String,
			heart_rate Float64,
			spo2 Float64,
			raw_payload String
		) ENGINE = MergeTree()
		ORDER BY (device_id, timestamp)
		PARTITION BY toYYYYMM(timestamp)
	`

	// DeviceRegistryTableSQL creates the device_registry table
	DeviceRegistryTableSQL = `
		CREATE TABLE IF NOT EXISTS device_registry (
			device_id String,
			registered_at DateTime64(3),
			last_seen DateTime64(3),
			measurement_count UInt64
		) ENGINE = ReplacingMergeTree(last_seen)
		ORDER BY device_id
	`
)

// Statements used by ClickHouseDB
const (
	InsertMeasurementSQL = `
		INSERT INTO oximeter_measurements (id, timestamp, device_id, heart_rate, spo2, raw_payload)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	UpsertDeviceSQL = `
		INSERT INTO device_registry (device_id, registered_at, last_seen, measurement_count)
		VALUES (?, ?, ?, ?)
	`
)

// AllTables returns all table creation SQL statements
func AllTables() []string {
	return []string{
		MeasurementsTableSQL,
		DeviceRegistryTableSQL,
	}
}
