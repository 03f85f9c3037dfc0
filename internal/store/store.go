// Package store implements C7: the devices/probes persistent schema, its
// upsert-by-mac write path, and the indexed read queries the surveillance
// analyser depends on.
package store

import (
	"database/sql"
	"fmt"
	"math"

	_ "github.com/mattn/go-sqlite3"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS devices (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	mac TEXT NOT NULL UNIQUE,
	first_seen INTEGER NOT NULL,
	last_seen INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS probes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	device_id INTEGER NOT NULL REFERENCES devices(id),
	ssid TEXT NOT NULL DEFAULT '',
	timestamp INTEGER NOT NULL,
	lat REAL,
	lon REAL,
	signal_dbm INTEGER,
	channel INTEGER
);

CREATE INDEX IF NOT EXISTS idx_devices_mac ON devices(mac);
CREATE INDEX IF NOT EXISTS idx_devices_last_seen ON devices(last_seen);
CREATE INDEX IF NOT EXISTS idx_probes_timestamp ON probes(timestamp);
CREATE INDEX IF NOT EXISTS idx_probes_ssid ON probes(ssid);
CREATE INDEX IF NOT EXISTS idx_probes_device_id ON probes(device_id);
`

// Store wraps a single-writer SQLite connection implementing C7.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite3 database at path,
// applies the schema, and runs the idempotent distance_m migration.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // single-writer contract

	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrateDistanceColumn(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate distance_m: %w", err)
	}
	if err := s.migrateCapabilitiesColumn(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate capabilities: %w", err)
	}
	return s, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// columnExists reports whether table already has the given column,
// resolved via schema introspection (PRAGMA table_info) rather than
// issuing a blind ALTER TABLE and ignoring the failure.
func (s *Store) columnExists(table, column string) (bool, error) {
	rows, err := s.db.Query(fmt.Sprintf(`PRAGMA table_info(%s)`, table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// migrateDistanceColumn adds probes.distance_m if it is not already present.
func (s *Store) migrateDistanceColumn() error {
	ok, err := s.columnExists("probes", "distance_m")
	if err != nil || ok {
		return err
	}
	_, err = s.db.Exec(`ALTER TABLE probes ADD COLUMN distance_m REAL`)
	return err
}

// migrateCapabilitiesColumn adds probes.capabilities (a JSON blob of the
// parsed dot11.Capabilities record) if it is not already present.
func (s *Store) migrateCapabilitiesColumn() error {
	ok, err := s.columnExists("probes", "capabilities")
	if err != nil || ok {
		return err
	}
	_, err = s.db.Exec(`ALTER TABLE probes ADD COLUMN capabilities TEXT`)
	return err
}

// InsertProbe upserts the device by MAC (creating it on first sighting,
// otherwise advancing last_seen) and inserts the probe row, atomically.
func (s *Store) InsertProbe(p ProbeCapture) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var deviceID int64
	err = tx.QueryRow(`SELECT id FROM devices WHERE mac = ?`, p.MAC).Scan(&deviceID)
	switch {
	case err == sql.ErrNoRows:
		res, err := tx.Exec(
			`INSERT INTO devices (mac, first_seen, last_seen) VALUES (?, ?, ?)`,
			p.MAC, p.Timestamp, p.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("insert device: %w", err)
		}
		deviceID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("device id: %w", err)
		}
	case err != nil:
		return fmt.Errorf("lookup device: %w", err)
	default:
		if _, err := tx.Exec(`UPDATE devices SET last_seen = ? WHERE id = ?`, p.Timestamp, deviceID); err != nil {
			return fmt.Errorf("update last_seen: %w", err)
		}
	}

	var capabilities []byte
	if len(p.Capabilities) > 0 {
		capabilities = p.Capabilities
	}

	_, err = tx.Exec(
		`INSERT INTO probes (device_id, ssid, timestamp, lat, lon, signal_dbm, channel, distance_m, capabilities)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		deviceID, p.SSID, p.Timestamp, p.Lat, p.Lon, p.SignalDBm, p.Channel, p.DistanceM, capabilities,
	)
	if err != nil {
		return fmt.Errorf("insert probe: %w", err)
	}

	return tx.Commit()
}

func (s *Store) GetDeviceByMAC(mac string) (*Device, error) {
	row := s.db.QueryRow(`SELECT id, mac, first_seen, last_seen FROM devices WHERE mac = ?`, mac)
	return scanDevice(row)
}

func (s *Store) GetAllDevices() ([]Device, error) {
	rows, err := s.db.Query(`SELECT id, mac, first_seen, last_seen FROM devices ORDER BY last_seen DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDevices(rows)
}

// GetDevicesInTimeRange returns devices whose last_seen falls within
// [start, end], ordered by last_seen descending.
func (s *Store) GetDevicesInTimeRange(start, end int64) ([]Device, error) {
	rows, err := s.db.Query(
		`SELECT id, mac, first_seen, last_seen FROM devices WHERE last_seen >= ? AND last_seen <= ? ORDER BY last_seen DESC`,
		start, end,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDevices(rows)
}

// GetProbesForDevice returns all probes for a device, newest first.
func (s *Store) GetProbesForDevice(deviceID int64) ([]Probe, error) {
	rows, err := s.db.Query(
		`SELECT id, device_id, ssid, timestamp, lat, lon, signal_dbm, channel, distance_m, capabilities
		 FROM probes WHERE device_id = ? ORDER BY timestamp DESC`,
		deviceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProbes(rows)
}

// GetProbesInTimeRange returns all probes with timestamp in [start, end],
// newest first.
func (s *Store) GetProbesInTimeRange(start, end int64) ([]Probe, error) {
	rows, err := s.db.Query(
		`SELECT id, device_id, ssid, timestamp, lat, lon, signal_dbm, channel, distance_m, capabilities
		 FROM probes WHERE timestamp >= ? AND timestamp <= ? ORDER BY timestamp DESC`,
		start, end,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProbes(rows)
}

// GetUniqueSSIDsForDevice returns the distinct non-empty SSIDs probed by
// a device.
func (s *Store) GetUniqueSSIDsForDevice(deviceID int64) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT ssid FROM probes WHERE device_id = ? AND ssid != ''`,
		deviceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ssids []string
	for rows.Next() {
		var ssid string
		if err := rows.Scan(&ssid); err != nil {
			return nil, err
		}
		ssids = append(ssids, ssid)
	}
	return ssids, rows.Err()
}

// GetDeviceLocationCount counts distinct ~100m grid cells
// (floor(lat*1000), floor(lon*1000)) across the device's geo-tagged probes.
func (s *Store) GetDeviceLocationCount(deviceID int64) (int, error) {
	rows, err := s.db.Query(
		`SELECT lat, lon FROM probes WHERE device_id = ? AND lat IS NOT NULL AND lon IS NOT NULL`,
		deviceID,
	)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	cells := make(map[[2]int64]struct{})
	for rows.Next() {
		var lat, lon float64
		if err := rows.Scan(&lat, &lon); err != nil {
			return 0, err
		}
		if lat == 0 && lon == 0 {
			continue
		}
		cell := [2]int64{int64(math.Floor(lat * 1000)), int64(math.Floor(lon * 1000))}
		cells[cell] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	return len(cells), nil
}

func (s *Store) CountDevices() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM devices`).Scan(&n)
	return n, err
}

func (s *Store) CountProbes() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM probes`).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDevice(row rowScanner) (*Device, error) {
	var d Device
	if err := row.Scan(&d.ID, &d.MAC, &d.FirstSeen, &d.LastSeen); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

func scanDevices(rows *sql.Rows) ([]Device, error) {
	var devices []Device
	for rows.Next() {
		var d Device
		if err := rows.Scan(&d.ID, &d.MAC, &d.FirstSeen, &d.LastSeen); err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

func scanProbes(rows *sql.Rows) ([]Probe, error) {
	var probes []Probe
	for rows.Next() {
		var p Probe
		var capabilities []byte
		if err := rows.Scan(&p.ID, &p.DeviceID, &p.SSID, &p.Timestamp, &p.Lat, &p.Lon, &p.SignalDBm, &p.Channel, &p.DistanceM, &capabilities); err != nil {
			return nil, err
		}
		p.Capabilities = capabilities
		probes = append(probes, p)
	}
	return probes, rows.Err()
}
