package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jroosing/corvid/internal/dns"
	"github.com/jroosing/corvid/internal/zones"
)

// ErrNotFound is returned by GetZone/UpdateZone/DeleteZone when the named
// zone has no row.
var ErrNotFound = errors.New("store: zone not found")

// UpstreamRecord is one ordered upstream entry for a zone.
type UpstreamRecord struct {
	Kind    string `json:"kind"`
	Address string `json:"address"`
	Host    string `json:"host,omitempty"`
}

// ZoneRecord is a persisted zone and its ordered upstream list, the shape
// the management API reads and writes.
type ZoneRecord struct {
	ID        int64            `json:"id"`
	Name      string           `json:"name"`
	Upstreams []UpstreamRecord `json:"upstreams"`
}

// ListZones returns every zone in name order.
func (s *Store) ListZones(ctx context.Context) ([]ZoneRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.conn.QueryContext(ctx, `SELECT id, name FROM zones ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("store: list zones: %w", err)
	}
	defer rows.Close()

	var out []ZoneRecord
	for rows.Next() {
		var z ZoneRecord
		if err := rows.Scan(&z.ID, &z.Name); err != nil {
			return nil, fmt.Errorf("store: scan zone: %w", err)
		}
		out = append(out, z)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list zones: %w", err)
	}

	for i := range out {
		ups, err := s.upstreamsForZone(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Upstreams = ups
	}
	return out, nil
}

// GetZone returns the zone named name, or ErrNotFound.
func (s *Store) GetZone(ctx context.Context, name string) (ZoneRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var z ZoneRecord
	err := s.conn.QueryRowContext(ctx, `SELECT id, name FROM zones WHERE name = ?`, name).Scan(&z.ID, &z.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return ZoneRecord{}, ErrNotFound
	}
	if err != nil {
		return ZoneRecord{}, fmt.Errorf("store: get zone %q: %w", name, err)
	}

	ups, err := s.upstreamsForZone(ctx, z.ID)
	if err != nil {
		return ZoneRecord{}, err
	}
	z.Upstreams = ups
	return z, nil
}

func (s *Store) upstreamsForZone(ctx context.Context, zoneID int64) ([]UpstreamRecord, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT kind, address, host FROM zone_upstreams
		WHERE zone_id = ? ORDER BY priority
	`, zoneID)
	if err != nil {
		return nil, fmt.Errorf("store: list upstreams: %w", err)
	}
	defer rows.Close()

	var out []UpstreamRecord
	for rows.Next() {
		var u UpstreamRecord
		if err := rows.Scan(&u.Kind, &u.Address, &u.Host); err != nil {
			return nil, fmt.Errorf("store: scan upstream: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// CreateZone inserts a new zone with its ordered upstreams. Fails if a zone
// with the same name already exists.
func (s *Store) CreateZone(ctx context.Context, z ZoneRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: create zone: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `INSERT INTO zones (name) VALUES (?)`, z.Name)
	if err != nil {
		return fmt.Errorf("store: create zone %q: %w", z.Name, err)
	}
	zoneID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("store: create zone %q: %w", z.Name, err)
	}
	if err := insertUpstreams(ctx, tx, zoneID, z.Upstreams); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateZone replaces the upstream list of an existing zone named z.Name.
func (s *Store) UpdateZone(ctx context.Context, z ZoneRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: update zone: %w", err)
	}
	defer tx.Rollback()

	var zoneID int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM zones WHERE name = ?`, z.Name).Scan(&zoneID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("store: update zone %q: %w", z.Name, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM zone_upstreams WHERE zone_id = ?`, zoneID); err != nil {
		return fmt.Errorf("store: update zone %q: %w", z.Name, err)
	}
	if err := insertUpstreams(ctx, tx, zoneID, z.Upstreams); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE zones SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`, zoneID); err != nil {
		return fmt.Errorf("store: update zone %q: %w", z.Name, err)
	}
	return tx.Commit()
}

// DeleteZone removes a zone and its upstreams.
func (s *Store) DeleteZone(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.conn.ExecContext(ctx, `DELETE FROM zones WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("store: delete zone %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: delete zone %q: %w", name, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func insertUpstreams(ctx context.Context, tx *sql.Tx, zoneID int64, ups []UpstreamRecord) error {
	if len(ups) == 0 {
		return fmt.Errorf("store: zone must have at least one upstream")
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO zone_upstreams (zone_id, priority, kind, address, host)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("store: insert upstreams: %w", err)
	}
	defer stmt.Close()

	for i, u := range ups {
		if _, err := stmt.ExecContext(ctx, zoneID, i, u.Kind, u.Address, u.Host); err != nil {
			return fmt.Errorf("store: insert upstream %s: %w", u.Address, err)
		}
	}
	return nil
}

// BuildZoneTable rebuilds a zones.Table from the persisted rows, the shape
// the resolver's zone lookups run against. Called at startup (after
// SeedFromConfig) and again on every management
// API edit, so the resolver's routing always reflects the last committed
// write.
func (s *Store) BuildZoneTable(ctx context.Context) (*zones.Table, error) {
	records, err := s.ListZones(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]zones.Entry, 0, len(records))
	for _, z := range records {
		ups := make([]zones.UpstreamSpec, 0, len(z.Upstreams))
		for _, u := range z.Upstreams {
			spec, err := toUpstreamSpec(u)
			if err != nil {
				return nil, fmt.Errorf("store: zone %q: %w", z.Name, err)
			}
			ups = append(ups, spec)
		}
		entries = append(entries, zones.Entry{Zone: dns.NewName(z.Name), Upstreams: ups})
	}
	return zones.NewTable(entries)
}

func toUpstreamSpec(u UpstreamRecord) (zones.UpstreamSpec, error) {
	switch u.Kind {
	case "udp":
		return zones.UpstreamSpec{Kind: zones.KindUDP, Address: u.Address}, nil
	case "https":
		return zones.UpstreamSpec{Kind: zones.KindDoH, Address: u.Address, Host: u.Host}, nil
	default:
		return zones.UpstreamSpec{}, fmt.Errorf("unknown upstream kind %q", u.Kind)
	}
}

// SeedFromConfig inserts zones from a YAML-loaded config, skipping any zone
// name that already exists in the database. Used once at startup so an
// operator's config file remains the bootstrap path; after that, the
// management API is authoritative.
func (s *Store) SeedFromConfig(ctx context.Context, entries []zones.Entry) error {
	existing, err := s.ListZones(ctx)
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(existing))
	for _, z := range existing {
		have[z.Name] = true
	}

	for _, e := range entries {
		name := e.Zone.String()
		if have[name] {
			continue
		}
		ups := make([]UpstreamRecord, 0, len(e.Upstreams))
		for _, u := range e.Upstreams {
			ups = append(ups, upstreamRecordFromSpec(u))
		}
		if err := s.CreateZone(ctx, ZoneRecord{Name: name, Upstreams: ups}); err != nil {
			return fmt.Errorf("store: seed zone %q: %w", name, err)
		}
	}
	return nil
}

func upstreamRecordFromSpec(u zones.UpstreamSpec) UpstreamRecord {
	kind := "udp"
	if u.Kind == zones.KindDoH {
		kind = "https"
	}
	return UpstreamRecord{Kind: kind, Address: u.Address, Host: u.Host}
}
