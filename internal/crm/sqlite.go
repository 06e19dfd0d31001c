package crm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLStore reads the CRM application's SQLite database. All queries filter
// by tenant_id; the store never writes.
type SQLStore struct {
	db *sql.DB
}

// OpenSQLStore opens the CRM database at path in read-only mode.
func OpenSQLStore(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open CRM database: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// NewSQLStore wraps an existing database handle. Used by tests that seed
// their own schema.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Close releases the underlying database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) Snapshot(ctx context.Context, tenantID string, entityType EntityType, id string) (*Snapshot, error) {
	switch entityType {
	case EntityDeal:
		d, err := s.Deal(ctx, tenantID, id)
		if err != nil {
			return nil, err
		}
		return SnapshotFromDeal(d), nil
	case EntityContact:
		c, err := s.Contact(ctx, tenantID, id)
		if err != nil {
			return nil, err
		}
		return SnapshotFromContact(c), nil
	case EntityActivity:
		a, err := s.activity(ctx, tenantID, id)
		if err != nil {
			return nil, err
		}
		return SnapshotFromActivity(a), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEntityType, entityType)
}

func (s *SQLStore) ListIDs(ctx context.Context, tenantID string, entityType EntityType, limit int) ([]string, error) {
	table, err := tableFor(entityType)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT id FROM %s WHERE tenant_id = ? ORDER BY created_at, id", table)
	if entityType == EntityActivity {
		query = "SELECT id FROM activities WHERE tenant_id = ? ORDER BY occurred_at, id"
	}
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s ids: %w", entityType, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLStore) Deal(ctx context.Context, tenantID, id string) (*Deal, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, title, stage, status, value, stage_entered_at, created_at
		 FROM deals WHERE tenant_id = ? AND id = ?`, tenantID, id)

	var d Deal
	var stageEntered, created int64
	err := row.Scan(&d.ID, &d.TenantID, &d.Title, &d.Stage, &d.Status, &d.Value, &stageEntered, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: deal %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read deal: %w", err)
	}
	d.StageEnteredAt = time.Unix(stageEntered, 0).UTC()
	d.CreatedAt = time.Unix(created, 0).UTC()
	return &d, nil
}

func (s *SQLStore) Contact(ctx context.Context, tenantID, id string) (*Contact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, name, title, company, email, created_at
		 FROM contacts WHERE tenant_id = ? AND id = ?`, tenantID, id)

	var c Contact
	var created int64
	err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.Title, &c.Company, &c.Email, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: contact %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read contact: %w", err)
	}
	c.CreatedAt = time.Unix(created, 0).UTC()
	return &c, nil
}

func (s *SQLStore) activity(ctx context.Context, tenantID, id string) (*Activity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, deal_id, contact_id, kind, subject, note, occurred_at
		 FROM activities WHERE tenant_id = ? AND id = ?`, tenantID, id)

	a, err := scanActivity(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: activity %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read activity: %w", err)
	}
	return a, nil
}

func (s *SQLStore) Activities(ctx context.Context, tenantID string, entityType EntityType, entityID string, limit int) ([]Activity, error) {
	col, err := activityLinkColumn(entityType)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(
		`SELECT id, tenant_id, deal_id, contact_id, kind, subject, note, occurred_at
		 FROM activities WHERE tenant_id = ? AND %s = ? ORDER BY occurred_at DESC`, col)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, tenantID, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	var activities []Activity
	for rows.Next() {
		a, err := scanActivity(rows.Scan)
		if err != nil {
			return nil, err
		}
		activities = append(activities, *a)
	}
	return activities, rows.Err()
}

func (s *SQLStore) CountActivities(ctx context.Context, tenantID string, entityType EntityType, entityID string) (int, error) {
	col, err := activityLinkColumn(entityType)
	if err != nil {
		return 0, err
	}
	var n int
	query := fmt.Sprintf("SELECT COUNT(*) FROM activities WHERE tenant_id = ? AND %s = ?", col)
	if err := s.db.QueryRowContext(ctx, query, tenantID, entityID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count activities: %w", err)
	}
	return n, nil
}

func (s *SQLStore) CountEntities(ctx context.Context, tenantID string, entityType EntityType) (int, error) {
	table, err := tableFor(entityType)
	if err != nil {
		return 0, err
	}
	var n int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE tenant_id = ?", table)
	if err := s.db.QueryRowContext(ctx, query, tenantID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", entityType, err)
	}
	return n, nil
}

func tableFor(entityType EntityType) (string, error) {
	switch entityType {
	case EntityDeal:
		return "deals", nil
	case EntityContact:
		return "contacts", nil
	case EntityActivity:
		return "activities", nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEntityType, entityType)
}

func activityLinkColumn(entityType EntityType) (string, error) {
	switch entityType {
	case EntityDeal:
		return "deal_id", nil
	case EntityContact:
		return "contact_id", nil
	}
	return "", fmt.Errorf("%w: activities are linked to deals or contacts, not %q", ErrUnknownEntityType, entityType)
}

func scanActivity(scan func(dest ...any) error) (*Activity, error) {
	var a Activity
	var dealID, contactID, note sql.NullString
	var occurred int64
	if err := scan(&a.ID, &a.TenantID, &dealID, &contactID, &a.Kind, &a.Subject, &note, &occurred); err != nil {
		return nil, err
	}
	a.DealID = dealID.String
	a.ContactID = contactID.String
	a.Note = note.String
	a.OccurredAt = time.Unix(occurred, 0).UTC()
	return &a, nil
}
