package db

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"racksum/internal/models"
)

const configColumns = `c.id, c.site_id, s.name, c.name, COALESCE(c.description, ''), c.config_data, c.created_at, c.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (d *DB) handle() (*sql.DB, func(), error) {
	d.mu.RLock()
	if d.conn == nil {
		d.mu.RUnlock()
		return nil, nil, errors.New("database closed")
	}
	return d.conn, d.mu.RUnlock, nil
}

// ListSites retrieves all sites ordered by name
func (d *DB) ListSites(ctx context.Context) ([]models.Site, error) {
	conn, done, err := d.handle()
	if err != nil {
		return nil, err
	}
	defer done()

	rows, err := conn.QueryContext(ctx, "SELECT id, name, COALESCE(description, ''), created_at, updated_at FROM sites ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sites := []models.Site{}
	for rows.Next() {
		var s models.Site
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		sites = append(sites, s)
	}
	return sites, rows.Err()
}

// GetSite retrieves a single site by ID
func (d *DB) GetSite(ctx context.Context, id int64) (models.Site, error) {
	conn, done, err := d.handle()
	if err != nil {
		return models.Site{}, err
	}
	defer done()

	var s models.Site
	err = conn.QueryRowContext(ctx, "SELECT id, name, COALESCE(description, ''), created_at, updated_at FROM sites WHERE id = ?", id).
		Scan(&s.ID, &s.Name, &s.Description, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return s, fmt.Errorf("site %d: %w", id, ErrNotFound)
	}
	return s, err
}

// CreateSite adds a new site. The name is trimmed and must be unique.
func (d *DB) CreateSite(ctx context.Context, name, description string) (models.Site, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Site{}, fmt.Errorf("site %w", ErrNameRequired)
	}

	conn, done, err := d.handle()
	if err != nil {
		return models.Site{}, err
	}
	defer done()

	now := time.Now().UTC()
	result, err := conn.ExecContext(ctx, "INSERT INTO sites (name, description, created_at, updated_at) VALUES (?, ?, ?, ?)",
		name, nullable(description), now, now)
	if isUniqueViolation(err) {
		return models.Site{}, ErrSiteExists
	}
	if err != nil {
		return models.Site{}, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return models.Site{}, err
	}
	return models.Site{ID: id, Name: name, Description: description, CreatedAt: now, UpdatedAt: now}, nil
}

// UpdateSite renames a site and replaces its description
func (d *DB) UpdateSite(ctx context.Context, id int64, name, description string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("site %w", ErrNameRequired)
	}

	conn, done, err := d.handle()
	if err != nil {
		return err
	}
	defer done()

	result, err := conn.ExecContext(ctx, "UPDATE sites SET name=?, description=?, updated_at=? WHERE id=?",
		name, nullable(description), time.Now().UTC(), id)
	if isUniqueViolation(err) {
		return ErrSiteExists
	}
	if err != nil {
		return err
	}
	return expectRow(result, "site", id)
}

// DeleteSite deletes a site and, by cascade, its configurations
func (d *DB) DeleteSite(ctx context.Context, id int64) error {
	conn, done, err := d.handle()
	if err != nil {
		return err
	}
	defer done()

	result, err := conn.ExecContext(ctx, "DELETE FROM sites WHERE id=?", id)
	if err != nil {
		return err
	}
	return expectRow(result, "site", id)
}

func expectRow(result sql.Result, kind string, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
	}
	return nil
}

// SaveConfiguration stores data under (siteID, name), replacing any existing
// configuration with that name.
func (d *DB) SaveConfiguration(ctx context.Context, siteID int64, name string, data json.RawMessage, description string) error {
	_, _, err := d.UpsertConfiguration(ctx, siteID, name, data, description)
	return err
}

// UpsertConfiguration creates or updates the configuration keyed by (siteID, name)
// and reports whether it was created.
func (d *DB) UpsertConfiguration(ctx context.Context, siteID int64, name string, data json.RawMessage, description string) (models.SavedConfiguration, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.SavedConfiguration{}, false, fmt.Errorf("rack %w", ErrNameRequired)
	}
	if !isObject(data) {
		return models.SavedConfiguration{}, false, ErrInvalidConfigData
	}

	conn, done, err := d.handle()
	if err != nil {
		return models.SavedConfiguration{}, false, err
	}
	defer done()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return models.SavedConfiguration{}, false, err
	}

	var siteName string
	err = tx.QueryRowContext(ctx, "SELECT name FROM sites WHERE id = ?", siteID).Scan(&siteName)
	if errors.Is(err, sql.ErrNoRows) {
		tx.Rollback()
		return models.SavedConfiguration{}, false, fmt.Errorf("site %d: %w", siteID, ErrNotFound)
	}
	if err != nil {
		tx.Rollback()
		return models.SavedConfiguration{}, false, err
	}

	saved := models.SavedConfiguration{
		SiteID:      siteID,
		SiteName:    siteName,
		Name:        name,
		Description: description,
		ConfigData:  data,
	}
	now := time.Now().UTC()

	err = tx.QueryRowContext(ctx, "SELECT id, created_at FROM rack_configurations WHERE site_id = ? AND name = ?", siteID, name).
		Scan(&saved.ID, &saved.CreatedAt)
	created := errors.Is(err, sql.ErrNoRows)
	if err != nil && !created {
		tx.Rollback()
		return models.SavedConfiguration{}, false, err
	}

	if created {
		result, err := tx.ExecContext(ctx, "INSERT INTO rack_configurations (site_id, name, description, config_data, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
			siteID, name, nullable(description), string(data), now, now)
		if err != nil {
			tx.Rollback()
			return models.SavedConfiguration{}, false, err
		}
		if saved.ID, err = result.LastInsertId(); err != nil {
			tx.Rollback()
			return models.SavedConfiguration{}, false, err
		}
		saved.CreatedAt = now
	} else {
		_, err = tx.ExecContext(ctx, "UPDATE rack_configurations SET description=?, config_data=?, updated_at=? WHERE id=?",
			nullable(description), string(data), now, saved.ID)
		if err != nil {
			tx.Rollback()
			return models.SavedConfiguration{}, false, err
		}
	}
	saved.UpdatedAt = now

	if err = tx.Commit(); err != nil {
		return models.SavedConfiguration{}, false, err
	}
	return saved, created, nil
}

func isObject(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	return json.Valid(trimmed)
}

// ListConfigurations retrieves the configurations of one site
func (d *DB) ListConfigurations(ctx context.Context, siteID int64) ([]models.SavedConfiguration, error) {
	if _, err := d.GetSite(ctx, siteID); err != nil {
		return nil, err
	}
	return d.queryConfigurations(ctx, "WHERE c.site_id = ? ORDER BY c.name", siteID)
}

// ListAllConfigurations retrieves the configurations of every site
func (d *DB) ListAllConfigurations(ctx context.Context) ([]models.SavedConfiguration, error) {
	return d.queryConfigurations(ctx, "ORDER BY s.name, c.name")
}

func (d *DB) queryConfigurations(ctx context.Context, clause string, args ...any) ([]models.SavedConfiguration, error) {
	conn, done, err := d.handle()
	if err != nil {
		return nil, err
	}
	defer done()

	query := `SELECT ` + configColumns + ` FROM rack_configurations c JOIN sites s ON s.id = c.site_id ` + clause
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	configs := []models.SavedConfiguration{}
	for rows.Next() {
		c, err := scanConfiguration(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, c)
	}
	return configs, rows.Err()
}

// GetConfiguration retrieves the configuration named name within a site
func (d *DB) GetConfiguration(ctx context.Context, siteID int64, name string) (models.SavedConfiguration, error) {
	if _, err := d.GetSite(ctx, siteID); err != nil {
		return models.SavedConfiguration{}, err
	}

	conn, done, err := d.handle()
	if err != nil {
		return models.SavedConfiguration{}, err
	}
	defer done()

	query := `SELECT ` + configColumns + ` FROM rack_configurations c JOIN sites s ON s.id = c.site_id WHERE c.site_id = ? AND c.name = ?`
	c, err := scanConfiguration(conn.QueryRowContext(ctx, query, siteID, name))
	if errors.Is(err, sql.ErrNoRows) {
		return c, fmt.Errorf("rack configuration %q: %w", name, ErrNotFound)
	}
	return c, err
}

// DeleteConfiguration deletes a configuration by ID
func (d *DB) DeleteConfiguration(ctx context.Context, id int64) error {
	conn, done, err := d.handle()
	if err != nil {
		return err
	}
	defer done()

	result, err := conn.ExecContext(ctx, "DELETE FROM rack_configurations WHERE id=?", id)
	if err != nil {
		return err
	}
	return expectRow(result, "rack configuration", id)
}

func scanConfiguration(row rowScanner) (models.SavedConfiguration, error) {
	var (
		c    models.SavedConfiguration
		data string
	)
	if err := row.Scan(&c.ID, &c.SiteID, &c.SiteName, &c.Name, &c.Description, &data, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return c, err
	}
	c.ConfigData = json.RawMessage(data)
	return c, nil
}
