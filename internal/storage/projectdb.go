package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// ProjectDB is the narrow key-value view over the projects table:
// name, script, status, and rate/burst overrides, the same shape
// pyspider's own ProjectDB exposes regardless of backend.
type ProjectDB struct {
	d *Database
}

// Get returns a single project by name, or (nil, nil) if it doesn't exist.
func (p *ProjectDB) Get(name string) (*Project, error) {
	p.d.mu.RLock()
	defer p.d.mu.RUnlock()

	row := p.d.db.QueryRow(
		`SELECT name, script, status, rate, burst, comment, updated_at FROM projects WHERE name = ?`,
		name,
	)
	var proj Project
	if err := row.Scan(&proj.Name, &proj.Script, &proj.Status, &proj.Rate, &proj.Burst, &proj.Comment, &proj.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: get project %s: %w", name, err)
	}
	return &proj, nil
}

// List returns every project, regardless of status.
func (p *ProjectDB) List() ([]*Project, error) {
	p.d.mu.RLock()
	defer p.d.mu.RUnlock()

	rows, err := p.d.db.Query(`SELECT name, script, status, rate, burst, comment, updated_at FROM projects ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("storage: list projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		var proj Project
		if err := rows.Scan(&proj.Name, &proj.Script, &proj.Status, &proj.Rate, &proj.Burst, &proj.Comment, &proj.UpdatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan project: %w", err)
		}
		projects = append(projects, &proj)
	}
	return projects, rows.Err()
}

// Upsert inserts proj or, if a project with the same name already
// exists, overwrites it — the "stop/start/update a running project"
// path used by operators rather than the crawl loop itself.
func (p *ProjectDB) Upsert(proj *Project) error {
	p.d.mu.Lock()
	defer p.d.mu.Unlock()

	_, err := p.d.db.Exec(`
		INSERT INTO projects (name, script, status, rate, burst, comment, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			script = excluded.script,
			status = excluded.status,
			rate = excluded.rate,
			burst = excluded.burst,
			comment = excluded.comment,
			updated_at = excluded.updated_at
	`, proj.Name, proj.Script, proj.Status, proj.Rate, proj.Burst, proj.Comment, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("storage: upsert project %s: %w", proj.Name, err)
	}
	return nil
}

// SetStatus updates only a project's status (RUNNING/STOP/CHECKING/PAUSED).
func (p *ProjectDB) SetStatus(name, status string) error {
	p.d.mu.Lock()
	defer p.d.mu.Unlock()

	res, err := p.d.db.Exec(
		`UPDATE projects SET status = ?, updated_at = ? WHERE name = ?`,
		status, time.Now().UTC(), name,
	)
	if err != nil {
		return fmt.Errorf("storage: set status for %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("storage: project %s not found", name)
	}
	return nil
}
