package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// ResultDB is the narrow append/overwrite store the ResultWorker
// writes finished task results into, keyed by (project, taskid).
type ResultDB struct {
	d *Database
}

// Save persists result (marshaled to JSON) for the given task, upserting
// on (project, taskid) the way a re-crawled URL overwrites its prior result.
func (r *ResultDB) Save(project, taskid, url string, result interface{}) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("storage: marshal result for %s:%s: %w", project, taskid, err)
	}

	r.d.mu.Lock()
	defer r.d.mu.Unlock()

	_, err = r.d.db.Exec(`
		INSERT INTO results (project, taskid, url, result, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(project, taskid) DO UPDATE SET
			url = excluded.url,
			result = excluded.result,
			updated_at = excluded.updated_at
	`, project, taskid, url, string(raw), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("storage: save result %s:%s: %w", project, taskid, err)
	}
	return nil
}

// Get returns the raw stored result for (project, taskid), or (nil, nil)
// if no result has been saved yet.
func (r *ResultDB) Get(project, taskid string) (*Result, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()

	row := r.d.db.QueryRow(
		`SELECT project, taskid, url, result, updated_at FROM results WHERE project = ? AND taskid = ?`,
		project, taskid,
	)
	var res Result
	if err := row.Scan(&res.Project, &res.TaskID, &res.URL, &res.ResultRaw, &res.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: get result %s:%s: %w", project, taskid, err)
	}
	return &res, nil
}

// ListByProject returns every result saved for project, most recently
// updated first.
func (r *ResultDB) ListByProject(project string) ([]*Result, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()

	rows, err := r.d.db.Query(
		`SELECT project, taskid, url, result, updated_at FROM results WHERE project = ? ORDER BY updated_at DESC`,
		project,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list results for %s: %w", project, err)
	}
	defer rows.Close()

	var results []*Result
	for rows.Next() {
		var res Result
		if err := rows.Scan(&res.Project, &res.TaskID, &res.URL, &res.ResultRaw, &res.UpdatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan result: %w", err)
		}
		results = append(results, &res)
	}
	return results, rows.Err()
}
