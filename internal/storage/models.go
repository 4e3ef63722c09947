// Package storage persists projects and crawl results in SQLite.
package storage

import "time"

// Project is a registered crawl project: its handler script, its
// running status, and the rate/burst the scheduler should enforce for it.
type Project struct {
	Name      string    `json:"name"`
	Script    string    `json:"script"`
	Status    string    `json:"status"` // RUNNING, STOP, CHECKING, PAUSED
	Rate      float64   `json:"rate"`
	Burst     int       `json:"burst"`
	Comment   string    `json:"comment,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Result is one saved callback return value for a task.
type Result struct {
	Project   string    `json:"project"`
	TaskID    string    `json:"taskid"`
	URL       string    `json:"url"`
	ResultRaw string    `json:"result"` // JSON-encoded result.Result
	UpdatedAt time.Time `json:"updated_at"`
}
