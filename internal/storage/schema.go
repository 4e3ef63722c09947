package storage

// Schema creates the projects and results tables.
const Schema = `
CREATE TABLE IF NOT EXISTS projects (
    name TEXT PRIMARY KEY,
    script TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'STOP',
    rate REAL NOT NULL DEFAULT 1,
    burst INTEGER NOT NULL DEFAULT 3,
    comment TEXT NOT NULL DEFAULT '',
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS results (
    project TEXT NOT NULL,
    taskid TEXT NOT NULL,
    url TEXT NOT NULL,
    result TEXT NOT NULL,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (project, taskid)
);

CREATE INDEX IF NOT EXISTS idx_results_project ON results(project);
`
