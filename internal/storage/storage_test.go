package storage

import (
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "spider.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestProjectDBUpsertAndGet(t *testing.T) {
	db := openTestDB(t)
	pdb := db.ProjectDB()

	proj := &Project{Name: "demo", Script: "", Status: "RUNNING", Rate: 1, Burst: 3}
	if err := pdb.Upsert(proj); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := pdb.Get("demo")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil || got.Status != "RUNNING" {
		t.Fatalf("Get() = %+v, want status RUNNING", got)
	}

	proj.Status = "STOP"
	if err := pdb.Upsert(proj); err != nil {
		t.Fatalf("Upsert() (update) error = %v", err)
	}
	got, err = pdb.Get("demo")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != "STOP" {
		t.Fatalf("Status = %q, want STOP after re-upsert", got.Status)
	}
}

func TestProjectDBGetMissingReturnsNilNil(t *testing.T) {
	db := openTestDB(t)
	got, err := db.ProjectDB().Get("nonexistent")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != nil {
		t.Fatalf("Get() = %+v, want nil for a missing project", got)
	}
}

func TestProjectDBSetStatusRejectsUnknownProject(t *testing.T) {
	db := openTestDB(t)
	if err := db.ProjectDB().SetStatus("ghost", "RUNNING"); err == nil {
		t.Fatal("SetStatus() on a missing project should return an error")
	}
}

func TestProjectDBList(t *testing.T) {
	db := openTestDB(t)
	pdb := db.ProjectDB()
	pdb.Upsert(&Project{Name: "b", Status: "RUNNING"})
	pdb.Upsert(&Project{Name: "a", Status: "STOP"})

	projects, err := pdb.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(projects) != 2 || projects[0].Name != "a" {
		t.Fatalf("List() = %+v, want [a, b] in name order", projects)
	}
}

func TestResultDBSaveAndGet(t *testing.T) {
	db := openTestDB(t)
	rdb := db.ResultDB()

	if err := rdb.Save("demo", "abc123", "http://example.com", map[string]interface{}{"title": "hi"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := rdb.Get("demo", "abc123")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil || got.URL != "http://example.com" {
		t.Fatalf("Get() = %+v, want url http://example.com", got)
	}
}

func TestResultDBSaveOverwritesOnReCrawl(t *testing.T) {
	db := openTestDB(t)
	rdb := db.ResultDB()

	rdb.Save("demo", "abc123", "http://example.com", "first")
	rdb.Save("demo", "abc123", "http://example.com", "second")

	got, err := rdb.Get("demo", "abc123")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ResultRaw != `"second"` {
		t.Fatalf("ResultRaw = %q, want the re-crawled value", got.ResultRaw)
	}
}

func TestResultDBGetMissingReturnsNilNil(t *testing.T) {
	db := openTestDB(t)
	got, err := db.ResultDB().Get("demo", "nope")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != nil {
		t.Fatalf("Get() = %+v, want nil for a missing result", got)
	}
}

func TestResultDBListByProject(t *testing.T) {
	db := openTestDB(t)
	rdb := db.ResultDB()
	rdb.Save("demo", "1", "http://a", "a")
	rdb.Save("demo", "2", "http://b", "b")
	rdb.Save("other", "3", "http://c", "c")

	results, err := rdb.ListByProject("demo")
	if err != nil {
		t.Fatalf("ListByProject() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
}
