package history

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "raido-history-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seed(t *testing.T, db *DB, recs ...models.HistoryRecord) {
	t.Helper()
	for _, r := range recs {
		if err := db.Insert(r); err != nil {
			t.Fatal(err)
		}
	}
}

func TestInsertAndReadAll(t *testing.T) {
	db := testDB(t)
	seed(t, db,
		models.HistoryRecord{ID: "r1", Prompt: "<lora:a:1.0>, scenic", Timestamp: time.Now().Add(-time.Hour)},
		models.HistoryRecord{ID: "r2", Prompt: "portrait", Timestamp: time.Now()},
	)
	recs, err := db.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("len = %d, want 2", len(recs))
	}
	// Newest first.
	if recs[0].ID != "r2" {
		t.Errorf("order: first = %s", recs[0].ID)
	}
}

func TestWriteBatch_Atomic(t *testing.T) {
	db := testDB(t)
	seed(t, db,
		models.HistoryRecord{ID: "r1", Prompt: "old one"},
		models.HistoryRecord{ID: "r2", Prompt: "old two"},
	)

	// A batch containing an unknown id must not apply any update.
	err := db.WriteBatch(map[string]string{
		"r1":      "new one",
		"missing": "x",
	})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	rec, err := db.Get("r1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Prompt != "old one" {
		t.Errorf("prompt = %q, partial batch became visible", rec.Prompt)
	}

	// A valid batch applies fully.
	if err := db.WriteBatch(map[string]string{"r1": "new one", "r2": "new two"}); err != nil {
		t.Fatal(err)
	}
	rec, _ = db.Get("r2")
	if rec.Prompt != "new two" {
		t.Errorf("prompt = %q", rec.Prompt)
	}
}

func TestWriteBatch_Empty(t *testing.T) {
	db := testDB(t)
	if err := db.WriteBatch(nil); err != nil {
		t.Errorf("empty batch: %v", err)
	}
}

func TestListPage_SearchAndPagination(t *testing.T) {
	db := testDB(t)
	base := time.Now()
	seed(t, db,
		models.HistoryRecord{ID: "r1", ModelID: "m1", Prompt: "a castle at dusk", Timestamp: base.Add(-3 * time.Hour)},
		models.HistoryRecord{ID: "r2", ModelID: "m1", Prompt: "a castle at dawn", Timestamp: base.Add(-2 * time.Hour)},
		models.HistoryRecord{ID: "r3", ModelID: "m2", Prompt: "portrait", Timestamp: base.Add(-time.Hour)},
	)

	recs, total, err := db.ListPage(1, 10, "", "castle")
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(recs) != 2 {
		t.Errorf("total = %d, len = %d", total, len(recs))
	}

	recs, total, err = db.ListPage(2, 1, "m1", "")
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(recs) != 1 {
		t.Fatalf("total = %d, len = %d", total, len(recs))
	}
	if recs[0].ID != "r1" {
		t.Errorf("page 2 = %s", recs[0].ID)
	}
}

func TestGet_NotFound(t *testing.T) {
	db := testDB(t)
	if _, err := db.Get("nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestSearch_Fallback(t *testing.T) {
	db := testDB(t)
	seed(t, db, models.HistoryRecord{ID: "r1", Prompt: "a misty mountain"})
	hits, err := db.Search("misty", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != "r1" {
		t.Errorf("hits = %v", hits)
	}
}
