package cache

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"imagebatch/internal/models"
)

func record(id string, finished time.Time) models.JobRecord {
	return models.JobRecord{
		ID:         id,
		Status:     models.JobStatusCompleted,
		CreatedAt:  finished.Add(-time.Minute),
		FinishedAt: &finished,
		History: []models.Snapshot{
			{Message: "Found 1 images in 1 folders."},
			{Message: "Process completed!", IsComplete: true, OverallProgress: 1.0},
		},
	}
}

func TestMemoryArchive_SaveLoad(t *testing.T) {
	ma := NewMemoryArchive(time.Hour, time.Hour)
	defer ma.Close()
	ctx := context.Background()

	if err := ma.Save(ctx, record("a", time.Now())); err != nil {
		t.Fatalf("Save: %v", err)
	}
	rec, err := ma.Load(ctx, "a")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rec.ID != "a" || len(rec.History) != 2 {
		t.Errorf("record = %+v", rec)
	}
	if last := rec.LastUpdate(); last == nil || !last.IsComplete {
		t.Errorf("last update = %+v", last)
	}

	// Returned records are copies.
	rec.History[0].Message = "mutated"
	again, _ := ma.Load(ctx, "a")
	if again.History[0].Message == "mutated" {
		t.Error("archive exposed internal history")
	}

	if _, err := ma.Load(ctx, "missing"); !errors.Is(err, ErrNotArchived) {
		t.Errorf("err = %v, want ErrNotArchived", err)
	}
	if err := ma.Save(ctx, models.JobRecord{}); err == nil {
		t.Error("record without id accepted")
	}

	stats := ma.Stats()
	if stats["hits"].(int64) != 2 || stats["misses"].(int64) != 1 {
		t.Errorf("stats = %v", stats)
	}
}

func TestMemoryArchive_Expiry(t *testing.T) {
	ma := NewMemoryArchive(20*time.Millisecond, 10*time.Millisecond)
	defer ma.Close()
	ctx := context.Background()

	ma.Save(ctx, record("a", time.Now()))
	time.Sleep(100 * time.Millisecond)

	if _, err := ma.Load(ctx, "a"); !errors.Is(err, ErrNotArchived) {
		t.Errorf("expired record still loadable: %v", err)
	}
	if recs, _ := ma.List(ctx, 0); len(recs) != 0 {
		t.Errorf("expired record listed: %+v", recs)
	}
	if ma.Stats()["evictions"].(int64) == 0 {
		t.Error("cleanup loop did not evict")
	}
}

func TestMemoryArchive_ListNewestFirst(t *testing.T) {
	ma := NewMemoryArchive(time.Hour, time.Hour)
	defer ma.Close()
	ctx := context.Background()

	base := time.Now()
	ma.Save(ctx, record("old", base.Add(-2*time.Hour)))
	ma.Save(ctx, record("new", base))
	ma.Save(ctx, record("mid", base.Add(-time.Hour)))

	recs, err := ma.List(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, r := range recs {
		ids = append(ids, r.ID)
	}
	if len(ids) != 3 || ids[0] != "new" || ids[1] != "mid" || ids[2] != "old" {
		t.Errorf("order = %v", ids)
	}

	recs, _ = ma.List(ctx, 2)
	if len(recs) != 2 {
		t.Errorf("limit ignored: %d records", len(recs))
	}
}

func TestMemoryArchive_CloseTwice(t *testing.T) {
	ma := NewMemoryArchive(time.Hour, time.Hour)
	ma.Close()
	ma.Close()
}

// Runs against a real server when IMAGEBATCH_TEST_REDIS is set (e.g. localhost:6379).
func TestRedisArchive_RoundTrip(t *testing.T) {
	addr := os.Getenv("IMAGEBATCH_TEST_REDIS")
	if addr == "" {
		t.Skip("IMAGEBATCH_TEST_REDIS not set")
	}

	ra, err := NewRedisArchive(NewRedisClient(addr, "", 15), time.Minute)
	if err != nil {
		t.Fatalf("NewRedisArchive: %v", err)
	}
	defer ra.Close()
	ctx := context.Background()

	id := "test-" + time.Now().Format("150405.000000")
	if err := ra.Save(ctx, record(id, time.Now())); err != nil {
		t.Fatalf("Save: %v", err)
	}
	rec, err := ra.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rec.ID != id || rec.Status != models.JobStatusCompleted || len(rec.History) != 2 {
		t.Errorf("record = %+v", rec)
	}
	if _, err := ra.Load(ctx, id+"-missing"); !errors.Is(err, ErrNotArchived) {
		t.Errorf("err = %v, want ErrNotArchived", err)
	}

	recs, err := ra.List(ctx, 1)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != id {
		t.Errorf("List = %+v", recs)
	}
}

func TestDecodeRecords(t *testing.T) {
	now := time.Now()
	a, err := json.Marshal(record("a", now))
	if err != nil {
		t.Fatal(err)
	}
	c, err := json.Marshal(record("c", now))
	if err != nil {
		t.Fatal(err)
	}

	recs, stale, err := decodeRecords([]string{"a", "b", "c"}, []interface{}{string(a), nil, c})
	if err != nil {
		t.Fatalf("decodeRecords: %v", err)
	}
	if len(recs) != 2 || recs[0].ID != "a" || recs[1].ID != "c" {
		t.Errorf("records = %+v", recs)
	}
	if len(stale) != 1 || stale[0] != "b" {
		t.Errorf("stale = %v", stale)
	}

	if _, _, err := decodeRecords([]string{"a"}, []interface{}{"{not json"}); err == nil {
		t.Error("expected a decode error")
	}
	if _, _, err := decodeRecords([]string{"a", "b"}, []interface{}{string(a)}); err == nil {
		t.Error("expected an error for a short reply")
	}
}

func TestRedisArchive_ListPrunesExpiredRecords(t *testing.T) {
	addr := os.Getenv("IMAGEBATCH_TEST_REDIS")
	if addr == "" {
		t.Skip("IMAGEBATCH_TEST_REDIS not set")
	}

	client := NewRedisClient(addr, "", 15)
	ra, err := NewRedisArchive(client, time.Minute)
	if err != nil {
		t.Fatalf("NewRedisArchive: %v", err)
	}
	defer ra.Close()
	ctx := context.Background()

	suffix := time.Now().Format("150405.000000")
	kept, gone := "keep-"+suffix, "gone-"+suffix
	now := time.Now()
	if err := ra.Save(ctx, record(kept, now)); err != nil {
		t.Fatal(err)
	}
	if err := ra.Save(ctx, record(gone, now.Add(time.Second))); err != nil {
		t.Fatal(err)
	}
	// simulate the record expiring while its index entry remains
	if err := client.Del(ctx, ra.jobKey(gone)).Err(); err != nil {
		t.Fatal(err)
	}

	recs, err := ra.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != kept {
		t.Errorf("List = %+v", recs)
	}
	if err := client.ZScore(ctx, ra.index, gone).Err(); err == nil {
		t.Error("expired id still indexed")
	}
}
