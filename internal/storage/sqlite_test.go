package storage_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hazz-dev/pingwatch/internal/logfile"
	"github.com/hazz-dev/pingwatch/internal/storage"
)

func openTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening in-memory DB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func makeRecord(i int, success bool) logfile.Record {
	msg := fmt.Sprintf("✓ Successfully pinged http://api.test/%d: 200", i)
	if !success {
		msg = fmt.Sprintf("⚠ Ping failed for http://api.test/%d: 503", i)
	}
	return logfile.Record{
		Timestamp: time.Date(2024, 3, 1, 12, 0, i, 0, time.UTC).Format("2006-01-02 15:04:05"),
		Message:   msg,
		Success:   success,
	}
}

func TestOpen_CreatesSchema(t *testing.T) {
	db := openTestDB(t)
	// If we can insert, schema is correct.
	if err := db.InsertRecord(context.Background(), makeRecord(0, true)); err != nil {
		t.Fatalf("InsertRecord after Open: %v", err)
	}
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.db")
	db, err := storage.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.InsertRecord(context.Background(), makeRecord(1, true)); err != nil {
		t.Fatal(err)
	}
	db.Close()

	// Reopening keeps the archive.
	db, err = storage.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	got, err := db.Latest(context.Background())
	if err != nil || got == nil {
		t.Fatalf("Latest after reopen: %v, %v", got, err)
	}
}

func TestInsertRecord_And_Latest(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	r := makeRecord(7, false)
	if err := db.InsertRecord(ctx, r); err != nil {
		t.Fatalf("InsertRecord: %v", err)
	}

	got, err := db.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got == nil {
		t.Fatal("expected a record, got nil")
	}
	if diff := cmp.Diff(r, got.Record()); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
	if got.ArchivedAt.IsZero() {
		t.Error("expected archived_at to be set")
	}
}

func TestLatest_ReturnsNilWhenEmpty(t *testing.T) {
	db := openTestDB(t)
	got, err := db.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for empty archive, got %+v", got)
	}
}

func TestLatest_FollowsInsertionOrder(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, r := range []logfile.Record{makeRecord(1, true), makeRecord(2, false)} {
		if err := db.Show(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	got, err := db.Latest(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.Success {
		t.Errorf("expected the last inserted record, got %+v", got)
	}
}

func TestRecent_Pagination(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := db.InsertRecord(ctx, makeRecord(i, true)); err != nil {
			t.Fatal(err)
		}
	}

	entries, total, err := db.Recent(ctx, 5, 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if total != 10 {
		t.Errorf("expected total 10, got %d", total)
	}
	if len(entries) != 5 {
		t.Fatalf("expected 5 results, got %d", len(entries))
	}
	if entries[0].Record() != makeRecord(9, true) {
		t.Errorf("expected newest first, got %+v", entries[0])
	}

	// Second page
	entries2, total2, err := db.Recent(ctx, 5, 5)
	if err != nil {
		t.Fatal(err)
	}
	if total2 != 10 {
		t.Errorf("expected total 10 on page 2, got %d", total2)
	}
	if len(entries2) != 5 || entries2[4].Record() != makeRecord(0, true) {
		t.Errorf("unexpected page 2: %+v", entries2)
	}
}

func TestRecent_EmptyDB(t *testing.T) {
	db := openTestDB(t)
	entries, total, err := db.Recent(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if total != 0 || len(entries) != 0 {
		t.Errorf("expected empty result, got %d/%d", len(entries), total)
	}
}

func TestSummarize(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := db.InsertRecord(ctx, makeRecord(i, true)); err != nil {
			t.Fatal(err)
		}
		if err := db.InsertRecord(ctx, makeRecord(i, false)); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name string
		last int
		want storage.Summary
	}{
		{"all", 0, storage.Summary{Total: 10, Successes: 5, Percent: 50}},
		{"last 4", 4, storage.Summary{Total: 4, Successes: 2, Percent: 50}},
		{"last 1", 1, storage.Summary{Total: 1, Successes: 0, Percent: 0}},
		{"more than stored", 100, storage.Summary{Total: 10, Successes: 5, Percent: 50}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.Summarize(ctx, tt.last)
			if err != nil {
				t.Fatalf("Summarize: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("summary mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSummarize_EmptyDB(t *testing.T) {
	db := openTestDB(t)
	got, err := db.Summarize(context.Background(), 0)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != (storage.Summary{}) {
		t.Errorf("expected zero summary, got %+v", got)
	}
}

func TestEntry_Time(t *testing.T) {
	e := storage.Entry{Timestamp: "2024-03-01 12:00:05"}
	if want := time.Date(2024, 3, 1, 12, 0, 5, 0, time.UTC); !e.Time().Equal(want) {
		t.Errorf("expected %v, got %v", want, e.Time())
	}

	archived := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e = storage.Entry{Timestamp: "garbage", ArchivedAt: archived}
	if !e.Time().Equal(archived) {
		t.Errorf("expected fallback to archived_at, got %v", e.Time())
	}
}

func TestClose(t *testing.T) {
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
