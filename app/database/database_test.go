package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "triage.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	version, dirty, err := RunMigrations(db)
	if err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	if version != 1 || dirty {
		t.Fatalf("Expected clean migration version 1, got %d (dirty=%v)", version, dirty)
	}

	return db
}

func TestRunMigrationsIdempotent(t *testing.T) {
	db := setupTestDB(t)

	version, dirty, err := RunMigrations(db)
	if err != nil {
		t.Fatalf("Expected second migration run to succeed, got %v", err)
	}
	if version != 1 || dirty {
		t.Errorf("Expected version 1, got %d (dirty=%v)", version, dirty)
	}
}

func TestSourceRepositoryUpsertAndState(t *testing.T) {
	ctx := context.Background()
	repo := NewSourceRepository(setupTestDB(t))

	cfg := SourceConfig{Name: "hn", Title: "Hacker News", FeedURL: "https://hn.example/rss", Enabled: true, ItemIDStrategy: "guid"}
	if err := repo.UpsertSource(ctx, cfg); err != nil {
		t.Fatal(err)
	}

	source, err := repo.GetSource(ctx, "hn")
	if err != nil {
		t.Fatal(err)
	}
	if source == nil {
		t.Fatal("Expected source to exist")
	}
	if !source.Enabled || source.Status != "ok" || source.FailedItems != "[]" {
		t.Errorf("Unexpected defaults: %+v", source)
	}

	status := "unstable"
	fetchStatus := "timeout"
	fails := 2
	fetched := int64(1234)
	ledger := `[{"item_key":"k"}]`
	err = repo.UpdateSourceState(ctx, "hn", SourceUpdate{
		Status:               &status,
		LastFetchStatus:      &fetchStatus,
		ConsecutiveFailCount: &fails,
		LastFetchMs:          &fetched,
		FailedItems:          &ledger,
	})
	if err != nil {
		t.Fatal(err)
	}

	cfg.Enabled = false
	cfg.FeedURL = "https://hn.example/new"
	if err := repo.UpsertSource(ctx, cfg); err != nil {
		t.Fatal(err)
	}

	source, err = repo.GetSource(ctx, "hn")
	if err != nil {
		t.Fatal(err)
	}
	if source.Status != "unstable" || source.LastFetchStatus != "timeout" || source.ConsecutiveFailCount != 2 {
		t.Errorf("Expected run state to survive a config sync, got %+v", source)
	}
	if source.LastFetchMs != 1234 || source.FailedItems != ledger {
		t.Errorf("Unexpected state fields: %+v", source)
	}
	if source.Enabled || source.FeedURL != "https://hn.example/new" {
		t.Errorf("Expected config fields to be updated, got %+v", source)
	}
	if source.LastItemKey != "" {
		t.Errorf("Expected untouched last item key, got %q", source.LastItemKey)
	}
}

func TestSourceRepositoryMissing(t *testing.T) {
	ctx := context.Background()
	repo := NewSourceRepository(setupTestDB(t))

	source, err := repo.GetSource(ctx, "absent")
	if err != nil {
		t.Fatal(err)
	}
	if source != nil {
		t.Errorf("Expected nil source, got %+v", source)
	}

	status := "ok"
	if err := repo.UpdateSourceState(ctx, "absent", SourceUpdate{Status: &status}); err == nil {
		t.Error("Expected error when updating a missing source")
	}
	if err := repo.UpdateSourceState(ctx, "absent", SourceUpdate{}); err != nil {
		t.Errorf("Expected empty update to be a no-op, got %v", err)
	}
}

func TestSourceRepositoryList(t *testing.T) {
	ctx := context.Background()
	repo := NewSourceRepository(setupTestDB(t))

	for _, name := range []string{"b", "a", "c"} {
		if err := repo.UpsertSource(ctx, SourceConfig{Name: name, Enabled: true}); err != nil {
			t.Fatal(err)
		}
	}

	sources, err := repo.ListSources(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != 3 || sources[0].Name != "a" || sources[2].Name != "c" {
		t.Errorf("Expected sources ordered by name, got %+v", sources)
	}

	count, err := repo.GetSourceCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("Expected 3 sources, got %d", count)
	}
}

func TestRecordRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewRecordRepository(setupTestDB(t))

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var ids []string
	for i, key := range []string{"k1", "k2", "k3"} {
		id, err := repo.CreateRecord(ctx, Record{
			ItemKey:    key,
			Source:     "hn",
			Title:      "Title " + key,
			Score:      7.5,
			Categories: []string{"AI"},
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatal(err)
		}
		if id == "" {
			t.Fatal("Expected generated record id")
		}
		ids = append(ids, id)
	}

	keys, err := repo.RecentItemKeys(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0] != "k3" || keys[1] != "k2" {
		t.Errorf("Expected newest keys first, got %v", keys)
	}

	if err := repo.SetFeatured(ctx, []string{ids[0]}, true); err != nil {
		t.Fatal(err)
	}

	featured := true
	records, err := repo.ListRecords(ctx, RecordFilter{Featured: &featured})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].ItemKey != "k1" || !records[0].Featured {
		t.Errorf("Expected only k1 to be featured, got %+v", records)
	}
	if len(records[0].Categories) != 1 || records[0].Categories[0] != "AI" {
		t.Errorf("Expected categories to round-trip, got %v", records[0].Categories)
	}

	page, err := repo.ListRecords(ctx, RecordFilter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 1 || page[0].ItemKey != "k2" {
		t.Errorf("Expected second newest record, got %+v", page)
	}

	count, err := repo.GetRecordCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("Expected 3 records, got %d", count)
	}
}

func TestNotificationRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewNotificationRepository(setupTestDB(t))

	id, err := repo.CreateNotification(ctx, Notification{Event: "openai auth", ErrorType: "auth", Detail: "401", TriggeredMs: 42})
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.MarkNotified(ctx, id); err != nil {
		t.Fatal(err)
	}

	notifications, err := repo.ListNotifications(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(notifications) != 1 {
		t.Fatalf("Expected 1 notification, got %d", len(notifications))
	}
	if !notifications[0].Notified || notifications[0].ErrorType != "auth" {
		t.Errorf("Unexpected notification: %+v", notifications[0])
	}
}

func TestVectorRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewVectorRepository(setupTestDB(t))

	v := Vector{ID: "abc", ItemKey: "k1", Values: []float64{0.5, -0.25, 1}, Metadata: map[string]any{"title": "T"}}
	if err := repo.UpsertVector(ctx, v); err != nil {
		t.Fatal(err)
	}
	v.Values = []float64{1, 0, 0}
	if err := repo.UpsertVector(ctx, v); err != nil {
		t.Fatal(err)
	}

	vectors, err := repo.ListVectors(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(vectors) != 1 {
		t.Fatalf("Expected upsert to replace the vector, got %d rows", len(vectors))
	}
	if vectors[0].Values[0] != 1 || vectors[0].Values[1] != 0 {
		t.Errorf("Unexpected values %v", vectors[0].Values)
	}
	if vectors[0].Metadata["title"] != "T" {
		t.Errorf("Expected metadata to round-trip, got %v", vectors[0].Metadata)
	}

	if err := repo.UpsertVector(ctx, Vector{}); err == nil {
		t.Error("Expected error for empty id")
	}
}

func TestVectorEncoding(t *testing.T) {
	values := []float64{0.5, -2, 0}
	decoded := decodeVector(encodeVector(values))

	for i := range values {
		if decoded[i] != values[i] {
			t.Errorf("Index %d: expected %v, got %v", i, values[i], decoded[i])
		}
	}
}
