package ledger_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"fieldcam/internal/capture"
	"fieldcam/internal/ledger"
	"fieldcam/internal/logging"
	"fieldcam/internal/tagging"
	"fieldcam/internal/testsupport"
	"fieldcam/internal/upload"
)

func TestPutAndListRecords(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	captured := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	records := []ledger.Record{
		{TicketID: "t1", SessionID: "s1", Seq: 1, Status: "sent", Attempts: 1, HasFix: true, CapturedAt: captured},
		{TicketID: "t2", SessionID: "s1", Seq: 2, Status: "failed", Attempts: 4, Error: "upload failed after 4 attempt(s)", Stale: true},
		{TicketID: "t3", SessionID: "s2", Seq: 1, Status: "sent", Attempts: 2},
	}
	for _, rec := range records {
		if err := store.Put(ctx, rec); err != nil {
			t.Fatalf("Put %s: %v", rec.TicketID, err)
		}
	}

	all, err := store.List(ctx, ledger.Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].TicketID != "t3" {
		t.Fatalf("expected newest-first listing, got %+v", all)
	}

	failed, err := store.List(ctx, ledger.Filter{Status: "failed"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(failed) != 1 || failed[0].Error == "" || !failed[0].Stale || failed[0].Attempts != 4 {
		t.Fatalf("unexpected failed records %+v", failed)
	}

	bySession, err := store.List(ctx, ledger.Filter{SessionID: "s1", Limit: 1})
	if err != nil {
		t.Fatalf("List session: %v", err)
	}
	if len(bySession) != 1 || bySession[0].TicketID != "t2" {
		t.Fatalf("unexpected session listing %+v", bySession)
	}

	rec, err := store.Get(ctx, "t1")
	if err != nil || rec == nil {
		t.Fatalf("Get t1: %v %v", rec, err)
	}
	if !rec.HasFix || !rec.CapturedAt.Equal(captured) || rec.ResolvedAt.IsZero() {
		t.Fatalf("unexpected record %+v", rec)
	}
	missing, err := store.Get(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil for missing ticket, got %v %v", missing, err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats["sent"] != 2 || stats["failed"] != 1 {
		t.Fatalf("unexpected stats %v", stats)
	}
}

func TestPutReplacesSameTicket(t *testing.T) {
	store := testsupport.MustOpenLedger(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if err := store.Put(ctx, ledger.Record{TicketID: "t1", Seq: 1, Status: "failed", Attempts: 1}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Put(ctx, ledger.Record{TicketID: "t1", Seq: 1, Status: "sent", Attempts: 2}); err != nil {
		t.Fatalf("Put again: %v", err)
	}
	all, err := store.List(ctx, ledger.Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 || all[0].Status != "sent" || all[0].Attempts != 2 {
		t.Fatalf("unexpected records %+v", all)
	}
}

func TestPutRequiresTicketID(t *testing.T) {
	store := testsupport.MustOpenLedger(t, testsupport.NewConfig(t))
	if err := store.Put(context.Background(), ledger.Record{Status: "sent"}); err == nil {
		t.Fatal("expected error without ticket id")
	}
}

func TestClearByStatus(t *testing.T) {
	store := testsupport.MustOpenLedger(t, testsupport.NewConfig(t))
	ctx := context.Background()
	for i, status := range []string{"sent", "failed", "failed"} {
		rec := ledger.Record{TicketID: string(rune('a' + i)), Seq: uint64(i), Status: status}
		if err := store.Put(ctx, rec); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	removed, err := store.Clear(ctx, "failed")
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	removed, err = store.Clear(ctx, "")
	if err != nil || removed != 1 {
		t.Fatalf("Clear all: removed=%d err=%v", removed, err)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	store.Close()

	db, err := sql.Open("sqlite", cfg.LedgerPath())
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	db.Close()

	if _, err := ledger.Open(cfg); !errors.Is(err, ledger.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestRecorderPersistsResolvedTickets(t *testing.T) {
	store := testsupport.MustOpenLedger(t, testsupport.NewConfig(t))
	recorder := ledger.NewRecorder(store, logging.NewNop())

	sink := upload.NewSink(&upload.DiscardTransport{}, upload.Options{
		Capacity:   4,
		OnResolved: recorder.Observe,
		Logger:     logging.NewNop(),
	})
	base := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	for seq := uint64(1); seq <= 3; seq++ {
		frame := capture.Frame{Seq: seq, Timestamp: base.Add(time.Duration(seq) * time.Second), Data: []byte{1}}
		if _, err := sink.Submit(tagging.TaggedFrame{Frame: frame, SessionID: "s1", Stale: true}); err != nil {
			t.Fatalf("submit %d: %v", seq, err)
		}
	}
	if err := sink.Stop(context.Background(), true); err != nil {
		t.Fatalf("stop sink: %v", err)
	}
	recorder.Close()

	records, err := store.List(context.Background(), ledger.Filter{SessionID: "s1"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for _, rec := range records {
		if rec.Status != "sent" || !rec.Stale || rec.HasFix || rec.Attempts != 1 {
			t.Fatalf("unexpected record %+v", rec)
		}
	}
	if recorder.Skipped() != 0 {
		t.Fatalf("unexpected skipped records: %d", recorder.Skipped())
	}
}
