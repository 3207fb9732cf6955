package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/matheus3301/nchat/internal/api"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIdempotent(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate, so a second run must be a no-op.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 1 {
		t.Errorf("version = %d, want 1", result.Version)
	}
	if result.Dirty {
		t.Error("migration left the schema dirty")
	}
}

func TestPeersSnapshotRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	peers := []api.Peer{
		{PublicKey: "p2", AccountID: "a1", UnreadMessages: 3, Profile: &api.PeerProfile{Name: "bob", About: "hi"}},
		{PublicKey: "p1", AccountID: "a1", EventCreatedAt: 1700000000},
	}
	if err := db.SavePeers(ctx, "a1", peers); err != nil {
		t.Fatal(err)
	}

	owner, got, err := db.LoadPeers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if owner != "a1" {
		t.Errorf("owner = %q, want a1", owner)
	}
	if len(got) != 2 {
		t.Fatalf("got %d peers, want 2", len(got))
	}
	if got[0].PublicKey != "p2" || got[1].PublicKey != "p1" {
		t.Errorf("order = [%s %s], want [p2 p1]", got[0].PublicKey, got[1].PublicKey)
	}
	if got[0].Profile == nil || got[0].Profile.Name != "bob" {
		t.Errorf("profile = %+v, want name bob", got[0].Profile)
	}
	if got[1].Profile != nil {
		t.Errorf("profile = %+v, want nil", got[1].Profile)
	}
	if got[0].UnreadMessages != 3 {
		t.Errorf("unread = %d, want 3", got[0].UnreadMessages)
	}
}

func TestSavePeersReplacesSnapshot(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if err := db.SavePeers(ctx, "a1", []api.Peer{{PublicKey: "old"}}); err != nil {
		t.Fatal(err)
	}
	if err := db.SavePeers(ctx, "a2", []api.Peer{{PublicKey: "new"}, {PublicKey: "new"}}); err != nil {
		t.Fatal(err)
	}

	owner, got, err := db.LoadPeers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].PublicKey != "new" {
		t.Errorf("got %+v, want only new", got)
	}
	if owner != "a2" || got[0].AccountID != "a2" {
		t.Errorf("owner = %q, account = %q, want a2", owner, got[0].AccountID)
	}
}

func TestLoadPeersEmpty(t *testing.T) {
	db := testDB(t)

	owner, got, err := db.LoadPeers(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if owner != "" || len(got) != 0 {
		t.Errorf("got %q %+v, want empty", owner, got)
	}
}

func TestCheckpoints(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	v, err := db.GetCheckpoint(ctx, "missing")
	if err != nil {
		t.Fatal(err)
	}
	if v != "" {
		t.Errorf("missing checkpoint = %q, want empty", v)
	}

	if err := db.SetCheckpoint(ctx, "k", "1"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetCheckpoint(ctx, "k", "2"); err != nil {
		t.Fatal(err)
	}
	v, err = db.GetCheckpoint(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if v != "2" {
		t.Errorf("checkpoint = %q, want 2", v)
	}
}
