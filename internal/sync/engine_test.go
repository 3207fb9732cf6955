package sync

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/nchat/internal/api"
	"github.com/matheus3301/nchat/internal/notify"
	"github.com/matheus3301/nchat/internal/store"
)

type recordingThread struct {
	peers []string
	ids   []string
}

func (r *recordingThread) OnPushedMessage(peer string, msg api.Message) bool {
	r.peers = append(r.peers, peer)
	r.ids = append(r.ids, msg.Key())
	return true
}

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestHandleEnvelopeRoutesDirectMessages(t *testing.T) {
	th := &recordingThread{}
	e := NewEngine(th, nil, nil)

	e.HandleEnvelope(notify.Envelope{Type: notify.TypeDirectMessage, PeerPubkey: "p1", DM: &api.Message{EventID: "e1"}})
	e.HandleEnvelope(notify.Envelope{Type: "dm:0", PeerPubkey: "p1", DM: &api.Message{EventID: "e2"}})
	e.HandleEnvelope(notify.Envelope{Type: notify.TypeDirectMessage, PeerPubkey: "p1"})

	if len(th.ids) != 1 || th.ids[0] != "e1" {
		t.Fatalf("routed ids = %v, want [e1]", th.ids)
	}
	if th.peers[0] != "p1" {
		t.Errorf("peer = %q, want p1", th.peers[0])
	}
}

func TestHandleEnvelopeSavesCheckpoint(t *testing.T) {
	db := testDB(t)
	e := NewEngine(&recordingThread{}, db, nil)

	e.HandleEnvelope(notify.Envelope{Type: notify.TypeDirectMessage, PeerPubkey: "p1", DM: &api.Message{EventID: "e1", EventCreatedAt: 2000}})
	e.HandleEnvelope(notify.Envelope{Type: notify.TypeDirectMessage, PeerPubkey: "p1", DM: &api.Message{EventID: "e0", EventCreatedAt: 1000}})

	got, err := db.GetCheckpoint(context.Background(), CheckpointLastEvent)
	if err != nil {
		t.Fatal(err)
	}
	if got != "2000" {
		t.Errorf("checkpoint = %q, want 2000", got)
	}

	// A fresh engine resumes from the stored checkpoint.
	e2 := NewEngine(&recordingThread{}, db, nil)
	if err := e2.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !e2.LastEvent().Equal(time.Unix(2000, 0)) {
		t.Errorf("LastEvent = %v, want %v", e2.LastEvent(), time.Unix(2000, 0))
	}
}

func TestLoadWithoutCheckpoint(t *testing.T) {
	e := NewEngine(&recordingThread{}, testDB(t), nil)
	if err := e.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !e.LastEvent().IsZero() {
		t.Errorf("LastEvent = %v, want zero", e.LastEvent())
	}
}
