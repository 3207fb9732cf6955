package store

import (
	"context"
	"fmt"
	"time"

	"github.com/matheus3301/nchat/internal/api"
)

type peerRow struct {
	PublicKey      string `db:"public_key"`
	AccountID      string `db:"account_id"`
	Name           string `db:"name"`
	About          string `db:"about"`
	HasProfile     bool   `db:"has_profile"`
	UnreadMessages int    `db:"unread_messages"`
	EventCreatedAt int64  `db:"event_created_at"`
	Position       int    `db:"position"`
	UpdatedAt      int64  `db:"updated_at"`
}

// SavePeers replaces the stored snapshot with peers of accountID, keeping
// their order.
func (db *DB) SavePeers(ctx context.Context, accountID string, peers []api.Peer) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM peers`); err != nil {
		return fmt.Errorf("clear peers: %w", err)
	}

	now := time.Now().UnixMilli()
	for i, p := range peers {
		row := peerRow{
			PublicKey:      p.PublicKey,
			AccountID:      accountID,
			UnreadMessages: p.UnreadMessages,
			EventCreatedAt: p.EventCreatedAt,
			Position:       i,
			UpdatedAt:      now,
		}
		if p.Profile != nil {
			row.HasProfile = true
			row.Name = p.Profile.Name
			row.About = p.Profile.About
		}
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO peers (public_key, account_id, name, about, has_profile, unread_messages, event_created_at, position, updated_at)
			VALUES (:public_key, :account_id, :name, :about, :has_profile, :unread_messages, :event_created_at, :position, :updated_at)
			ON CONFLICT(public_key) DO UPDATE SET
				unread_messages = excluded.unread_messages,
				position = excluded.position`, row); err != nil {
			return fmt.Errorf("insert peer %q: %w", p.PublicKey, err)
		}
	}
	return tx.Commit()
}

// LoadPeers returns the stored snapshot in its saved order and the account
// it belongs to.
func (db *DB) LoadPeers(ctx context.Context) (string, []api.Peer, error) {
	var rows []peerRow
	if err := db.SelectContext(ctx, &rows, `
		SELECT public_key, account_id, name, about, has_profile, unread_messages, event_created_at, position, updated_at
		FROM peers ORDER BY position`); err != nil {
		return "", nil, fmt.Errorf("load peers: %w", err)
	}
	if len(rows) == 0 {
		return "", nil, nil
	}
	peers := make([]api.Peer, 0, len(rows))
	for _, r := range rows {
		p := api.Peer{
			PublicKey:      r.PublicKey,
			AccountID:      r.AccountID,
			UnreadMessages: r.UnreadMessages,
			EventCreatedAt: r.EventCreatedAt,
		}
		if r.HasProfile {
			p.Profile = &api.PeerProfile{Name: r.Name, About: r.About}
		}
		peers = append(peers, p)
	}
	return rows[0].AccountID, peers, nil
}
