package db

import (
	"context"
	"database/sql"
	"time"
)

// BotStore is the session's persistence adapter: every sent reply and every
// lifecycle event gets a row, giving operators an audit trail the in-memory
// histories age out of.
type BotStore struct{ DB *sql.DB }

// RecordReply inserts one reply-attempt row. Failed sends land here too,
// flagged success=false.
func (s *BotStore) RecordReply(ctx context.Context, videoID, authorID, authorName, trigger, reply string, success bool) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO bot_replies (video_id, author_id, author_name, trigger_kind, reply, success) VALUES ($1,$2,$3,$4,$5,$6)`,
		videoID, authorID, authorName, trigger, reply, success)
	return err
}

// RecordSessionEvent inserts one lifecycle row (attached, detached,
// stopped, stopped_fatal).
func (s *BotStore) RecordSessionEvent(ctx context.Context, videoID, event, detail string) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO bot_sessions (video_id, event, detail) VALUES ($1,$2,$3)`,
		videoID, event, detail)
	return err
}

// ReplyRecord is one audited reply attempt.
type ReplyRecord struct {
	ID         int64     `json:"id"`
	VideoID    string    `json:"video_id"`
	AuthorID   string    `json:"author_id,omitempty"`
	AuthorName string    `json:"author_name"`
	Trigger    string    `json:"trigger"`
	Reply      string    `json:"reply"`
	Success    bool      `json:"success"`
	CreatedAt  time.Time `json:"created_at"`
}

// RecentReplies returns the newest audited replies, newest first.
func (s *BotStore) RecentReplies(ctx context.Context, limit int) ([]ReplyRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, COALESCE(video_id,''), COALESCE(author_id,''), COALESCE(author_name,''), COALESCE(trigger_kind,''), COALESCE(reply,''), success, created_at
		 FROM bot_replies ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ReplyRecord
	for rows.Next() {
		var r ReplyRecord
		if err := rows.Scan(&r.ID, &r.VideoID, &r.AuthorID, &r.AuthorName, &r.Trigger, &r.Reply, &r.Success, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SessionEventRecord is one audited lifecycle event.
type SessionEventRecord struct {
	ID        int64     `json:"id"`
	VideoID   string    `json:"video_id,omitempty"`
	Event     string    `json:"event"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RecentSessionEvents returns the newest lifecycle events, newest first.
func (s *BotStore) RecentSessionEvents(ctx context.Context, limit int) ([]SessionEventRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, COALESCE(video_id,''), COALESCE(event,''), COALESCE(detail,''), created_at
		 FROM bot_sessions ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SessionEventRecord
	for rows.Next() {
		var e SessionEventRecord
		if err := rows.Scan(&e.ID, &e.VideoID, &e.Event, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// LastAttachedVideo returns the broadcast id of the most recent attach, or
// empty when the bot has never attached. Seeding the session with it keeps
// a restarted bot from greeting the same broadcast twice.
func (s *BotStore) LastAttachedVideo(ctx context.Context) (string, error) {
	var videoID string
	err := s.DB.QueryRowContext(ctx,
		`SELECT COALESCE(video_id,'') FROM bot_sessions WHERE event='attached' ORDER BY id DESC LIMIT 1`).Scan(&videoID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return videoID, err
}
