package chat

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"bookring/pkg/database"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestConversationIDIsOrderIndependent(t *testing.T) {
	a := ConversationID("alice", "bob")
	b := ConversationID("bob", "alice")
	if a != b {
		t.Fatalf("room ids differ: %q vs %q", a, b)
	}
	if a != "alice:bob" {
		t.Fatalf("unexpected room id: %q", a)
	}

	u1, u2 := Members(a)
	if u1 != "alice" || u2 != "bob" {
		t.Fatalf("members round trip failed: %q %q", u1, u2)
	}
}

func TestHistoryIsChronological(t *testing.T) {
	repo := NewRepo(testDB(t))
	ctx := context.Background()
	room := ConversationID("alice", "bob")

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		if err := repo.Save(ctx, Message{
			Type:   "message",
			Room:   room,
			Sender: "alice",
			Text:   fmt.Sprintf("msg %d", i),
			At:     base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	history, err := repo.History(ctx, room, HistoryLimit)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(history))
	}
	for i, msg := range history {
		if want := fmt.Sprintf("msg %d", i); msg.Text != want {
			t.Fatalf("message %d out of order: %q", i, msg.Text)
		}
	}
}

func TestHistoryHonorsLimit(t *testing.T) {
	repo := NewRepo(testDB(t))
	ctx := context.Background()
	room := ConversationID("alice", "bob")

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 10; i++ {
		if err := repo.Save(ctx, Message{
			Type:   "message",
			Room:   room,
			Sender: "bob",
			Text:   fmt.Sprintf("msg %d", i),
			At:     base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	history, err := repo.History(ctx, room, 4)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(history))
	}
	// the limit trims the oldest, and what survives stays chronological
	if history[0].Text != "msg 6" || history[3].Text != "msg 9" {
		t.Fatalf("wrong window: first=%q last=%q", history[0].Text, history[3].Text)
	}
}

func TestHistoryIsRoomScoped(t *testing.T) {
	repo := NewRepo(testDB(t))
	ctx := context.Background()

	if err := repo.Save(ctx, Message{
		Type: "message", Room: ConversationID("alice", "bob"),
		Sender: "alice", Text: "for bob", At: time.Now(),
	}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.Save(ctx, Message{
		Type: "message", Room: ConversationID("alice", "carol"),
		Sender: "alice", Text: "for carol", At: time.Now(),
	}); err != nil {
		t.Fatalf("save: %v", err)
	}

	history, err := repo.History(ctx, ConversationID("bob", "alice"), HistoryLimit)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Text != "for bob" {
		t.Fatalf("unexpected history: %+v", history)
	}
}
