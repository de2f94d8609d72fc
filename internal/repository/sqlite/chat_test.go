package sqlite

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sakif/drink-journal/internal/apperror"
	"github.com/sakif/drink-journal/internal/model"
)

func TestGetOrCreateConversation_Idempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	a := createTestUser(t, db, "a", "Ada")
	b := createTestUser(t, db, "b", "Bob")

	first, created, err := db.GetOrCreateConversation(ctx, a.ID, b.ID)
	if err != nil {
		t.Fatalf("GetOrCreateConversation() error = %v", err)
	}
	if !created {
		t.Error("first call created = false")
	}

	// Argument order does not matter.
	second, created, err := db.GetOrCreateConversation(ctx, b.ID, a.ID)
	if err != nil {
		t.Fatalf("second GetOrCreateConversation() error = %v", err)
	}
	if created || second.ID != first.ID {
		t.Errorf("second call = %s (created=%v), want %s", second.ID, created, first.ID)
	}

	for _, uid := range []string{a.ID, b.ID} {
		if _, err := db.GetParticipant(ctx, first.ID, uid); err != nil {
			t.Errorf("GetParticipant(%s) error = %v", uid, err)
		}
	}
}

func TestGetOrCreateConversation_Concurrent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	a := createTestUser(t, db, "a", "Ada")
	b := createTestUser(t, db, "b", "Bob")

	const workers = 8
	ids := make([]string, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, _, err := db.GetOrCreateConversation(ctx, a.ID, b.ID)
			errs[i] = err
			if c != nil {
				ids[i] = c.ID
			}
		}(i)
	}
	wg.Wait()

	for i := range ids {
		if errs[i] != nil {
			t.Fatalf("worker %d error = %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Errorf("worker %d got %s, want %s", i, ids[i], ids[0])
		}
	}

	list, _ := db.ListConversationsForUser(ctx, a.ID)
	if len(list) != 1 {
		t.Errorf("conversations for a = %d, want 1", len(list))
	}
}

func TestMessagesAndUnread(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	a := createTestUser(t, db, "a", "Ada")
	b := createTestUser(t, db, "b", "Bob")
	conv, _, err := db.GetOrCreateConversation(ctx, a.ID, b.ID)
	if err != nil {
		t.Fatalf("GetOrCreateConversation() error = %v", err)
	}

	if last, err := db.LastMessage(ctx, conv.ID); err != nil || last != nil {
		t.Fatalf("LastMessage() on empty = %+v, %v; want nil, nil", last, err)
	}

	m1 := &model.Message{ConversationID: conv.ID, SenderID: a.ID, Content: "hi"}
	m2 := &model.Message{ConversationID: conv.ID, SenderID: a.ID, Content: "rosé tonight?"}
	for _, m := range []*model.Message{m1, m2} {
		if err := db.CreateMessage(ctx, m); err != nil {
			t.Fatalf("CreateMessage() error = %v", err)
		}
	}

	pb, _ := db.GetParticipant(ctx, conv.ID, b.ID)
	if n, _ := db.CountUnread(ctx, conv.ID, b.ID, pb.LastReadAt); n != 2 {
		t.Errorf("unread for b = %d, want 2", n)
	}
	pa, _ := db.GetParticipant(ctx, conv.ID, a.ID)
	if n, _ := db.CountUnread(ctx, conv.ID, a.ID, pa.LastReadAt); n != 0 {
		t.Errorf("unread for sender = %d, want 0", n)
	}

	msgs, err := db.ListMessages(ctx, conv.ID, nil, 0)
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(msgs) != 2 || msgs[0].ID != m1.ID {
		t.Fatalf("ListMessages() not ascending: %+v", msgs)
	}

	after, _ := db.ListMessages(ctx, conv.ID, &m1.CreatedAt, 0)
	if len(after) != 1 || after[0].ID != m2.ID {
		t.Errorf("ListMessages(after m1) = %+v, want [m2]", after)
	}

	last, _ := db.LastMessage(ctx, conv.ID)
	if last == nil || last.ID != m2.ID {
		t.Errorf("LastMessage() = %+v, want m2", last)
	}

	readAt := time.Now().Add(time.Second)
	if err := db.MarkRead(ctx, conv.ID, b.ID, readAt); err != nil {
		t.Fatalf("MarkRead() error = %v", err)
	}
	pb, _ = db.GetParticipant(ctx, conv.ID, b.ID)
	if n, _ := db.CountUnread(ctx, conv.ID, b.ID, pb.LastReadAt); n != 0 {
		t.Errorf("unread after MarkRead = %d, want 0", n)
	}

	other, err := db.OtherParticipant(ctx, conv.ID, a.ID)
	if err != nil || other.ID != b.ID {
		t.Errorf("OtherParticipant(a) = %+v, %v; want b", other, err)
	}
}

func TestConversationMembership(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	a := createTestUser(t, db, "a", "Ada")
	b := createTestUser(t, db, "b", "Bob")
	stranger := createTestUser(t, db, "c", "Cy")
	conv, _, _ := db.GetOrCreateConversation(ctx, a.ID, b.ID)

	if _, err := db.GetParticipant(ctx, conv.ID, stranger.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetParticipant(stranger) error = %v, want ErrNotFound", err)
	}
	if ok, _ := db.ConversationExists(ctx, conv.ID); !ok {
		t.Error("ConversationExists() = false for real conversation")
	}
	if ok, _ := db.ConversationExists(ctx, "nope"); ok {
		t.Error("ConversationExists(nope) = true")
	}
	if err := db.MarkRead(ctx, conv.ID, stranger.ID, time.Now()); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("MarkRead(stranger) error = %v, want ErrNotFound", err)
	}
}

func TestListConversations_OrderedByActivity(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	me := createTestUser(t, db, "me", "Me")
	b := createTestUser(t, db, "b", "Bob")
	c := createTestUser(t, db, "c", "Cy")

	withB, _, _ := db.GetOrCreateConversation(ctx, me.ID, b.ID)
	withC, _, _ := db.GetOrCreateConversation(ctx, me.ID, c.ID)

	// A message in the older conversation moves it to the top.
	if err := db.CreateMessage(ctx, &model.Message{ConversationID: withB.ID, SenderID: b.ID, Content: "yo"}); err != nil {
		t.Fatalf("CreateMessage() error = %v", err)
	}

	list, err := db.ListConversationsForUser(ctx, me.ID)
	if err != nil {
		t.Fatalf("ListConversationsForUser() error = %v", err)
	}
	if len(list) != 2 || list[0].ID != withB.ID || list[1].ID != withC.ID {
		t.Errorf("ListConversationsForUser() order = %+v", list)
	}
}

func TestListMessages_LongConversation(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	a := createTestUser(t, db, "a", "Ada")
	b := createTestUser(t, db, "b", "Bob")
	conv, _, _ := db.GetOrCreateConversation(ctx, a.ID, b.ID)

	const total = 120
	sent := make([]*model.Message, total)
	for i := range sent {
		sent[i] = &model.Message{ConversationID: conv.ID, SenderID: a.ID, Content: fmt.Sprintf("m%d", i+1)}
		if err := db.CreateMessage(ctx, sent[i]); err != nil {
			t.Fatalf("CreateMessage(%d) error = %v", i+1, err)
		}
	}

	latest, err := db.ListMessages(ctx, conv.ID, nil, 100)
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(latest) != 100 {
		t.Fatalf("ListMessages() len = %d, want 100", len(latest))
	}
	if latest[0].Content != "m21" || latest[99].Content != "m120" {
		t.Errorf("ListMessages() = %s..%s, want m21..m120", latest[0].Content, latest[99].Content)
	}

	// Paging forward from an old message still starts right after it.
	next, err := db.ListMessages(ctx, conv.ID, &sent[9].CreatedAt, 5)
	if err != nil {
		t.Fatalf("ListMessages(after m10) error = %v", err)
	}
	if len(next) != 5 || next[0].Content != "m11" || next[4].Content != "m15" {
		t.Errorf("ListMessages(after m10) = %+v, want m11..m15", next)
	}
}
