package messaging

import (
	"cmp"
	"slices"
	"time"

	"github.com/saeid-a/ToolConnectBack/internal/models"
)

// ThreadEntry is a message as the session shows it. Pending entries have no server id yet and
// are identified by their correlation id.
type ThreadEntry struct {
	models.ChatMessage
	CorrelationID string `json:"correlation_id,omitempty"`
	Pending       bool   `json:"pending"`
}

// Thread holds the messages of one conversation keyed by server id, with unconfirmed sends at the tail.
type Thread struct {
	conversationID int64
	entries        []ThreadEntry
	ids            map[int64]struct{}
}

func newThread(conversationID int64) *Thread {
	return &Thread{
		conversationID: conversationID,
		ids:            make(map[int64]struct{}),
	}
}

func (t *Thread) ConversationID() int64 {
	return t.conversationID
}

func (t *Thread) Len() int {
	return len(t.entries)
}

// Entries returns a copy of the thread in display order.
func (t *Thread) Entries() []ThreadEntry {
	return slices.Clone(t.entries)
}

// Load replaces the confirmed history, keeping pending sends.
func (t *Thread) Load(messages []models.ChatMessage) {
	pending := slices.DeleteFunc(slices.Clone(t.entries), func(entry ThreadEntry) bool {
		return !entry.Pending
	})
	t.ids = make(map[int64]struct{}, len(messages))
	t.entries = make([]ThreadEntry, 0, len(messages)+len(pending))
	for _, message := range messages {
		if _, seen := t.ids[message.ID]; seen {
			continue
		}
		t.ids[message.ID] = struct{}{}
		t.entries = append(t.entries, ThreadEntry{ChatMessage: message})
	}
	if !slices.IsSortedFunc(t.entries, compareEntries) {
		slices.SortStableFunc(t.entries, compareEntries)
	}
	t.entries = append(t.entries, pending...)
}

// Merge adds a stored message unless its id is already present. It reports whether the thread grew.
func (t *Thread) Merge(message models.ChatMessage) bool {
	if _, seen := t.ids[message.ID]; seen {
		return false
	}
	t.ids[message.ID] = struct{}{}
	t.insert(ThreadEntry{ChatMessage: message})
	return true
}

// AddPending appends an unconfirmed send.
func (t *Thread) AddPending(correlationID string, senderID int64, text string) ThreadEntry {
	entry := ThreadEntry{
		ChatMessage: models.ChatMessage{
			ConversationID: t.conversationID,
			SenderID:       senderID,
			MessageText:    text,
			CreatedAt:      time.Now().UTC(),
		},
		CorrelationID: correlationID,
		Pending:       true,
	}
	t.entries = append(t.entries, entry)
	return entry
}

// Confirm swaps the pending entry for the stored row. If the row already arrived through the
// realtime feed the pending entry is simply dropped.
func (t *Thread) Confirm(correlationID string, message models.ChatMessage) ThreadEntry {
	t.Discard(correlationID)

	confirmed := ThreadEntry{ChatMessage: message, CorrelationID: correlationID}
	if _, seen := t.ids[message.ID]; seen {
		for i := range t.entries {
			if !t.entries[i].Pending && t.entries[i].ID == message.ID {
				t.entries[i].CorrelationID = correlationID
			}
		}
		return confirmed
	}

	t.ids[message.ID] = struct{}{}
	t.insert(confirmed)
	return confirmed
}

// Discard removes a pending entry. It reports whether one was found.
func (t *Thread) Discard(correlationID string) bool {
	before := len(t.entries)
	t.entries = slices.DeleteFunc(t.entries, func(entry ThreadEntry) bool {
		return entry.Pending && entry.CorrelationID == correlationID
	})
	return len(t.entries) != before
}

func (t *Thread) adopt(conversationID int64) {
	t.conversationID = conversationID
	for i := range t.entries {
		t.entries[i].ConversationID = conversationID
	}
}

// insert places a confirmed entry by (created_at, id) ahead of the pending tail.
func (t *Thread) insert(entry ThreadEntry) {
	confirmed := len(t.entries)
	for confirmed > 0 && t.entries[confirmed-1].Pending {
		confirmed--
	}
	at, _ := slices.BinarySearchFunc(t.entries[:confirmed], entry, compareEntries)
	t.entries = slices.Insert(t.entries, at, entry)
}

// compareEntries orders confirmed rows by (created_at, id).
func compareEntries(a, b ThreadEntry) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
