package messaging

import (
	"slices"

	"github.com/saeid-a/ToolConnectBack/internal/models"
)

// unreadCounts is the single per-conversation unread source for one role. List badges and the
// role tab badge are both read from it.
type unreadCounts struct {
	byConversation map[int64]int
}

func newUnreadCounts() *unreadCounts {
	return &unreadCounts{byConversation: make(map[int64]int)}
}

func (u *unreadCounts) Set(conversationID int64, count int) {
	if count <= 0 {
		delete(u.byConversation, conversationID)
		return
	}
	u.byConversation[conversationID] = count
}

func (u *unreadCounts) Increment(conversationID int64) {
	u.byConversation[conversationID]++
}

func (u *unreadCounts) Clear(conversationID int64) {
	delete(u.byConversation, conversationID)
}

func (u *unreadCounts) Get(conversationID int64) int {
	return u.byConversation[conversationID]
}

func (u *unreadCounts) Total() int {
	total := 0
	for _, count := range u.byConversation {
		total += count
	}
	return total
}

// RoleContext is everything the session knows while acting as one role. Switching roles
// replaces it wholesale.
type RoleContext struct {
	viewer    models.Viewer
	summaries []models.ConversationSummary
	unread    *unreadCounts
}

func newRoleContext(viewer models.Viewer) *RoleContext {
	return &RoleContext{
		viewer: viewer,
		unread: newUnreadCounts(),
	}
}

// load replaces the list and reseeds the tracker from the server counts. openID, when set, is
// the conversation on screen and stays at zero.
func (r *RoleContext) load(summaries []models.ConversationSummary, openID int64) {
	r.summaries = slices.Clone(summaries)
	r.unread = newUnreadCounts()
	for _, summary := range summaries {
		if summary.ID == openID {
			continue
		}
		r.unread.Set(summary.ID, summary.UnreadCount)
	}
}

func (r *RoleContext) has(conversationID int64) bool {
	return r.index(conversationID) >= 0
}

func (r *RoleContext) index(conversationID int64) int {
	return slices.IndexFunc(r.summaries, func(summary models.ConversationSummary) bool {
		return summary.ID == conversationID
	})
}

// bump records message as the conversation's latest and moves it to the top of the list.
func (r *RoleContext) bump(message models.ChatMessage) bool {
	i := r.index(message.ConversationID)
	if i < 0 {
		return false
	}

	summary := r.summaries[i]
	latest := message
	summary.LastMessage = &latest
	createdAt := message.CreatedAt
	summary.LastMessageAt = &createdAt

	r.summaries = slices.Delete(r.summaries, i, i+1)
	r.summaries = slices.Insert(r.summaries, 0, summary)
	return true
}

// Summaries returns the list with unread counts taken from the tracker.
func (r *RoleContext) Summaries() []models.ConversationSummary {
	out := slices.Clone(r.summaries)
	if out == nil {
		out = []models.ConversationSummary{}
	}
	for i := range out {
		out[i].UnreadCount = r.unread.Get(out[i].ID)
	}
	return out
}
