package store

import (
	"sort"
	"time"

	"github.com/deskwire/deskwire/pkg/model"
)

// MessageView is the render-ready derivation of a message list: the primary
// flow ordered by creation time, plus reaction annotations grouped under
// their parent reference.
type MessageView struct {
	Primary []model.Message
	// ReactionsByParent is keyed by the reference the reaction carries. The
	// backend does not guarantee that reference is the parent's local id, so
	// lookups go through ReactionsFor, which tries every key of the parent.
	ReactionsByParent map[string][]model.Message
	Pending           []*PendingMessage
}

// BuildMessageView derives the view from a buffer snapshot and the pending
// entries of the active scope. It is pure: inputs are not mutated, and the
// sort happens here, never in the merge buffer.
func BuildMessageView(snapshot []model.Message, pending []*PendingMessage) MessageView {
	primary := make([]model.Message, 0, len(snapshot))
	reactions := map[string][]model.Message{}
	ids := make(map[int64]struct{}, len(snapshot))

	for _, m := range snapshot {
		ids[m.ID] = struct{}{}
		if m.IsReaction() {
			for _, key := range m.ParentKeys() {
				reactions[key] = append(reactions[key], m)
			}
			continue
		}
		primary = append(primary, m)
	}

	sort.SliceStable(primary, func(i, j int) bool {
		if primary[i].CreatedAt.Equal(primary[j].CreatedAt) {
			return primary[i].ID < primary[j].ID
		}
		return primary[i].CreatedAt.Before(primary[j].CreatedAt)
	})

	kept := make([]*PendingMessage, 0, len(pending))
	for _, p := range pending {
		if p == nil {
			continue
		}
		if p.ConfirmedID != 0 {
			if _, ok := ids[p.ConfirmedID]; ok {
				continue
			}
		}
		kept = append(kept, p)
	}

	return MessageView{Primary: primary, ReactionsByParent: reactions, Pending: kept}
}

// ReactionsFor returns the annotations attached to a message, checking both
// identifier spaces the parent may be referenced by.
func (v MessageView) ReactionsFor(m model.Message) []model.Message {
	var out []model.Message
	for _, key := range m.Keys() {
		out = append(out, v.ReactionsByParent[key]...)
	}
	return out
}

// DaySection groups consecutive primary messages sharing a calendar day, for
// daily-separator rendering.
type DaySection struct {
	Day      time.Time
	Messages []model.Message
}

// GroupByDay splits the ordered primary list into calendar-day sections.
// Deleting a message only removes the item; sections collapse naturally when
// they empty out.
func (v MessageView) GroupByDay() []DaySection {
	var sections []DaySection
	for _, m := range v.Primary {
		day := m.CreatedAt.Truncate(24 * time.Hour)
		if n := len(sections); n > 0 && sections[n-1].Day.Equal(day) {
			sections[n-1].Messages = append(sections[n-1].Messages, m)
			continue
		}
		sections = append(sections, DaySection{Day: day, Messages: []model.Message{m}})
	}
	return sections
}

// BuildTicketView orders a ticket snapshot by most recent activity first,
// which is how triage lists are consumed. Promotion inside the buffer decides
// ties between equal timestamps.
func BuildTicketView(snapshot []model.Ticket) []model.Ticket {
	out := make([]model.Ticket, len(snapshot))
	copy(out, snapshot)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}
