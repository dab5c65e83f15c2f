// Package transcript turns message records into an ordered, display-ready
// view of one conversation.
package transcript

import (
	"sort"
	"time"

	"github.com/npezzotti/go-fellowship/internal/types"
)

type State int

const (
	StateLoading State = iota
	StateEmpty
	StateMessages
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateEmpty:
		return "empty"
	default:
		return "messages"
	}
}

type Align string

const (
	AlignLeft  Align = "left"
	AlignRight Align = "right"
)

// Delivery is the mark shown on the viewer's own messages.
type Delivery int

const (
	DeliveryNone Delivery = iota
	DeliverySent
	DeliveryRead
)

func (d Delivery) Mark() string {
	switch d {
	case DeliverySent:
		return "✓"
	case DeliveryRead:
		return "✓✓"
	default:
		return ""
	}
}

type Entry struct {
	Id        int
	SenderId  int
	Content   string
	CreatedAt time.Time
	Own       bool
	Align     Align
	Delivery  Delivery
}

type View struct {
	State   State
	Title   string
	Entries []Entry
}

const (
	LoadingText = "Loading messages..."
	EmptyText   = "No messages yet. Start the conversation!"
)

// Build returns the view of msgs as seen by currentUserId. msgs is not
// modified.
func Build(msgs []types.Message, currentUserId int, conv *types.Conversation, loading bool) View {
	v := View{}
	if conv != nil {
		v.Title = conv.OtherParty.DisplayName()
	}

	switch {
	case loading:
		v.State = StateLoading
		return v
	case len(msgs) == 0:
		v.State = StateEmpty
		return v
	}

	sorted := make([]types.Message, len(msgs))
	copy(sorted, msgs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].Id < sorted[j].Id
	})

	v.State = StateMessages
	v.Entries = make([]Entry, 0, len(sorted))
	for _, m := range sorted {
		e := Entry{
			Id:        m.Id,
			SenderId:  m.SenderId,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
			Own:       m.SenderId == currentUserId,
			Align:     AlignLeft,
		}
		if e.Own {
			e.Align = AlignRight
			e.Delivery = DeliverySent
			if m.ReadAt != nil {
				e.Delivery = DeliveryRead
			}
		}
		v.Entries = append(v.Entries, e)
	}

	return v
}
