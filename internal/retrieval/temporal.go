package retrieval

import (
	"context"
	"fmt"
	"time"

	humanize "github.com/dustin/go-humanize"

	"github.com/scrypster/ltam/internal/store"
	"github.com/scrypster/ltam/pkg/types"
)

// TemporalStore is the narrow slice of the entity store TemporalContext
// needs: the last conversational event and, if linked, its memory's
// summary.
type TemporalStore interface {
	store.EventStore
	store.MemoryEventStore
	store.MemoryStore
}

// TemporalContext is the §4.4 "time since we last talked" helper's result.
type TemporalContext struct {
	LastEventAt   time.Time
	HoursAgo      float64
	MemorySummary string
	Formatted     string
}

// Temporal finds the most recent non-deleted message.in/message.out event
// for an anima and, if it is linked to a memory, the memory's summary. It
// returns nil, nil when the anima has no conversational events yet.
func Temporal(ctx context.Context, s TemporalStore, animaID string, now time.Time) (*TemporalContext, error) {
	latest, err := latestConversationalEvent(ctx, s, animaID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, nil
	}

	var summary string
	links, err := s.ListMemoryEventsByEvent(ctx, latest.ID)
	if err != nil {
		return nil, fmt.Errorf("retrieval: temporal context memory link: %w", err)
	}
	if len(links) > 0 {
		mem, err := s.GetMemory(ctx, links[0].MemoryID, false)
		if err == nil {
			summary = mem.Summary
		}
	}

	hoursAgo := now.UTC().Sub(latest.OccurredAt.UTC()).Hours()
	if hoursAgo < 0 {
		hoursAgo = 0
	}

	return &TemporalContext{
		LastEventAt:   latest.OccurredAt,
		HoursAgo:      hoursAgo,
		MemorySummary: summary,
		Formatted:     formatTemporalSentence(latest.OccurredAt, now, hoursAgo, summary),
	}, nil
}

func latestConversationalEvent(ctx context.Context, s TemporalStore, animaID string) (*types.Event, error) {
	var latest *types.Event
	for _, t := range []types.EventType{types.EventMessageIn, types.EventMessageOut} {
		page, err := s.ListEvents(ctx, store.EventFilter{
			AnimaID: animaID,
			Type:    string(t),
			ListOptions: store.ListOptions{
				Limit:     1,
				SortOrder: "desc",
			},
		})
		if err != nil {
			return nil, fmt.Errorf("retrieval: latest conversational event: %w", err)
		}
		if len(page.Items) == 0 {
			continue
		}
		candidate := page.Items[0]
		if latest == nil || candidate.OccurredAt.After(latest.OccurredAt) {
			latest = &candidate
		}
	}
	return latest, nil
}

// formatTemporalSentence buckets the gap since lastEvent into the §4.4
// delta buckets: under an hour, under a day (exact hour count), yesterday,
// and beyond — where humanize takes over so multi-day, -week, or -month
// gaps still read naturally instead of as a raw day count.
func formatTemporalSentence(lastEvent, now time.Time, hoursAgo float64, memorySummary string) string {
	var base string
	switch {
	case hoursAgo < 1:
		base = "We last spoke less than an hour ago"
	case hoursAgo < 24:
		base = fmt.Sprintf("We last spoke %d hours ago", int(hoursAgo))
	case hoursAgo < 48:
		base = "We last spoke yesterday"
	default:
		base = "We last spoke " + humanize.RelTime(lastEvent, now, "ago", "from now")
	}
	if memorySummary == "" {
		return base + "."
	}
	return fmt.Sprintf("%s, when %s", base, lowerFirst(memorySummary))
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	if r[0] >= 'A' && r[0] <= 'Z' {
		r[0] = r[0] + ('a' - 'A')
	}
	return string(r)
}
