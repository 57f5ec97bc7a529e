package interactive

import (
	"context"
	"errors"
	"iter"
)

// ErrPagingStalled is yielded by Participants when the server reports more
// participants but a page holds none past the watermark, which happens when
// a full page shares one connectedAt.
var ErrPagingStalled = errors.New("interactive: participant paging stalled at watermark")

// ParticipantPage is one reply of a participant listing.
type ParticipantPage struct {
	Participants []Participant
	// Total is the number of participants the server knows about.
	Total int
	// HasMore reports that the server has participants beyond this page.
	HasMore bool
	// From is the watermark the page was requested with.
	From int64
}

// Next returns the watermark for the following page: the largest
// ConnectedAt on this page, or From when the page is empty.
// Participants connected at exactly that instant appear again on the next page.
func (p *ParticipantPage) Next() int64 {
	next := p.From
	for _, part := range p.Participants {
		if part.ConnectedAt > next {
			next = part.ConnectedAt
		}
	}
	return next
}

type participantsReply struct {
	Participants []Participant `json:"participants"`
	Total        int           `json:"total"`
	HasMore      bool          `json:"hasMore"`
}

// GetAllParticipants returns participants connected at or after from,
// in milliseconds since the Unix epoch. Pass 0 for the first page and
// page.Next() for the following ones.
func (c *Client) GetAllParticipants(ctx context.Context, from int64) (*ParticipantPage, error) {
	params := struct {
		From int64 `json:"from"`
	}{from}
	var reply participantsReply
	if err := c.call(ctx, "getAllParticipants", params, &reply); err != nil {
		return nil, err
	}

	page := &ParticipantPage{Total: reply.Total, HasMore: reply.HasMore, From: from}
	page.Participants = make([]Participant, 0, len(reply.Participants))
	for _, p := range reply.Participants {
		// Pages never reach back past the watermark.
		if p.ConnectedAt >= from {
			page.Participants = append(page.Participants, p)
		}
	}
	return page, nil
}

// GetActiveParticipants returns participants whose last input was at or
// after threshold, in milliseconds since the Unix epoch.
func (c *Client) GetActiveParticipants(ctx context.Context, threshold int64) (*ParticipantPage, error) {
	params := struct {
		Threshold int64 `json:"threshold"`
	}{threshold}
	var reply participantsReply
	if err := c.call(ctx, "getActiveParticipants", params, &reply); err != nil {
		return nil, err
	}
	return &ParticipantPage{
		Participants: reply.Participants,
		Total:        reply.Total,
		HasMore:      reply.HasMore,
	}, nil
}

// Participants returns an iterator over every participant, walking
// GetAllParticipants pages by watermark. Participants repeated at a page
// boundary are yielded once. The walk stops after the first error, including
// ErrPagingStalled.
func (c *Client) Participants(ctx context.Context) iter.Seq2[Participant, error] {
	return func(yield func(Participant, error) bool) {
		var from int64
		// Session ids seen at the current watermark.
		boundary := make(map[string]bool)

		for {
			page, err := c.GetAllParticipants(ctx, from)
			if err != nil {
				yield(Participant{}, err)
				return
			}

			next := page.Next()
			nextBoundary := make(map[string]bool)
			fresh := 0
			for _, p := range page.Participants {
				if p.ConnectedAt == next {
					nextBoundary[p.SessionID] = true
				}
				if p.ConnectedAt == from && boundary[p.SessionID] {
					continue
				}
				fresh++
				if !yield(p, nil) {
					return
				}
			}

			if !page.HasMore {
				return
			}
			if fresh == 0 {
				yield(Participant{}, ErrPagingStalled)
				return
			}
			if next == from {
				for id := range boundary {
					nextBoundary[id] = true
				}
			}
			from, boundary = next, nextBoundary
		}
	}
}
