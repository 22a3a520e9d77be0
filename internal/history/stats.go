package history

import (
	"context"
	"errors"
	"time"
)

var ErrInvalidRange = errors.New("history: invalid time range")

// SummaryRequest selects the window to summarize. From is inclusive, To is
// exclusive.
type SummaryRequest struct {
	From time.Time
	To   time.Time
}

// Summary aggregates the call log for screens like "talk time this week".
type Summary struct {
	TotalCalls    int `json:"total_calls"`
	AnsweredCalls int `json:"answered_calls"`
	MissedCalls   int `json:"missed_calls"`
	DeclinedCalls int `json:"declined_calls"`

	IncomingCalls int `json:"incoming_calls"`
	OutgoingCalls int `json:"outgoing_calls"`
	VideoCalls    int `json:"video_calls"`

	TotalTalkSeconds   int `json:"total_talk_seconds"`
	AverageTalkSeconds int `json:"average_talk_seconds"`
}

// Summarize folds the ledger over the requested window.
func (l *Ledger) Summarize(ctx context.Context, req SummaryRequest) (Summary, error) {
	if req.From.IsZero() || req.To.IsZero() || !req.To.After(req.From) {
		return Summary{}, ErrInvalidRange
	}

	rows, err := l.List(ctx)
	if err != nil {
		return Summary{}, err
	}

	out := Summary{}
	for _, e := range rows {
		if e.Timestamp.Before(req.From) || !e.Timestamp.Before(req.To) {
			continue
		}
		out.TotalCalls++
		switch e.Status {
		case StatusAnswered:
			out.AnsweredCalls++
			out.TotalTalkSeconds += e.DurationSeconds
		case StatusMissed:
			out.MissedCalls++
		case StatusDeclined:
			out.DeclinedCalls++
		}
		switch e.Direction {
		case "incoming":
			out.IncomingCalls++
		case "outgoing":
			out.OutgoingCalls++
		}
		if e.Modality == "video" {
			out.VideoCalls++
		}
	}
	if out.AnsweredCalls > 0 {
		out.AverageTalkSeconds = out.TotalTalkSeconds / out.AnsweredCalls
	}
	return out, nil
}
