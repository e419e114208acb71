package domain

import "time"

type JobKind string

const (
	JobTranscript JobKind = "transcript"
	JobAnalysis   JobKind = "analysis"
)

// JobWatch describes one client-side poll of a server job.
// Interval and Deadline are fixed at creation; zero Deadline means none.
type JobWatch struct {
	Session   SessionID
	Kind      JobKind
	Interval  time.Duration
	Deadline  time.Duration
	StartedAt time.Time
}

func (w JobWatch) Key() WatchKey { return WatchKey{Session: w.Session, Kind: w.Kind} }

type WatchKey struct {
	Session SessionID
	Kind    JobKind
}

type TranscriptSegment struct {
	Speaker string  `json:"speaker"`
	Text    string  `json:"text"`
	Start   float64 `json:"start,omitempty"`
	End     float64 `json:"end,omitempty"`
}

// TranscriptStatus mirrors GET /interviews/{id}/transcript.
type TranscriptStatus struct {
	IsProcessing   bool                `json:"is_processing"`
	ErrorMessage   string              `json:"error_message,omitempty"`
	Transcript     string              `json:"transcript,omitempty"`
	TranscriptJSON []TranscriptSegment `json:"transcript_json,omitempty"`
}
