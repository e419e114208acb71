package domain

import "time"

// Interview is session metadata owned by the external interview API.
type Interview struct {
	ID               int        `json:"id"`
	InterviewTopic   string     `json:"interview_topic"`
	InterviewerName  string     `json:"interviewer_name"`
	CandidateName    string     `json:"candidate_name"`
	InterviewerEmail string     `json:"interviewer_email,omitempty"`
	CandidateEmail   string     `json:"candidate_email,omitempty"`
	CandidateLevel   string     `json:"candidate_level,omitempty"`
	ScheduledTime    *time.Time `json:"scheduled_time,omitempty"`
	IsCompleted      bool       `json:"is_completed"`
	RecordingPath    string     `json:"recording_path,omitempty"`
	Transcript       string     `json:"transcript,omitempty"`
	AISummary        string     `json:"ai_summary,omitempty"`
	IsProcessing     bool       `json:"is_processing"`
	ErrorMessage     string     `json:"error_message,omitempty"`
}

// Notification is one fire-and-forget message per recipient.
type Notification struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}
