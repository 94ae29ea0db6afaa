package model

import "time"

// Snapshot is a recorded raw search response body.
type Snapshot struct {
	ID          string    `json:"id"`
	Query       string    `json:"query"`
	Body        []byte    `json:"-"`
	ResultCount int       `json:"result_count"`
	CapturedAt  time.Time `json:"captured_at"`
}

// Results parses the recorded body.
func (s *Snapshot) Results() ([]SearchResult, error) {
	return ParseSearchResults(s.Body)
}
