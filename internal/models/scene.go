package models

import (
	"strings"
	"time"
)

// TimeOfDay is a scene's time marker. Known values are totally ordered from
// dawn to midnight; anything else carries no ordering information.
type TimeOfDay string

const (
	Dawn      TimeOfDay = "dawn"
	Morning   TimeOfDay = "morning"
	Noon      TimeOfDay = "noon"
	Afternoon TimeOfDay = "afternoon"
	Evening   TimeOfDay = "evening"
	Night     TimeOfDay = "night"
	Midnight  TimeOfDay = "midnight"
	Unknown   TimeOfDay = "unknown"
)

var timeOrder = map[TimeOfDay]int{
	Dawn:      0,
	Morning:   1,
	Noon:      2,
	Afternoon: 3,
	Evening:   4,
	Night:     5,
	Midnight:  6,
}

// Normalize lowercases and trims the marker
func (t TimeOfDay) Normalize() TimeOfDay {
	return TimeOfDay(strings.ToLower(strings.TrimSpace(string(t))))
}

// Rank returns the position of t in the day and false for unknown markers
func (t TimeOfDay) Rank() (int, bool) {
	r, ok := timeOrder[t.Normalize()]
	return r, ok
}

// Recognized reports whether t is one of the defined markers, including "unknown" and empty
func (t TimeOfDay) Recognized() bool {
	n := t.Normalize()
	if n == "" || n == Unknown {
		return true
	}
	_, ok := timeOrder[n]
	return ok
}

// Scene is one entry of a script as seen by the continuity analyzer
type Scene struct {
	SequenceIndex         int       `json:"sequence_index" yaml:"sequence_index"`
	Setting               string    `json:"setting" yaml:"setting"`
	TimeOfDay             TimeOfDay `json:"time_of_day" yaml:"time_of_day"`
	CharactersPresent     []string  `json:"characters_present" yaml:"characters_present"`
	PropsPresent          []string  `json:"props_present" yaml:"props_present"`
	PlotThreadsIntroduced []string  `json:"plot_threads_introduced" yaml:"plot_threads_introduced"`
	PlotThreadsResolved   []string  `json:"plot_threads_resolved" yaml:"plot_threads_resolved"`
	DialogueSpeakers      []string  `json:"dialogue_speakers" yaml:"dialogue_speakers"`
}

// SceneRecord is a scene as persisted for a project
type SceneRecord struct {
	ID             int64     `json:"id"`
	ProjectID      int64     `json:"project_id"`
	Title          string    `json:"title"`
	SequenceNumber int       `json:"sequence_number"`
	Content        string    `json:"content,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	Status         string    `json:"status"`
	Continuity     Scene     `json:"continuity"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ToScene returns the analyzer view of the record. The record's sequence
// number is authoritative.
func (r SceneRecord) ToScene() Scene {
	s := r.Continuity
	s.SequenceIndex = r.SequenceNumber
	return s
}
