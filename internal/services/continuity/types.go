package continuity

// Kind classifies an issue
type Kind string

const (
	KindSequencing         Kind = "sequencing"
	KindSpeakerNotPresent  Kind = "speaker_not_present"
	KindCharacterGap       Kind = "character_gap"
	KindUnresolvedThread   Kind = "unresolved_thread"
	KindTimelineRegression Kind = "timeline_regression"
)

// Fatal reports whether an issue of this kind makes the report an error.
// Character gaps are flagged but may be justified by the narrative.
func (k Kind) Fatal() bool {
	return k != KindCharacterGap
}

// Status is the overall verdict of a report
type Status string

const (
	StatusOK      Status = "ok"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// Issue is a detected continuity violation. It refers either to a single
// scene (SceneRef) or to a span of scenes (SceneRange); the unused field is
// left empty and omitted from JSON.
type Issue struct {
	Kind       Kind    `json:"kind"`
	SceneRef   int     `json:"scene_ref,omitempty"`
	SceneRange *[2]int `json:"scene_range,omitempty"`
	Subject    string  `json:"subject,omitempty"`
	Message    string  `json:"message"`
}

func span(from, to int) *[2]int {
	return &[2]int{from, to}
}

// Report is the result of analyzing a script
type Report struct {
	Status      Status   `json:"status"`
	Issues      []Issue  `json:"issues"`
	Suggestions []string `json:"suggestions"`
	Summary     Summary  `json:"summary"`
}

// Summary tracks the entities seen across the script
type Summary struct {
	CharacterAppearances map[string][]int        `json:"character_appearances"`
	PlotThreadStatus     map[string]ThreadStatus `json:"plot_thread_status"`
	PropLifespans        map[string]Lifespan     `json:"prop_lifespans"`
	LocationsUsed        []string                `json:"locations_used"`
	Timeline             []TimelineEntry         `json:"timeline"`
}

// Thread states
const (
	ThreadResolved   = "resolved"
	ThreadUnresolved = "unresolved"
	// ThreadOrphaned is a thread that is resolved but never introduced
	ThreadOrphaned = "orphaned"
)

type ThreadStatus struct {
	Introduced int    `json:"introduced,omitempty"`
	Resolved   int    `json:"resolved,omitempty"`
	State      string `json:"state"`
}

// Lifespan is the first and last scene mentioning a prop
type Lifespan struct {
	First       int `json:"first"`
	Last        int `json:"last"`
	Appearances int `json:"appearances"`
}

type TimelineEntry struct {
	Scene     int    `json:"scene"`
	TimeOfDay string `json:"time_of_day"`
}
