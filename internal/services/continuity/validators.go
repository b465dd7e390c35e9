package continuity

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cf-ai-screenwriter-go/internal/models"
)

const (
	// maxCharacterGap is the largest allowed distance between two
	// consecutive appearances of a character
	maxCharacterGap = 3
	// maxPropSpan is the largest prop lifespan that needs no reinforcement
	maxPropSpan = 5
)

// validator is one independent check over an ordered script
type validator func(v *view) (issues []Issue, suggestions []string)

// view is the analyzer's read-only, ordered copy of the input
type view struct {
	scenes []models.Scene
}

func newView(scenes []models.Scene) *view {
	ordered := make([]models.Scene, len(scenes))
	copy(ordered, scenes)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].SequenceIndex < ordered[j].SequenceIndex
	})
	return &view{scenes: ordered}
}

// checkSequencing requires indices to be exactly 1..N with no gaps or duplicates
func checkSequencing(v *view) ([]Issue, []string) {
	var issues []Issue
	seen := make(map[int]int)
	maxIndex := 0

	for _, s := range v.scenes {
		if s.SequenceIndex < 1 {
			issues = append(issues, Issue{
				Kind:     KindSequencing,
				SceneRef: s.SequenceIndex,
				Message:  fmt.Sprintf("scene index %d is not a positive number", s.SequenceIndex),
			})
			continue
		}
		seen[s.SequenceIndex]++
		if s.SequenceIndex > maxIndex {
			maxIndex = s.SequenceIndex
		}
	}

	for i := 1; i <= maxIndex; i++ {
		switch n := seen[i]; {
		case n == 0:
			issues = append(issues, Issue{
				Kind:     KindSequencing,
				SceneRef: i,
				Message:  fmt.Sprintf("scene %d is missing from the sequence", i),
			})
		case n > 1:
			issues = append(issues, Issue{
				Kind:     KindSequencing,
				SceneRef: i,
				Message:  fmt.Sprintf("scene index %d is used by %d scenes", i, n),
			})
		}
	}
	return issues, nil
}

// checkCharacters flags speakers missing from the presence list and long
// absences between appearances
func checkCharacters(v *view) ([]Issue, []string) {
	var issues []Issue

	for _, s := range v.scenes {
		present := toSet(s.CharactersPresent)
		for _, speaker := range unique(s.DialogueSpeakers) {
			if _, ok := present[speaker]; ok {
				continue
			}
			issues = append(issues, Issue{
				Kind:     KindSpeakerNotPresent,
				SceneRef: s.SequenceIndex,
				Subject:  speaker,
				Message:  fmt.Sprintf("character %q speaks in scene %d but is not listed as present", speaker, s.SequenceIndex),
			})
		}
	}

	appearances := characterAppearances(v)
	for _, name := range sortedKeys(appearances) {
		seen := appearances[name]
		for i := 1; i < len(seen); i++ {
			if seen[i]-seen[i-1] <= maxCharacterGap {
				continue
			}
			issues = append(issues, Issue{
				Kind:       KindCharacterGap,
				SceneRange: span(seen[i-1], seen[i]),
				Subject:    name,
				Message:    fmt.Sprintf("character %q is absent between scenes %d and %d", name, seen[i-1], seen[i]),
			})
		}
	}
	return issues, nil
}

// checkPlotThreads flags threads that are introduced but never resolved in a
// later scene
func checkPlotThreads(v *view) ([]Issue, []string) {
	var issues []Issue
	var suggestions []string

	threads, early := threadStatus(v)
	for _, name := range sortedKeys(threads) {
		t := threads[name]
		switch t.State {
		case ThreadUnresolved:
			issues = append(issues, Issue{
				Kind:     KindUnresolvedThread,
				SceneRef: t.Introduced,
				Subject:  name,
				Message:  fmt.Sprintf("plot thread %q introduced in scene %d is never resolved", name, t.Introduced),
			})
		case ThreadOrphaned:
			suggestions = append(suggestions, fmt.Sprintf("Plot thread %q is resolved in scene %d but never introduced", name, t.Resolved))
		}
	}

	for _, name := range sortedKeys(early) {
		t, ok := threads[name]
		if !ok || t.State == ThreadOrphaned {
			continue
		}
		if early[name] == t.Introduced {
			suggestions = append(suggestions, fmt.Sprintf("Plot thread %q is introduced and resolved in scene %d, consider resolving it in a later scene", name, t.Introduced))
			continue
		}
		suggestions = append(suggestions, fmt.Sprintf("Plot thread %q is resolved in scene %d before it is introduced in scene %d", name, early[name], t.Introduced))
	}
	return issues, suggestions
}

// checkProps suggests reinforcing props that span many scenes
func checkProps(v *view) ([]Issue, []string) {
	var suggestions []string
	spans := propLifespans(v)
	for _, name := range sortedKeys(spans) {
		span := spans[name]
		if span.Last-span.First > maxPropSpan {
			suggestions = append(suggestions, fmt.Sprintf("Consider showing prop %q between scenes %d and %d", name, span.First, span.Last))
		}
	}
	return nil, suggestions
}

// checkLocations suggests varying back to back scenes in the same setting
func checkLocations(v *view) ([]Issue, []string) {
	var suggestions []string
	for i := 1; i < len(v.scenes); i++ {
		prev, cur := v.scenes[i-1], v.scenes[i]
		setting := strings.TrimSpace(cur.Setting)
		if setting == "" || !strings.EqualFold(strings.TrimSpace(prev.Setting), setting) {
			continue
		}
		suggestions = append(suggestions, fmt.Sprintf("Scenes %d and %d both take place in %q, consider varying locations", prev.SequenceIndex, cur.SequenceIndex, setting))
	}
	return nil, suggestions
}

// checkTimeline flags time of day regressions between consecutive scenes.
// Midnight to dawn is the only allowed wraparound; markers without an
// ordering never raise an issue.
func checkTimeline(v *view) ([]Issue, []string) {
	var issues []Issue
	var suggestions []string

	for _, s := range v.scenes {
		if !s.TimeOfDay.Recognized() {
			suggestions = append(suggestions, fmt.Sprintf("Scene %d uses an unrecognized time of day %q", s.SequenceIndex, string(s.TimeOfDay)))
		}
	}

	for i := 1; i < len(v.scenes); i++ {
		prev, cur := v.scenes[i-1], v.scenes[i]
		from, ok1 := prev.TimeOfDay.Rank()
		to, ok2 := cur.TimeOfDay.Rank()
		if !ok1 || !ok2 || to >= from {
			continue
		}
		if prev.TimeOfDay.Normalize() == models.Midnight && cur.TimeOfDay.Normalize() == models.Dawn {
			continue
		}
		issues = append(issues, Issue{
			Kind:       KindTimelineRegression,
			SceneRange: span(prev.SequenceIndex, cur.SequenceIndex),
			Subject:    fmt.Sprintf("%s -> %s", prev.TimeOfDay.Normalize(), cur.TimeOfDay.Normalize()),
			Message: fmt.Sprintf("time moves backwards from %s in scene %d to %s in scene %d",
				prev.TimeOfDay.Normalize(), prev.SequenceIndex, cur.TimeOfDay.Normalize(), cur.SequenceIndex),
		})
	}
	return issues, suggestions
}

func characterAppearances(v *view) map[string][]int {
	out := make(map[string][]int)
	for _, s := range v.scenes {
		for _, name := range unique(s.CharactersPresent) {
			out[name] = append(out[name], s.SequenceIndex)
		}
	}
	return out
}

// threadStatus resolves each thread at the first scene after its
// introduction. early holds resolutions seen at or before the introduction.
func threadStatus(v *view) (threads map[string]ThreadStatus, early map[string]int) {
	threads = make(map[string]ThreadStatus)
	early = make(map[string]int)

	for _, s := range v.scenes {
		for _, name := range unique(s.PlotThreadsIntroduced) {
			if _, ok := threads[name]; !ok {
				threads[name] = ThreadStatus{Introduced: s.SequenceIndex, State: ThreadUnresolved}
			}
		}
		for _, name := range unique(s.PlotThreadsResolved) {
			t, ok := threads[name]
			if ok && t.State == ThreadUnresolved && s.SequenceIndex > t.Introduced {
				t.Resolved = s.SequenceIndex
				t.State = ThreadResolved
				threads[name] = t
				continue
			}
			if !ok || s.SequenceIndex <= t.Introduced {
				if _, seen := early[name]; !seen {
					early[name] = s.SequenceIndex
				}
			}
		}
	}

	for name, idx := range early {
		if _, ok := threads[name]; !ok {
			threads[name] = ThreadStatus{Resolved: idx, State: ThreadOrphaned}
		}
	}
	return threads, early
}

func propLifespans(v *view) map[string]Lifespan {
	out := make(map[string]Lifespan)
	for _, s := range v.scenes {
		for _, name := range unique(s.PropsPresent) {
			span, ok := out[name]
			if !ok {
				span.First = s.SequenceIndex
			}
			span.Last = s.SequenceIndex
			span.Appearances++
			out[name] = span
		}
	}
	return out
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}

// unique keeps the first occurrence of each non-empty item
func unique(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
