package continuity

import (
	"strings"
	"time"

	"github.com/cf-ai-screenwriter-go/internal/middleware"
	"github.com/cf-ai-screenwriter-go/internal/models"
	"github.com/sirupsen/logrus"
)

// pipeline runs after sequencing succeeds
var pipeline = []validator{
	checkCharacters,
	checkPlotThreads,
	checkProps,
	checkLocations,
	checkTimeline,
}

// Analyze checks an ordered script for continuity problems. It never
// modifies scenes and returns the same report for the same input.
func Analyze(scenes []models.Scene) Report {
	v := newView(scenes)
	report := Report{
		Issues:      []Issue{},
		Suggestions: []string{},
		Summary:     summarize(v),
	}

	issues, suggestions := checkSequencing(v)
	report.Issues = append(report.Issues, issues...)
	report.Suggestions = append(report.Suggestions, suggestions...)

	if len(issues) == 0 {
		for _, check := range pipeline {
			issues, suggestions := check(v)
			report.Issues = append(report.Issues, issues...)
			report.Suggestions = append(report.Suggestions, suggestions...)
		}
	}

	report.Status = status(report)
	return report
}

func status(r Report) Status {
	for _, issue := range r.Issues {
		if issue.Kind.Fatal() {
			return StatusError
		}
	}
	if len(r.Issues) > 0 || len(r.Suggestions) > 0 {
		return StatusWarning
	}
	return StatusOK
}

func summarize(v *view) Summary {
	summary := Summary{
		CharacterAppearances: characterAppearances(v),
		PropLifespans:        propLifespans(v),
		LocationsUsed:        []string{},
		Timeline:             make([]TimelineEntry, 0, len(v.scenes)),
	}
	summary.PlotThreadStatus, _ = threadStatus(v)

	seen := make(map[string]struct{})
	for _, s := range v.scenes {
		setting := strings.TrimSpace(s.Setting)
		if setting != "" {
			key := strings.ToLower(setting)
			if _, ok := seen[key]; !ok {
				seen[key] = struct{}{}
				summary.LocationsUsed = append(summary.LocationsUsed, setting)
			}
		}

		tod := s.TimeOfDay.Normalize()
		if tod == "" {
			tod = models.Unknown
		}
		summary.Timeline = append(summary.Timeline, TimelineEntry{Scene: s.SequenceIndex, TimeOfDay: string(tod)})
	}
	return summary
}

// Analyzer runs Analyze with logging and metrics
type Analyzer struct {
	metrics *middleware.Metrics
	logger  *logrus.Logger
}

// NewAnalyzer creates a new analyzer service
func NewAnalyzer(metrics *middleware.Metrics, logger *logrus.Logger) *Analyzer {
	return &Analyzer{
		metrics: metrics,
		logger:  logger,
	}
}

// Analyze analyzes scenes and records the outcome
func (a *Analyzer) Analyze(scenes []models.Scene) Report {
	start := time.Now()
	report := Analyze(scenes)

	a.metrics.RecordAnalysis(string(report.Status))
	a.logger.WithFields(logrus.Fields{
		"scenes":      len(scenes),
		"status":      report.Status,
		"issues":      len(report.Issues),
		"suggestions": len(report.Suggestions),
		"duration":    time.Since(start).String(),
	}).Info("Continuity analysis completed")

	return report
}
