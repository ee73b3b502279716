package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tubeinsights/internal/types"
)

// sectionTitles maps each task type to its report heading.
var sectionTitles = map[types.TaskType]string{
	types.TaskOverview:        "Overview",
	types.TaskStructuralBeats: "Structural Beats",
	types.TaskEmotionalArc:    "Emotional Arc",
	types.TaskNarrative:       "Narrative Analysis",
	types.TaskHighlights:      "Highlights",
	types.TaskTitlePattern:    "Title Pattern",
	types.TaskVisualAssets:    "Visual Assets",
	types.TaskMonetization:    "Monetization",
}

// reportOrder fixes the section order of the rendered report, leading with the
// summary-style sections.
var reportOrder = []types.TaskType{
	types.TaskOverview,
	types.TaskStructuralBeats,
	types.TaskEmotionalArc,
	types.TaskNarrative,
	types.TaskHighlights,
	types.TaskTitlePattern,
	types.TaskVisualAssets,
	types.TaskMonetization,
}

// RenderReport assembles the final markdown report for a video from its
// generated sections. Missing sections are skipped; ordering is fixed
// regardless of input order.
func RenderReport(video *types.Video, sections []types.Section) string {
	byTask := make(map[types.TaskType]types.Section, len(sections))
	for _, s := range sections {
		byTask[s.Task] = s
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", video.Title)
	if video.Channel != "" {
		fmt.Fprintf(&b, "Channel: %s\n\n", video.Channel)
	}
	fmt.Fprintf(&b, "Video: https://www.youtube.com/watch?v=%s\n\n", video.ExternalID)

	for _, task := range reportOrder {
		s, ok := byTask[task]
		if !ok || strings.TrimSpace(s.Markdown) == "" {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", sectionTitles[task], strings.TrimSpace(s.Markdown))
	}

	fmt.Fprintf(&b, "---\nGenerated %s\n", time.Now().UTC().Format("2006-01-02"))
	return b.String()
}

// LocalReporter writes finished reports as markdown files under a directory.
type LocalReporter struct {
	dir string
}

func NewLocalReporter(dir string) *LocalReporter {
	return &LocalReporter{dir: dir}
}

// Publish renders the report and writes it to
// <dir>/<timestamp>_<video id>.md.
func (r *LocalReporter) Publish(ctx context.Context, video *types.Video, sections []types.Section) error {
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("failed to create report dir: %w", err)
	}
	name := fmt.Sprintf("%s_%s.md", time.Now().Format("20060102_150405"), sanitizeFilename(video.ExternalID))
	path := filepath.Join(r.dir, name)
	if err := os.WriteFile(path, []byte(RenderReport(video, sections)), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
