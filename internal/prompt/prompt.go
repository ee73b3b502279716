// Package prompt maps (task type, video metadata, transcript) to the exact
// instruction text sent to the LLM. Pure functions: same inputs, same string.
package prompt

import (
	"fmt"
	"strconv"

	"tubeinsights/internal/types"
)

// instructions holds the task-specific instruction block per task type.
var instructions = map[types.TaskType]string{
	types.TaskStructuralBeats: structuralBeatsInstruction,
	types.TaskEmotionalArc:    emotionalArcInstruction,
	types.TaskMonetization:    monetizationInstruction,
	types.TaskTitlePattern:    titlePatternInstruction,
	types.TaskVisualAssets:    visualAssetsInstruction,
	types.TaskHighlights:      highlightsInstruction,
	types.TaskNarrative:       narrativeInstruction,
	types.TaskOverview:        overviewInstruction,
}

// charBudgets caps the transcript excerpt per task. Long-context tasks get
// more; metadata-centric tasks need less.
var charBudgets = map[types.TaskType]int{
	types.TaskStructuralBeats: 8000,
	types.TaskEmotionalArc:    8000,
	types.TaskMonetization:    6000,
	types.TaskTitlePattern:    6000,
	types.TaskVisualAssets:    6000,
	types.TaskHighlights:      10000,
	types.TaskNarrative:       10000,
	types.TaskOverview:        9000,
}

// Build produces the full instruction text for one task.
func Build(task types.TaskType, video types.Video, transcript string) string {
	instruction, ok := instructions[task]
	if !ok {
		instruction = overviewInstruction
	}
	budget := charBudgets[task]
	if budget == 0 {
		budget = 8000
	}

	ctx := fmt.Sprintf(contextBlock,
		video.Title,
		video.Channel,
		ClockDuration(video.Duration),
		formatCount(video.ViewCount),
		formatCount(video.LikeCount),
		formatCount(video.CommentCount),
		Truncate(transcript, budget),
	)

	return preamble + "\n\n" + instruction + ctx
}

// BuildRetry appends the validation failure to a previously built prompt so the
// model can correct its output.
func BuildRetry(base, reason string) string {
	return base + fmt.Sprintf(retryInstruction, reason)
}

// ClockDuration formats seconds as MM:SS, or H:MM:SS above one hour.
func ClockDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// Truncate cuts text to at most limit characters, marking the cut.
func Truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "..."
}

func formatCount(n *int64) string {
	if n == nil {
		return "unknown"
	}
	return strconv.FormatInt(*n, 10)
}
