package generation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lamim/programforge/internal/planner"
	"github.com/lamim/programforge/internal/util"
	"github.com/lamim/programforge/pkg/models"
)

var errEmptyResponse = errors.New("empty response")

// truncationReasons are finish reasons that mean the output hit its token limit
var truncationReasons = map[string]bool{
	"length":            true,
	"max_tokens":        true,
	"max_output_tokens": true,
	"truncated":         true,
}

// IsTruncated reports whether a finish reason means the output was cut short
func IsTruncated(finishReason string) bool {
	return truncationReasons[strings.ToLower(strings.TrimSpace(finishReason))]
}

// ParseDraft extracts and decodes the program payload from a model response.
// A bare array is read as the list of weeks.
func ParseDraft(text string) (*models.ProgramDraft, error) {
	payload := util.ExtractJSON(util.StripThinkTags(text))
	if payload == "" {
		return nil, errEmptyResponse
	}
	payload = util.SanitizeJSON(payload)

	var draft models.ProgramDraft
	if strings.HasPrefix(payload, "[") {
		if err := json.Unmarshal([]byte(payload), &draft.Weeks); err != nil {
			return nil, fmt.Errorf("decode weeks: %w", err)
		}
		return &draft, nil
	}
	if err := json.Unmarshal([]byte(payload), &draft); err != nil {
		return nil, fmt.Errorf("decode program: %w", err)
	}
	return &draft, nil
}

// missingWeeks lists the weeks of chunk's range that draft does not contain
func missingWeeks(draft *models.ProgramDraft, chunk planner.Chunk) []int {
	have := make(map[int]bool, len(draft.Weeks))
	for _, w := range draft.Weeks {
		if chunk.Covers(w.Number) {
			have[w.Number] = true
		}
	}
	var missing []int
	for n := chunk.StartWeek; n <= chunk.EndWeek; n++ {
		if !have[n] {
			missing = append(missing, n)
		}
	}
	return missing
}
