// Package planner builds the review index sent to the external LLM planner
// and parses its plan response. The planner itself is an ACP subprocess
// agent; only the request/response contract is fixed here, never a
// specific model or vendor.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wharflab/deltareview/internal/ai/acp"
	"github.com/wharflab/deltareview/internal/pipelineerrors"
	"github.com/wharflab/deltareview/internal/reviewmodel"
)

// RequestUnit is one unit's entry in the review index sent to the planner.
type RequestUnit struct {
	UnitID           string   `json:"unit_id"`
	FilePath         string   `json:"file_path"`
	PatchType        string   `json:"patch_type"`
	Tags             []string `json:"tags"`
	AddedLines       int      `json:"added_lines"`
	RemovedLines     int      `json:"removed_lines"`
	RuleContextLevel string   `json:"rule_context_level"`
	RuleConfidence   float64  `json:"rule_confidence"`
	LineNumbers      [2]int   `json:"line_numbers"`
}

// RequestFile groups a file's changed units with the context a planner
// needs to form an opinion about them without re-deriving the diff.
type RequestFile struct {
	FilePath             string           `json:"file_path"`
	UnifiedDiffWithLines string           `json:"unified_diff_with_lines"`
	Symbol               *reviewmodel.Symbol `json:"symbol,omitempty"`
	RuleSuggestion       string           `json:"rule_suggestion,omitempty"`
}

// ReviewIndex is the complete planner request payload (spec §6).
type ReviewIndex struct {
	ReviewMetadata map[string]any `json:"review_metadata"`
	Summary        string         `json:"summary"`
	Units          []RequestUnit  `json:"units"`
	Files          []RequestFile  `json:"files"`
}

// BuildReviewIndex assembles the planner request from scored units.
func BuildReviewIndex(units []reviewmodel.ReviewUnit, sessionID, projectRoot string) ReviewIndex {
	idx := ReviewIndex{
		ReviewMetadata: map[string]any{
			"session_id":   sessionID,
			"project_root": projectRoot,
			"unit_count":   len(units),
		},
		Summary: summarize(units),
	}

	byFile := make(map[string][]reviewmodel.ReviewUnit)
	var fileOrder []string
	for _, u := range units {
		if _, seen := byFile[u.FilePath]; !seen {
			fileOrder = append(fileOrder, u.FilePath)
		}
		byFile[u.FilePath] = append(byFile[u.FilePath], u)

		idx.Units = append(idx.Units, RequestUnit{
			UnitID:           u.UnitID,
			FilePath:         u.FilePath,
			PatchType:        string(u.ChangeType),
			Tags:             u.Tags,
			AddedLines:       u.Metrics.AddedLines,
			RemovedLines:     u.Metrics.RemovedLines,
			RuleContextLevel: string(u.RuleContextLevel),
			RuleConfidence:   u.RuleConfidence,
			LineNumbers:      [2]int{u.HunkRange.NewStart, u.HunkRange.End()},
		})
	}

	for _, f := range fileOrder {
		fileUnits := byFile[f]
		var diffLines []string
		var symbol *reviewmodel.Symbol
		var suggestion []string
		for _, u := range fileUnits {
			diffLines = append(diffLines, fmt.Sprintf("@@ %d-%d @@\n%s", u.HunkRange.NewStart, u.HunkRange.End(), u.CodeSnippets.After))
			if u.Symbol != nil && symbol == nil {
				symbol = u.Symbol
			}
			if u.RuleNotes != "" {
				suggestion = append(suggestion, u.RuleNotes)
			}
		}
		idx.Files = append(idx.Files, RequestFile{
			FilePath:             f,
			UnifiedDiffWithLines: strings.Join(diffLines, "\n"),
			Symbol:               symbol,
			RuleSuggestion:       strings.Join(dedupe(suggestion), "; "),
		})
	}

	return idx
}

func summarize(units []reviewmodel.ReviewUnit) string {
	files := make(map[string]bool, len(units))
	for _, u := range units {
		files[u.FilePath] = true
	}
	return fmt.Sprintf("%d review unit(s) across %d file(s)", len(units), len(files))
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// Client sends a review index to the configured ACP agent command and
// parses its plan response.
type Client struct {
	Runner  *acp.Runner
	Command []string
	Cwd     string
	Timeout time.Duration
}

// NewClient builds a Client that runs command (argv form) as the planner
// agent, rooted at cwd.
func NewClient(command []string, cwd string, timeout time.Duration) *Client {
	return &Client{
		Runner:  acp.NewRunner(),
		Command: command,
		Cwd:     cwd,
		Timeout: timeout,
	}
}

// Plan sends idx to the planner and returns its decisions. A malformed or
// absent response is a pipelineerrors.PlannerError (a SkipReason, never
// fatal to the pipeline); fusion falls back to rule-only selection.
func (c *Client) Plan(ctx context.Context, idx ReviewIndex) (reviewmodel.PlannerResponse, error) {
	if len(c.Command) == 0 {
		return reviewmodel.PlannerResponse{}, &pipelineerrors.PlannerError{Detail: "no planner command configured"}
	}

	payload, err := json.Marshal(idx)
	if err != nil {
		return reviewmodel.PlannerResponse{}, &pipelineerrors.PlannerError{Detail: err.Error()}
	}

	prompt := "Review the following change index and respond with a single JSON object " +
		`of the shape {"plan":[{"unit_id":string,"llm_context_level":string,"extra_requests":[...],` +
		`"skip_review":bool,"reason":string}]}. Do not include any text outside the JSON object.\n\n` +
		string(payload)

	resp, err := c.Runner.Run(ctx, acp.RunRequest{
		Command: c.Command,
		Cwd:     c.Cwd,
		Timeout: c.Timeout,
		Prompt:  prompt,
	})
	if err != nil {
		return reviewmodel.PlannerResponse{}, &pipelineerrors.PlannerError{Detail: err.Error()}
	}

	var parsed reviewmodel.PlannerResponse
	if err := json.Unmarshal([]byte(extractJSON(resp.Text)), &parsed); err != nil {
		return reviewmodel.PlannerResponse{}, &pipelineerrors.PlannerError{Detail: "unparseable planner response: " + err.Error()}
	}
	return parsed, nil
}

// extractJSON strips a leading/trailing markdown code fence some agents
// wrap their JSON response in, and otherwise returns text unchanged.
func extractJSON(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}
