// Package conflict detects rule/planner disagreements, persists them,
// mines them for promotable rules, and retains the learned-rule store that
// feeds back into the rule engine.
package conflict

import (
	"crypto/md5" //nolint:gosec // used only as a stable short fingerprint, not for security
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wharflab/deltareview/internal/contextlevel"
	"github.com/wharflab/deltareview/internal/reviewmodel"
)

const (
	thresholdHigh = 0.8
	thresholdLow  = 0.3
)

// Tracker persists conflicts one-file-per-conflict under Dir and serves
// summaries/trends/cleanup over them. It holds no package-level state; each
// pipeline run constructs its own handle.
type Tracker struct {
	Dir string

	mu      sync.Mutex
	session []reviewmodel.RuleConflict
}

// NewTracker creates a Tracker persisting to dir.
func NewTracker(dir string) *Tracker {
	return &Tracker{Dir: dir}
}

// Detect evaluates the four mutually-exclusive detection rules in order and
// returns the conflict that fired, or nil if none did.
func Detect(unit *reviewmodel.ReviewUnit, item *reviewmodel.PlanItem, now time.Time) *reviewmodel.RuleConflict {
	ruleLevel := unit.RuleContextLevel
	ruleRank := contextlevel.Rank(ruleLevel)
	ruleConf := unit.RuleConfidence

	var llmRank int
	if item.LLMContextLevel != nil {
		llmRank = contextlevel.Rank(*item.LLMContextLevel)
	} else {
		llmRank = -1
	}

	var conflictType reviewmodel.ConflictType
	switch {
	case ruleConf >= thresholdHigh && llmRank > ruleRank && llmRank >= 0:
		conflictType = reviewmodel.ConflictRuleHighLLMExpand
	case ruleConf >= thresholdHigh && item.SkipReview && ruleRank > contextlevel.Rank(contextlevel.DiffOnly):
		conflictType = reviewmodel.ConflictRuleHighLLMSkip
	case ruleConf < thresholdLow && llmRank >= 0:
		conflictType = reviewmodel.ConflictRuleLowLLMConsistent
	case ruleConf >= thresholdLow && ruleConf < thresholdHigh && llmRank >= 0 && abs(llmRank-ruleRank) > 1:
		conflictType = reviewmodel.ConflictContextLevelMismatch
	default:
		return nil
	}

	return &reviewmodel.RuleConflict{
		ConflictType:      conflictType,
		UnitID:            unit.UnitID,
		Language:          unit.Language,
		Tags:              append([]string(nil), unit.Tags...),
		RuleNotes:         unit.RuleNotes,
		RuleContextLevel:  ruleLevel,
		RuleConfidence:    ruleConf,
		LLMContextLevel:   item.LLMContextLevel,
		LLMSkipReview:     item.SkipReview,
		LLMReason:         item.Reason,
		FinalContextLevel: item.FinalContextLevel,
		FilePath:          unit.FilePath,
		Symbol:            unit.Symbol,
		Timestamp:         now,
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Record appends c to the in-memory session list and persists it as its own
// file.
func (t *Tracker) Record(c reviewmodel.RuleConflict) error {
	t.mu.Lock()
	t.session = append(t.session, c)
	t.mu.Unlock()

	if t.Dir == "" {
		return nil
	}
	if err := os.MkdirAll(t.Dir, 0o755); err != nil {
		return err
	}

	ts := c.Timestamp.UTC()
	name := fmt.Sprintf("%s_%06d_%s.json", ts.Format("20060102_150405"), ts.Nanosecond()/1000, c.ConflictType)

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(t.Dir, name), data, 0o644)
}

// SessionConflicts returns every conflict recorded against this Tracker
// instance so far.
func (t *Tracker) SessionConflicts() []reviewmodel.RuleConflict {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]reviewmodel.RuleConflict, len(t.session))
	copy(out, t.session)
	return out
}

// Load reads every persisted conflict file from Dir.
func (t *Tracker) Load() ([]reviewmodel.RuleConflict, error) {
	if t.Dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(t.Dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var conflicts []reviewmodel.RuleConflict
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(t.Dir, e.Name()))
		if err != nil {
			continue
		}
		var c reviewmodel.RuleConflict
		if err := json.Unmarshal(data, &c); err != nil {
			continue
		}
		conflicts = append(conflicts, c)
	}
	return conflicts, nil
}

// Summary aggregates conflicts by type, language, and the first two
// rule_notes tokens (split on '+').
type Summary struct {
	Total       int            `json:"total"`
	ByType      map[string]int `json:"by_type"`
	ByLanguage  map[string]int `json:"by_language"`
	ByNoteGroup map[string]int `json:"by_note_group"`
}

// Summarize builds a Summary over conflicts.
func Summarize(conflicts []reviewmodel.RuleConflict) Summary {
	s := Summary{
		ByType:      map[string]int{},
		ByLanguage:  map[string]int{},
		ByNoteGroup: map[string]int{},
	}
	for _, c := range conflicts {
		s.Total++
		s.ByType[string(c.ConflictType)]++
		s.ByLanguage[c.Language]++
		s.ByNoteGroup[noteGroup(c.RuleNotes)]++
	}
	return s
}

func noteGroup(notes string) string {
	parts := strings.SplitN(notes, "+", 3)
	if len(parts) > 2 {
		parts = parts[:2]
	}
	return strings.Join(parts, "+")
}

// TrendPoint is one day's bucket in a trend analysis.
type TrendPoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Trend summarizes how conflict volume is moving over windowDays.
type Trend struct {
	WindowDays      int          `json:"window_days"`
	Points          []TrendPoint `json:"points"`
	AverageDaily    float64      `json:"average_daily"`
	LatestVsAverage float64      `json:"latest_vs_average_pct"`
	ModalType       string       `json:"modal_type"`
	ModalLanguage   string       `json:"modal_language"`
}

// AnalyzeTrend buckets conflicts within the last windowDays (relative to
// now) into daily counts and reports the modal type/language.
func AnalyzeTrend(conflicts []reviewmodel.RuleConflict, now time.Time, windowDays int) Trend {
	if windowDays <= 0 {
		windowDays = 7
	}
	cutoff := now.AddDate(0, 0, -windowDays)

	byDay := map[string]int{}
	byType := map[string]int{}
	byLang := map[string]int{}
	for d := 0; d < windowDays; d++ {
		day := cutoff.AddDate(0, 0, d+1).Format("2006-01-02")
		byDay[day] = 0
	}

	for _, c := range conflicts {
		if c.Timestamp.Before(cutoff) {
			continue
		}
		day := c.Timestamp.UTC().Format("2006-01-02")
		if _, ok := byDay[day]; ok {
			byDay[day]++
		}
		byType[string(c.ConflictType)]++
		byLang[c.Language]++
	}

	days := make([]string, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Strings(days)

	points := make([]TrendPoint, 0, len(days))
	total := 0
	for _, d := range days {
		points = append(points, TrendPoint{Date: d, Count: byDay[d]})
		total += byDay[d]
	}

	avg := 0.0
	if len(days) > 0 {
		avg = float64(total) / float64(len(days))
	}
	latestPct := 0.0
	if avg > 0 && len(points) > 0 {
		latest := points[len(points)-1].Count
		latestPct = (float64(latest) - avg) / avg * 100
	}

	return Trend{
		WindowDays:      windowDays,
		Points:          points,
		AverageDaily:    avg,
		LatestVsAverage: latestPct,
		ModalType:       modalKey(byType),
		ModalLanguage:   modalKey(byLang),
	}
}

func modalKey(counts map[string]int) string {
	best, bestCount := "", -1
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if counts[k] > bestCount {
			best, bestCount = k, counts[k]
		}
	}
	return best
}

// Cleanup deletes conflict files older than maxAgeDays, then evicts the
// oldest remaining files beyond maxCount (0 disables that bound).
func (t *Tracker) Cleanup(now time.Time, maxAgeDays, maxCount int) (deleted int, err error) {
	if t.Dir == "" {
		return 0, nil
	}
	entries, err := os.ReadDir(t.Dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	type fileInfo struct {
		path string
		ts   time.Time
	}
	var files []fileInfo
	cutoff := now.AddDate(0, 0, -maxAgeDays)

	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		path := filepath.Join(t.Dir, e.Name())
		ts, ok := timestampFromName(e.Name())
		if !ok {
			if info, statErr := e.Info(); statErr == nil {
				ts = info.ModTime()
			}
		}
		if maxAgeDays > 0 && ts.Before(cutoff) {
			if rmErr := os.Remove(path); rmErr == nil {
				deleted++
			}
			continue
		}
		files = append(files, fileInfo{path: path, ts: ts})
	}

	if maxCount > 0 && len(files) > maxCount {
		sort.Slice(files, func(i, j int) bool { return files[i].ts.Before(files[j].ts) })
		excess := len(files) - maxCount
		for _, f := range files[:excess] {
			if rmErr := os.Remove(f.path); rmErr == nil {
				deleted++
			}
		}
	}

	return deleted, nil
}

func timestampFromName(name string) (time.Time, bool) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	parts := strings.SplitN(base, "_", 4)
	if len(parts) < 3 {
		return time.Time{}, false
	}
	ts, err := time.Parse("20060102_150405.000000", parts[0]+"_"+parts[1]+"."+parts[2])
	if err != nil {
		return time.Time{}, false
	}
	return ts.UTC(), true
}

// fingerprint produces the stable rule_id (rule_<language>_<8 hex>) used by both
// ApplicableRule promotion and manual promotion.
func fingerprint(language string, tags []string, conflictType reviewmodel.ConflictType) string {
	sorted := append([]string(nil), tags...)
	sort.Strings(sorted)
	key := language + ":" + strings.Join(sorted, "+") + ":" + string(conflictType)
	sum := md5.Sum([]byte(key)) //nolint:gosec
	return "rule_" + language + "_" + hex.EncodeToString(sum[:])[:8]
}
