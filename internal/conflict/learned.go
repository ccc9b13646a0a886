package conflict

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/wharflab/deltareview/internal/reviewmodel"
	"github.com/wharflab/deltareview/internal/rules"
)

// LearnedRuleStore persists promoted rules as a single JSON document keyed
// by language, with an in-memory cache invalidated on every write.
type LearnedRuleStore struct {
	Path string

	mu    sync.RWMutex
	cache *reviewmodel.LearnedRuleFile
}

// NewLearnedRuleStore creates a store backed by the document at path.
func NewLearnedRuleStore(path string) *LearnedRuleStore {
	return &LearnedRuleStore{Path: path}
}

func (s *LearnedRuleStore) load() (*reviewmodel.LearnedRuleFile, error) {
	s.mu.RLock()
	if s.cache != nil {
		defer s.mu.RUnlock()
		return s.cache, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cache != nil {
		return s.cache, nil
	}

	doc := &reviewmodel.LearnedRuleFile{Version: 1, Rules: map[string][]reviewmodel.LearnedRuleEntry{}}
	data, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		s.cache = doc
		return doc, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, err
	}
	if doc.Rules == nil {
		doc.Rules = map[string][]reviewmodel.LearnedRuleEntry{}
	}
	s.cache = doc
	return doc, nil
}

// RulesForLanguage implements rules.LearnedRuleSource.
func (s *LearnedRuleStore) RulesForLanguage(language string) []rules.LearnedRule {
	doc, err := s.load()
	if err != nil {
		return nil
	}
	entries := doc.Rules[language]
	out := make([]rules.LearnedRule, 0, len(entries))
	for _, e := range entries {
		out = append(out, rules.LearnedRule{
			RuleID:         e.RuleID,
			RequiredTags:   e.RequiredTags,
			ContextLevel:   e.ContextLevel,
			BaseConfidence: e.BaseConfidence,
			Notes:          e.Notes,
		})
	}
	return out
}

// Upsert updates an existing rule in place by rule_id, or appends a new
// entry, then writes the whole document and invalidates the cache.
func (s *LearnedRuleStore) Upsert(rule reviewmodel.ApplicableRule, source reviewmodel.LearnedRuleSource, now time.Time) error {
	doc, err := s.load()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := reviewmodel.LearnedRuleEntry{
		RuleID:         rule.RuleID,
		RequiredTags:   rule.RequiredTags,
		ContextLevel:   rule.SuggestedContextLevel,
		BaseConfidence: rule.Confidence,
		Source:         source,
		LearnedAt:      now,
		SampleCount:    rule.SampleCount,
		Consistency:    rule.Consistency,
	}

	entries := doc.Rules[rule.Language]
	replaced := false
	for i, e := range entries {
		if e.RuleID == rule.RuleID {
			entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].RuleID < entries[j].RuleID })
	doc.Rules[rule.Language] = entries
	doc.UpdatedAt = now

	if err := s.writeLocked(doc); err != nil {
		return err
	}
	s.cache = nil
	return nil
}

func (s *LearnedRuleStore) writeLocked(doc *reviewmodel.LearnedRuleFile) error {
	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.Path, data, 0o644)
}
