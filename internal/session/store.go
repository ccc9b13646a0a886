// Package session persists review sessions: conversation history, workflow
// events, diff snapshots, and static-scan linkage, one JSON file per
// session with an in-memory cache in front of disk.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/wharflab/deltareview/internal/pipelineerrors"
	"github.com/wharflab/deltareview/internal/reviewmodel"
)

// Summary is the reduced view list_sessions returns: enough to render a
// session picker without loading each file's full body.
type Summary struct {
	SessionID   string                     `json:"session_id"`
	Name        string                     `json:"name"`
	CreatedAt   time.Time                  `json:"created_at"`
	UpdatedAt   time.Time                  `json:"updated_at"`
	ProjectRoot string                     `json:"project_root"`
	Status      reviewmodel.SessionStatus  `json:"status"`
}

// Store is the explicit-handle session manager: an in-memory map backed by
// one JSON file per session under Dir.
type Store struct {
	Dir    string
	Logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*reviewmodel.Session
}

// New creates a Store rooted at dir, creating dir if absent.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &pipelineerrors.SessionOperationError{Op: "init", Cause: err}
	}
	return &Store{Dir: dir, Logger: logger, sessions: map[string]*reviewmodel.Session{}}, nil
}

func (s *Store) path(sessionID string) string {
	return filepath.Join(s.Dir, sessionID+".json")
}

// Create starts a new active session and persists it immediately.
func (s *Store) Create(sessionID, projectRoot string) *reviewmodel.Session {
	now := time.Now()
	sess := &reviewmodel.Session{
		SessionID: sessionID,
		Metadata: reviewmodel.SessionMetadata{
			CreatedAt:   now,
			UpdatedAt:   now,
			Name:        sessionID,
			ProjectRoot: projectRoot,
			Status:      reviewmodel.SessionActive,
		},
	}

	s.mu.Lock()
	s.sessions[sessionID] = sess
	s.mu.Unlock()

	s.Save(sess)
	return sess
}

// Get returns a session, loading it from disk into the in-memory cache on
// first access. Returns pipelineerrors.SessionNotFound if neither layer
// has it.
func (s *Store) Get(sessionID string) (*reviewmodel.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(sessionID)
}

func (s *Store) getLocked(sessionID string) (*reviewmodel.Session, error) {
	if sess, ok := s.sessions[sessionID]; ok {
		return sess, nil
	}

	data, err := os.ReadFile(s.path(sessionID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, &pipelineerrors.SessionNotFound{SessionID: sessionID}
	}
	if err != nil {
		return nil, &pipelineerrors.SessionOperationError{Op: "load", Cause: err}
	}

	var sess reviewmodel.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		s.Logger.Error("failed to parse session file", "session_id", sessionID, "error", err)
		return nil, &pipelineerrors.SessionOperationError{Op: "load", Cause: err}
	}
	s.sessions[sessionID] = &sess
	return &sess, nil
}

// Save writes sess to disk, falling back to the OS temp directory (logging
// a warning) if the primary write fails. Matches the original's
// degrade-don't-crash persistence contract.
func (s *Store) Save(sess *reviewmodel.Session) {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		s.Logger.Error("failed to marshal session", "session_id", sess.SessionID, "error", err)
		return
	}

	if err := os.WriteFile(s.path(sess.SessionID), data, 0o644); err == nil {
		return
	}
	s.Logger.Error("failed to save session", "session_id", sess.SessionID)

	fallback := filepath.Join(os.TempDir(), "session_"+sess.SessionID+".json")
	if err := os.WriteFile(fallback, data, 0o644); err != nil {
		s.Logger.Error("failed to save session to fallback location", "session_id", sess.SessionID, "error", err)
		return
	}
	s.Logger.Warn("session saved to fallback location", "session_id", sess.SessionID, "path", fallback)
}

// Delete removes a session from memory and disk. On the first unlink
// failure it retries once after a short delay, then falls back to
// renaming the file aside rather than leaving it silently undeleted.
func (s *Store) Delete(sessionID string) error {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	path := s.path(sessionID)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	firstErr := os.Remove(path)
	if firstErr == nil {
		return nil
	}

	time.Sleep(200 * time.Millisecond)
	if err := os.Remove(path); err == nil {
		return nil
	}

	trash := fmt.Sprintf("%s.deleted_%d", path, time.Now().Unix())
	if err := os.Rename(path, trash); err != nil {
		return &pipelineerrors.SessionOperationError{Op: "delete", Cause: firstErr}
	}
	s.Logger.Warn("renamed session file after delete failure", "session_id", sessionID, "trash_path", trash)
	return nil
}

// Rename updates a session's display name and re-persists it.
func (s *Store) Rename(sessionID, newName string) (*reviewmodel.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getLocked(sessionID)
	if err != nil {
		return nil, err
	}
	sess.Metadata.Name = newName
	sess.Metadata.UpdatedAt = time.Now()
	s.Save(sess)
	return sess, nil
}

// Archive marks a session archived without deleting it.
func (s *Store) Archive(sessionID string) (*reviewmodel.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getLocked(sessionID)
	if err != nil {
		return nil, err
	}
	sess.Metadata.Status = reviewmodel.SessionArchived
	sess.Metadata.UpdatedAt = time.Now()
	s.Save(sess)
	return sess, nil
}

// List returns every on-disk session's summary, sorted by UpdatedAt
// descending.
func (s *Store) List() ([]Summary, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, &pipelineerrors.SessionOperationError{Op: "list", Cause: err}
	}

	var out []Summary
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.Dir, entry.Name()))
		if err != nil {
			s.Logger.Error("failed to read session file", "file", entry.Name(), "error", err)
			continue
		}
		var sess reviewmodel.Session
		if err := json.Unmarshal(data, &sess); err != nil {
			s.Logger.Error("failed to parse session file", "file", entry.Name(), "error", err)
			continue
		}
		out = append(out, Summary{
			SessionID:   sess.SessionID,
			Name:        sess.Metadata.Name,
			CreatedAt:   sess.Metadata.CreatedAt,
			UpdatedAt:   sess.Metadata.UpdatedAt,
			ProjectRoot: sess.Metadata.ProjectRoot,
			Status:      sess.Metadata.Status,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// AddMessage appends a message and bumps UpdatedAt.
func (s *Store) AddMessage(sessionID string, msg reviewmodel.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getLocked(sessionID)
	if err != nil {
		return err
	}
	msg.Timestamp = time.Now()
	sess.Messages = append(sess.Messages, msg)
	sess.Metadata.UpdatedAt = msg.Timestamp
	s.Save(sess)
	return nil
}

// AppendEvent adds a workflow event, coalescing consecutive same-type
// (thought/chunk), same-stage events by concatenating content instead of
// growing the event list unboundedly during a long streaming response.
func (s *Store) AppendEvent(sessionID string, evt reviewmodel.WorkflowEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getLocked(sessionID)
	if err != nil {
		return err
	}

	evt.Timestamp = time.Now()
	if isCoalescable(evt.Type) && evt.Content != "" && len(sess.WorkflowEvents) > 0 {
		last := &sess.WorkflowEvents[len(sess.WorkflowEvents)-1]
		if last.Type == evt.Type && last.Stage == evt.Stage {
			last.Content += evt.Content
			last.Timestamp = evt.Timestamp
			s.Save(sess)
			return nil
		}
	}

	sess.WorkflowEvents = append(sess.WorkflowEvents, evt)
	s.Save(sess)
	return nil
}

func isCoalescable(t reviewmodel.WorkflowEventType) bool {
	return t == reviewmodel.EventThought || t == reviewmodel.EventChunk
}
