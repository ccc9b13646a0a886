package reviewmodel

import "time"

// SessionStatus is the lifecycle state of a review session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionArchived  SessionStatus = "archived"
)

// Role identifies the speaker of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is an assistant-issued invocation of an external tool.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

// Message is one turn of the session's conversation. Role-specific optional
// fields are nil/empty when not applicable to the role.
type Message struct {
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	Timestamp time.Time  `json:"timestamp"`

	// Assistant-only.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Reasoning string     `json:"reasoning,omitempty"`

	// Tool-only.
	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolName   string `json:"name,omitempty"`
	ToolError  string `json:"error,omitempty"`
}

// WorkflowEventType enumerates the kinds of progress events a session
// records. Thought and Chunk events of the same stage adjacent in the log
// are coalesced; others are appended independently.
type WorkflowEventType string

const (
	EventThought            WorkflowEventType = "thought"
	EventChunk              WorkflowEventType = "chunk"
	EventStaticScanStart    WorkflowEventType = "static_scan_start"
	EventStaticScanFileStart WorkflowEventType = "static_scan_file_start"
	EventStaticScanFileDone WorkflowEventType = "static_scan_file_done"
	EventStaticScanComplete WorkflowEventType = "static_scan_complete"
	EventConflictDetected   WorkflowEventType = "conflict_detected"
	EventRulePromoted       WorkflowEventType = "rule_promoted"
)

// WorkflowEvent is one entry in a session's progress log.
type WorkflowEvent struct {
	Type      WorkflowEventType `json:"type"`
	Stage     string            `json:"stage,omitempty"`
	Content   string            `json:"content,omitempty"`
	Data      map[string]any    `json:"data,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// SessionMetadata describes a session independent of its content.
type SessionMetadata struct {
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	Name        string        `json:"name,omitempty"`
	ProjectRoot string        `json:"project_root,omitempty"`
	Status      SessionStatus `json:"status"`
	Tags        []string      `json:"tags,omitempty"`
}

// UnitIssueLink associates a unit with the scanner issues mapped to its
// hunk range within the same file.
type UnitIssueLink struct {
	UnitID  string   `json:"unit_id"`
	IssueID []int    `json:"issue_indexes"`
}

// StaticScanLinked is the persisted cross-reference between diff units and
// the scanner issues mapped onto them.
type StaticScanLinked struct {
	DiffUnits     []string        `json:"diff_units"`
	UnitIssues    []UnitIssueLink `json:"unit_issues"`
	MappedCount   int             `json:"mapped_count"`
	UnmappedCount int             `json:"unmapped_count"`
}

// Session is the complete persisted record of one review run.
type Session struct {
	SessionID        string            `json:"session_id"`
	Metadata         SessionMetadata   `json:"metadata"`
	Messages         []Message         `json:"messages"`
	WorkflowEvents   []WorkflowEvent   `json:"workflow_events"`
	DiffFiles        []string          `json:"diff_files"`
	DiffUnits        []ReviewUnit      `json:"diff_units"`
	StaticScanLinked *StaticScanLinked `json:"static_scan_linked,omitempty"`
}
