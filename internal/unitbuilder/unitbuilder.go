// Package unitbuilder turns unified diff text into review units: hunks
// enriched with before/after/context snippets and, where possible, the
// enclosing symbol.
package unitbuilder

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"

	"github.com/wharflab/deltareview/internal/pipelineerrors"
	"github.com/wharflab/deltareview/internal/reviewmodel"
	"github.com/wharflab/deltareview/internal/sourcemap"
)

// DefaultContextRadius is how many new-file lines of context surround each
// hunk's change region on either side, absent configuration.
const DefaultContextRadius = 20

// Builder constructs review units from diff text. Root is used to read
// current file content for context extraction; it may be empty if context
// extraction should be skipped (e.g. unit tests operating on diff text
// alone).
type Builder struct {
	Root           string
	ContextRadius  int
	SymbolResolver SymbolResolver
}

// SymbolResolver finds the smallest enclosing symbol around a line range in
// a file's content. Implementations live in internal/unitbuilder/symbol.go
// (tree-sitter backed); nil means no symbol population.
type SymbolResolver interface {
	Resolve(language string, content []byte, startLine, endLine int) *reviewmodel.Symbol
}

// New creates a Builder rooted at root.
func New(root string) *Builder {
	return &Builder{Root: root, ContextRadius: DefaultContextRadius}
}

// Build parses diffText and returns one ReviewUnit per non-deletion hunk.
// Parse failures for individual files are reported as warnings (via the
// returned slice of pipelineerrors.ParseError) and do not abort the build.
func (b *Builder) Build(diffText string) ([]reviewmodel.ReviewUnit, []*pipelineerrors.ParseError) {
	files, _, err := gitdiff.Parse(strings.NewReader(diffText))
	if err != nil {
		return nil, []*pipelineerrors.ParseError{{File: "<diff>", Detail: err.Error()}}
	}

	var units []reviewmodel.ReviewUnit
	var warnings []*pipelineerrors.ParseError

	for _, f := range files {
		if f.IsBinary {
			continue
		}
		if f.IsDelete {
			continue
		}

		path := f.NewName
		if path == "" {
			path = f.OldName
		}
		changeType := reviewmodel.ChangeModify
		if f.IsNew {
			changeType = reviewmodel.ChangeAdd
		}

		language := guessLanguage(path)
		content, haveContent := b.readFile(path)

		for _, frag := range f.TextFragments {
			unit, perr := b.buildUnit(path, language, changeType, frag, content, haveContent)
			if perr != nil {
				warnings = append(warnings, perr)
				continue
			}
			units = append(units, unit)
		}
	}

	return units, warnings
}

func (b *Builder) buildUnit(
	path, language string,
	changeType reviewmodel.ChangeType,
	frag *gitdiff.TextFragment,
	content []byte,
	haveContent bool,
) (reviewmodel.ReviewUnit, *pipelineerrors.ParseError) {
	hr := reviewmodel.HunkRange{
		OldStart: int(frag.OldPosition),
		OldLines: int(frag.OldLines),
		NewStart: int(frag.NewPosition),
		NewLines: int(frag.NewLines),
	}

	var before, after strings.Builder
	added, removed := 0, 0
	for _, line := range frag.Lines {
		switch line.Op {
		case gitdiff.OpContext:
			before.WriteString(line.Line)
			after.WriteString(line.Line)
		case gitdiff.OpDelete:
			before.WriteString(line.Line)
			removed++
		case gitdiff.OpAdd:
			after.WriteString(line.Line)
			added++
		}
	}

	contextStart, contextEnd := hr.NewStart, hr.End()
	radius := b.ContextRadius
	if radius <= 0 {
		radius = DefaultContextRadius
	}
	contextStart -= radius
	contextEnd += radius
	if contextStart < 1 {
		contextStart = 1
	}

	var contextSnippet string
	var sym *reviewmodel.Symbol
	if haveContent {
		sm := sourcemap.New(content)
		if contextEnd > sm.LineCount() {
			contextEnd = sm.LineCount()
		}
		if contextEnd >= contextStart {
			contextSnippet = sm.Snippet(contextStart-1, contextEnd-1)
		}
		if b.SymbolResolver != nil {
			sym = b.SymbolResolver.Resolve(language, content, hr.NewStart, hr.End())
		}
	} else {
		contextEnd = contextStart - 1
	}

	return reviewmodel.ReviewUnit{
		UnitID:     newUnitID(),
		FilePath:   path,
		Language:   language,
		ChangeType: changeType,
		HunkRange:  hr,
		CodeSnippets: reviewmodel.Snippets{
			Before:  strings.TrimRight(before.String(), "\n"),
			After:   strings.TrimRight(after.String(), "\n"),
			Context: contextSnippet,
		},
		ContextStart: contextStart,
		ContextEnd:   contextEnd,
		Metrics: reviewmodel.Metrics{
			AddedLines:   added,
			RemovedLines: removed,
		},
		Symbol: sym,
	}, nil
}

func (b *Builder) readFile(path string) ([]byte, bool) {
	if b.Root == "" {
		return nil, false
	}
	data, err := os.ReadFile(filepath.Join(b.Root, path))
	if err != nil {
		return nil, false
	}
	return data, true
}

var languageByExt = map[string]string{
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".jsx":  "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
	".java": "java",
	".rb":   "ruby",
	".rs":   "rust",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".cc":   "cpp",
	".yaml": "yaml",
	".yml":  "yaml",
	".toml": "toml",
	".json": "json",
	".md":   "text",
	".txt":  "text",
}

func guessLanguage(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := languageByExt[ext]; ok {
		return lang
	}
	return "unknown"
}

func newUnitID() string {
	var buf [16]byte
	_, _ = rand.Read(buf[:])
	buf[6] = (buf[6] & 0x0f) | 0x40
	buf[8] = (buf[8] & 0x3f) | 0x80
	return fmt.Sprintf("%x-%x-%x-%x-%x", buf[0:4], buf[4:6], buf[6:8], buf[8:10], buf[10:16])
}
