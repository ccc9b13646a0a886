package unitbuilder

import (
	"context"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/wharflab/deltareview/internal/reviewmodel"
)

// definitionNodeTypes maps a language to the tree-sitter node type names
// that count as an enclosing "symbol" worth reporting. Anything else is
// left unresolved rather than guessed at.
var definitionNodeTypes = map[string]map[string]reviewmodel.SymbolKind{
	"go": {
		"function_declaration": reviewmodel.SymbolFunction,
		"method_declaration":   reviewmodel.SymbolMethod,
	},
	"python": {
		"function_definition": reviewmodel.SymbolFunction,
		"class_definition":    reviewmodel.SymbolClass,
	},
	"javascript": {
		"function_declaration": reviewmodel.SymbolFunction,
		"method_definition":    reviewmodel.SymbolMethod,
		"class_declaration":    reviewmodel.SymbolClass,
	},
	"typescript": {
		"function_declaration": reviewmodel.SymbolFunction,
		"method_definition":    reviewmodel.SymbolMethod,
		"class_declaration":    reviewmodel.SymbolClass,
	},
}

// TreeSitterResolver finds the smallest enclosing function/method/class
// around a hunk's change region. It is deliberately shallow: one
// enclosing-node lookup per unit, no symbol table, no cross-file
// resolution.
type TreeSitterResolver struct {
	languages map[string]*sitter.Language
}

// NewTreeSitterResolver builds a resolver for the given language->grammar
// map (callers wire in the concrete go-tree-sitter grammars they vendor).
func NewTreeSitterResolver(languages map[string]*sitter.Language) *TreeSitterResolver {
	return &TreeSitterResolver{languages: languages}
}

// Resolve implements SymbolResolver.
func (r *TreeSitterResolver) Resolve(language string, content []byte, startLine, endLine int) *reviewmodel.Symbol {
	kinds, ok := definitionNodeTypes[language]
	if !ok {
		return nil
	}
	lang, ok := r.languages[language]
	if !ok || lang == nil {
		return nil
	}

	parser := sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(lang); err != nil {
		return nil
	}

	tree := parser.ParseCtx(context.Background(), content, nil)
	if tree == nil {
		return nil
	}
	defer tree.Close()

	// tree-sitter points are 0-based; our hunk ranges are 1-based.
	target := uint(startLine - 1)
	if target < 0 {
		target = 0
	}

	var best *sitter.Node
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		start := n.StartPosition().Row
		end := n.EndPosition().Row
		if start <= target && target <= end {
			if _, isDef := kinds[n.Kind()]; isDef {
				best = n
			}
			count := n.ChildCount()
			for i := uint(0); i < count; i++ {
				walk(n.Child(i))
			}
		}
	}
	walk(tree.RootNode())

	if best == nil {
		return nil
	}
	name := symbolName(best, content)
	return &reviewmodel.Symbol{
		Name:      name,
		Kind:      kinds[best.Kind()],
		StartLine: int(best.StartPosition().Row) + 1,
		EndLine:   int(best.EndPosition().Row) + 1,
	}
}

func symbolName(n *sitter.Node, content []byte) string {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return ""
	}
	return string(content[nameNode.StartByte():nameNode.EndByte()])
}
