package rules

import (
	"path/filepath"
	"strings"

	"github.com/wharflab/deltareview/internal/contextlevel"
	"github.com/wharflab/deltareview/internal/reviewmodel"
)

// securityPathKeywords flags files whose path alone suggests security
// sensitivity, independent of language.
var securityPathKeywords = []string{
	"auth", "login", "session", "token", "secret", "crypto", "password",
	"credential", "permission", "acl", "security",
}

// configPathKeywords flags configuration surfaces.
var configPathKeywords = []string{
	"config", "settings", ".env", "docker-compose", "dockerfile",
}

var configExtensions = map[string]bool{
	".yaml": true, ".yml": true, ".toml": true, ".json": true, ".ini": true,
}

// configFileRule tags units touching configuration files.
type configFileRule struct{}

func (configFileRule) Metadata() RuleMetadata {
	return RuleMetadata{
		Code:             "config-file",
		Name:             "Configuration file change",
		Description:      "Flags changes to configuration surfaces (env, yaml/toml/json, compose, Dockerfile).",
		Category:         "config",
		EnabledByDefault: true,
	}
}

func (configFileRule) Check(unit *reviewmodel.ReviewUnit) *Contribution {
	path := strings.ToLower(unit.FilePath)
	ext := filepath.Ext(path)
	isConfig := configExtensions[ext]
	for _, kw := range configPathKeywords {
		if strings.Contains(path, kw) {
			isConfig = true
			break
		}
	}
	if !isConfig {
		return nil
	}
	return &Contribution{
		Tags:         []string{"config_file"},
		ContextLevel: contextlevel.FileContext,
		Confidence:   ConfidenceMedium,
		Notes:        "path:config_file",
	}
}

// securityPathRule tags units whose file path suggests security sensitivity.
type securityPathRule struct{}

func (securityPathRule) Metadata() RuleMetadata {
	return RuleMetadata{
		Code:             "security-path",
		Name:             "Security-sensitive path",
		Description:      "Flags changes under paths whose name suggests auth/crypto/session handling.",
		Category:         "security",
		EnabledByDefault: true,
	}
}

func (securityPathRule) Check(unit *reviewmodel.ReviewUnit) *Contribution {
	path := strings.ToLower(unit.FilePath)
	for _, kw := range securityPathKeywords {
		if strings.Contains(path, kw) {
			return &Contribution{
				Tags:         []string{"security_sensitive"},
				ContextLevel: contextlevel.FullFile,
				Confidence:   ConfidenceHigh,
				Notes:        "path:security_sensitive",
			}
		}
	}
	return nil
}

// pythonRouteRule tags Flask/Django route and view handlers.
type pythonRouteRule struct{}

func (pythonRouteRule) Metadata() RuleMetadata {
	return RuleMetadata{
		Code:             "py-route-handler",
		Name:             "Python route/view handler",
		Description:      "Flags decorator-based route or view definitions in Python changes.",
		Category:         "routing",
		Languages:        []string{"python"},
		EnabledByDefault: true,
	}
}

func (pythonRouteRule) Check(unit *reviewmodel.ReviewUnit) *Contribution {
	snippet := unit.CodeSnippets.After
	if strings.Contains(snippet, "@app.route") || strings.Contains(snippet, "@router.") ||
		strings.Contains(snippet, "class ") && strings.Contains(snippet, "View") {
		return &Contribution{
			Tags:         []string{"routing_file"},
			ContextLevel: contextlevel.Function,
			Confidence:   ConfidenceMedium,
			Notes:        "py:decorator:route",
		}
	}
	return nil
}

// goHandlerRule tags net/http-style handler signatures in Go changes.
type goHandlerRule struct{}

func (goHandlerRule) Metadata() RuleMetadata {
	return RuleMetadata{
		Code:             "go-handler-signature",
		Name:             "Go HTTP handler",
		Description:      "Flags functions matching the http.HandlerFunc signature.",
		Category:         "routing",
		Languages:        []string{"go"},
		EnabledByDefault: true,
	}
}

func (goHandlerRule) Check(unit *reviewmodel.ReviewUnit) *Contribution {
	snippet := unit.CodeSnippets.After
	if strings.Contains(snippet, "http.ResponseWriter") && strings.Contains(snippet, "*http.Request") {
		return &Contribution{
			Tags:         []string{"routing_file"},
			ContextLevel: contextlevel.Function,
			Confidence:   ConfidenceMedium,
			Notes:        "go:handler_signature",
		}
	}
	return nil
}

// jsRouteRule tags Express/Next-style route files in JS/TS changes.
type jsRouteRule struct{}

func (jsRouteRule) Metadata() RuleMetadata {
	return RuleMetadata{
		Code:             "js-route-file",
		Name:             "JS/TS route file",
		Description:      "Flags router method calls (app.get/post/... or router.*) in JS/TS changes.",
		Category:         "routing",
		Languages:        []string{"javascript", "typescript"},
		EnabledByDefault: true,
	}
}

var jsRouteMethods = []string{".get(", ".post(", ".put(", ".delete(", ".patch("}

func (jsRouteRule) Check(unit *reviewmodel.ReviewUnit) *Contribution {
	snippet := unit.CodeSnippets.After
	if strings.Contains(snippet, "router.") || strings.Contains(snippet, "app.") {
		for _, m := range jsRouteMethods {
			if strings.Contains(snippet, m) {
				return &Contribution{
					Tags:         []string{"routing_file"},
					ContextLevel: contextlevel.Function,
					Confidence:   ConfidenceMedium,
					Notes:        "js:route_method",
				}
			}
		}
	}
	return nil
}

// singleFunctionRule tags units whose hunk falls entirely within one
// resolved symbol, lowering the context bar for otherwise unremarkable
// changes.
type singleFunctionRule struct{}

func (singleFunctionRule) Metadata() RuleMetadata {
	return RuleMetadata{
		Code:             "in-single-function",
		Name:             "Change confined to one function",
		Description:      "Flags units whose symbol resolution found a single enclosing function/method.",
		Category:         "scope",
		EnabledByDefault: true,
	}
}

func (singleFunctionRule) Check(unit *reviewmodel.ReviewUnit) *Contribution {
	if unit.Symbol == nil || unit.Symbol.Kind == reviewmodel.SymbolClass {
		return nil
	}
	return &Contribution{
		Tags:         []string{"in_single_function"},
		ContextLevel: contextlevel.Function,
		Confidence:   ConfidenceLow,
		Notes:        "scope:single_function",
	}
}

// RegisterDefaults registers the built-in handlers into registry.
func RegisterDefaults(registry *Registry) {
	for _, r := range []Rule{
		configFileRule{},
		securityPathRule{},
		pythonRouteRule{},
		goHandlerRule{},
		jsRouteRule{},
		singleFunctionRule{},
	} {
		registry.Register(r)
	}
}
