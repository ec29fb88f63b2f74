// redaction.go — Regex redaction of secrets in captured network traffic.
// Uses RE2 regex (Go's regexp package) for guaranteed linear-time matching.
// Thread-safe: an Engine is built once at startup and shared by every tracked call.
package redaction

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// Mask replaces header values and JSON fields that are redacted by name.
const Mask = "[REDACTED]"

// Pattern is a single redaction rule.
type Pattern struct {
	Name        string `yaml:"name" json:"name"`
	Pattern     string `yaml:"pattern" json:"pattern"`
	Replacement string `yaml:"replacement,omitempty" json:"replacement,omitempty"`
}

type compiledPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
	validate    func(match string) bool // optional post-match check, e.g. Luhn
}

// Engine applies built-in and configured rules to captured records.
// It is safe for concurrent use after construction.
type Engine struct {
	patterns    []compiledPattern
	headerNames map[string]struct{}
	jsonKeys    map[string]struct{}
}

var builtinPatterns = []struct {
	name     string
	pattern  string
	validate func(string) bool
}{
	{name: "aws-key", pattern: `AKIA[0-9A-Z]{16}`},
	{name: "bearer-token", pattern: `Bearer [A-Za-z0-9\-._~+/]+=*`},
	{name: "basic-auth", pattern: `Basic [A-Za-z0-9+/]+=*`},
	{name: "jwt", pattern: `eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]+`},
	{name: "github-pat", pattern: `(ghp_[A-Za-z0-9]{36,}|github_pat_[A-Za-z0-9_]{36,})`},
	{name: "private-key", pattern: `-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z ]*PRIVATE KEY-----`},
	{
		name:     "credit-card",
		pattern:  `\b([0-9]{4}[- ]?[0-9]{4}[- ]?[0-9]{4}[- ]?[0-9]{4})\b`,
		validate: luhnValid,
	},
	{name: "ssn", pattern: `\b[0-9]{3}-[0-9]{2}-[0-9]{4}\b`},
	{name: "api-key", pattern: `(?i)(api[_-]?key|apikey|secret[_-]?key)\s*[:=]\s*\S+`},
	{name: "session-cookie", pattern: `(?i)(session|sid|token)\s*=\s*[A-Za-z0-9+/=_-]{16,}`},
}

// NewEngine compiles the built-in rules followed by cfg's. An invalid custom
// regex fails the whole engine so a typo never silently disables a rule.
func NewEngine(cfg Config) (*Engine, error) {
	e := &Engine{
		headerNames: lowerSet(cfg.HeaderNames),
		jsonKeys:    lowerSet(cfg.JSONKeys),
	}
	if !cfg.DisableBuiltins {
		for _, bp := range builtinPatterns {
			e.patterns = append(e.patterns, compiledPattern{
				name:        bp.name,
				regex:       regexp.MustCompile(bp.pattern),
				replacement: "[REDACTED:" + bp.name + "]",
				validate:    bp.validate,
			})
		}
	}
	for _, p := range cfg.Patterns {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "compile pattern %q", p.Name)
		}
		replacement := p.Replacement
		if replacement == "" {
			replacement = "[REDACTED:" + p.Name + "]"
		}
		e.patterns = append(e.patterns, compiledPattern{name: p.Name, regex: re, replacement: replacement})
	}
	return e, nil
}

// Redact applies all patterns to the input string and returns the redacted result.
func (e *Engine) Redact(input string) string {
	if input == "" {
		return ""
	}
	result := input
	for _, p := range e.patterns {
		if p.validate == nil {
			result = p.regex.ReplaceAllString(result, p.replacement)
			continue
		}
		validate, replacement := p.validate, p.replacement
		result = p.regex.ReplaceAllStringFunc(result, func(match string) string {
			if validate(match) {
				return replacement
			}
			return match
		})
	}
	return result
}

// PatternNames lists the active rules in application order.
func (e *Engine) PatternNames() []string {
	names := make([]string, len(e.patterns))
	for i, p := range e.patterns {
		names[i] = p.name
	}
	return names
}

func lowerSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[strings.ToLower(n)] = struct{}{}
	}
	return set
}

// luhnValid checks if a numeric string passes the Luhn algorithm.
func luhnValid(number string) bool {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)

	if len(digits) < 13 || len(digits) > 19 {
		return false
	}

	sum := 0
	alt := false
	for i := len(digits) - 1; i >= 0; i-- {
		n := int(digits[i] - '0')
		if alt {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
		alt = !alt
	}
	return sum%10 == 0
}
