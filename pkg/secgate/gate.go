// Package secgate implements the read-only query gate. Every statement
// produced from a template passes through the gate before any network
// call; the gate is advisory input validation, not a SQL parser, and its
// rule set is evaluated strictly in order with the first failing rule
// deciding the verdict.
package secgate

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	libinjection "github.com/corazawaf/libinjection-go"
	"go.uber.org/zap"

	"github.com/medrelay-io/medrelay-engine/pkg/audit"
)

// Rejection reasons, reported verbatim in the audit record.
const (
	ReasonBlank          = "statement is empty"
	ReasonNotSelect      = "statement does not start with SELECT"
	ReasonDeniedKeyword  = "denylisted keyword present"
	ReasonCustomPattern  = "custom pattern matched"
	ReasonLiteralFilter  = "WHERE clause uses literal comparison without placeholders"
	ReasonParamInjection = "parameter value failed injection check"
)

var (
	// Whole-word denylist, matched anywhere in the statement.
	deniedKeywords = regexp.MustCompile(
		`(?i)\b(DROP|DELETE|UPDATE|INSERT|ALTER|TRUNCATE|CREATE|GRANT|REVOKE|EXECUTE)\b`)

	wherePattern = regexp.MustCompile(`(?i)\bWHERE\b`)

	// Named (:x) or positional (?) placeholders.
	placeholderPattern = regexp.MustCompile(`:[a-zA-Z_]\w*|\?`)

	// Literal equality comparison against a number or quoted string.
	// Deliberately narrow: non-equality literal filters (>, <, LIKE) are
	// a known false-negative of this heuristic and must stay that way.
	literalComparison = regexp.MustCompile(`=\s*(\d+|'[^']*')`)
)

// Gate validates that a generated query is a read-only, parameterized
// statement. The custom pattern set is mutable at runtime.
type Gate struct {
	auditor *audit.SecurityAuditor
	logger  *zap.Logger

	mu     sync.RWMutex
	custom map[string]*regexp.Regexp // pattern name -> compiled regex
}

// NewGate creates a gate that audits every check through the given auditor.
func NewGate(auditor *audit.SecurityAuditor, logger *zap.Logger) *Gate {
	return &Gate{
		auditor: auditor,
		logger:  logger.Named("secgate"),
		custom:  make(map[string]*regexp.Regexp),
	}
}

// IsSafe reports whether the statement may execute. Every call emits an
// audit record, pass or fail.
func (g *Gate) IsSafe(sql string) bool {
	ok, _ := g.Check("", sql)
	return ok
}

// Check evaluates the rule set for a tenant-attributed statement and
// returns the verdict plus the failing rule's reason.
func (g *Gate) Check(tenantID, sql string) (bool, string) {
	start := time.Now()
	reason := g.evaluate(sql)
	allowed := reason == ""
	g.auditor.LogQueryCheck(tenantID, sql, allowed, reason, time.Since(start))
	return allowed, reason
}

// evaluate runs rules 1-5 in order; the first failure decides.
func (g *Gate) evaluate(sql string) string {
	trimmed := strings.TrimSpace(sql)

	// 1. blank
	if trimmed == "" {
		return ReasonBlank
	}

	// 2. must start with SELECT
	if !strings.HasPrefix(strings.ToUpper(trimmed), "SELECT") {
		return ReasonNotSelect
	}

	// 3. denylisted keyword anywhere
	if kw := deniedKeywords.FindString(trimmed); kw != "" {
		return ReasonDeniedKeyword + ": " + strings.ToUpper(kw)
	}

	// 4. user-supplied custom patterns
	g.mu.RLock()
	for name, re := range g.custom {
		if re.MatchString(trimmed) {
			g.mu.RUnlock()
			return ReasonCustomPattern + ": " + name
		}
	}
	g.mu.RUnlock()

	// 5. parameterization heuristic: a WHERE clause with no placeholder
	// anywhere and at least one literal equality comparison is rejected.
	loc := wherePattern.FindStringIndex(trimmed)
	if loc != nil {
		whereClause := trimmed[loc[1]:]
		if !placeholderPattern.MatchString(whereClause) && literalComparison.MatchString(whereClause) {
			return ReasonLiteralFilter
		}
	}

	return ""
}

// AddPattern registers a custom rejection pattern under a name,
// replacing any previous pattern with the same name.
func (g *Gate) AddPattern(name, expr string) error {
	re, err := regexp.Compile(expr)
	if err != nil {
		return fmt.Errorf("compile custom pattern %q: %w", name, err)
	}
	g.mu.Lock()
	g.custom[name] = re
	g.mu.Unlock()
	g.logger.Info("custom pattern registered", zap.String("pattern", name))
	return nil
}

// RemovePattern deletes a custom pattern by name.
func (g *Gate) RemovePattern(name string) {
	g.mu.Lock()
	delete(g.custom, name)
	g.mu.Unlock()
}

// ClearPatterns drops all custom patterns.
func (g *Gate) ClearPatterns() {
	g.mu.Lock()
	g.custom = make(map[string]*regexp.Regexp)
	g.mu.Unlock()
}

// PatternCount returns the number of registered custom patterns.
func (g *Gate) PatternCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.custom)
}

// CheckParameters screens parameter values for SQL injection before
// binding. Only string values are checked; numbers and timestamps cannot
// carry injection payloads. Returns an error naming the first offending
// parameter.
func (g *Gate) CheckParameters(tenantID string, params map[string]any) error {
	for name, value := range params {
		s, isString := value.(string)
		if !isString {
			continue
		}
		if isSQLi, fingerprint := libinjection.IsSQLi(s); isSQLi {
			g.auditor.LogInjectionAttempt(tenantID, name, string(fingerprint))
			return fmt.Errorf("%s: parameter %q", ReasonParamInjection, name)
		}
	}
	return nil
}
