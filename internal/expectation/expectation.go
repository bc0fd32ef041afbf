package expectation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMalformed indicates the expectation block could not be parsed.
// All parse failures wrap this sentinel so callers can distinguish
// configuration errors (fatal, pre-run) from check failures.
var ErrMalformed = errors.New("malformed expectation block")

// Category identifies one of the eight expectation groups.
type Category string

const (
	MemoryRetrieval   Category = "memory_retrieval"
	MemoryStorage     Category = "memory_storage"
	KnowledgeHits     Category = "knowledge_hits"
	MatterRecords     Category = "matter_records"
	SkillsExecuted    Category = "skills_executed"
	TraceExpectations Category = "trace_expectations"
	PhaseGates        Category = "phase_gates"
	DocumentQuality   Category = "document_quality"
)

// CanonicalOrder is the fixed evaluation and reporting order for categories.
// Reports always contain all eight categories in this order, regardless of
// which categories declare assertions.
var CanonicalOrder = []Category{
	MemoryRetrieval,
	MemoryStorage,
	KnowledgeHits,
	MatterRecords,
	SkillsExecuted,
	TraceExpectations,
	PhaseGates,
	DocumentQuality,
}

// DisplayName returns the human-readable category name used in reports.
func (c Category) DisplayName() string {
	switch c {
	case MemoryRetrieval:
		return "Memory Retrieval"
	case MemoryStorage:
		return "Memory Storage"
	case KnowledgeHits:
		return "Knowledge Hits"
	case MatterRecords:
		return "Matter Records"
	case SkillsExecuted:
		return "Skills Executed"
	case TraceExpectations:
		return "Trace Expectations"
	case PhaseGates:
		return "Phase Gates"
	case DocumentQuality:
		return "Document Quality"
	default:
		return string(c)
	}
}

// PredicateKind enumerates the closed set of assertion predicates.
// The checkers handle every kind exhaustively; there is no free-form
// expression evaluation at check time.
type PredicateKind int

const (
	// Containment requires the observed value to include every pattern.
	Containment PredicateKind = iota
	// Exclusion requires the observed value to include none of the patterns.
	Exclusion
	// Threshold requires an observed count to satisfy a relational expression.
	Threshold
	// Equality requires an observed field to equal a literal after trimming.
	Equality
	// Existence requires the target to exist, regardless of content.
	Existence
)

// String returns the predicate kind name used in assertion details.
func (k PredicateKind) String() string {
	switch k {
	case Containment:
		return "containment"
	case Exclusion:
		return "exclusion"
	case Threshold:
		return "threshold"
	case Equality:
		return "equality"
	case Existence:
		return "existence"
	default:
		return fmt.Sprintf("predicate(%d)", int(k))
	}
}

// ThresholdOp is a relational operator in a threshold expression.
// Only ">=" and "==" are supported; anything else fails at parse time.
type ThresholdOp string

const (
	OpGE ThresholdOp = ">="
	OpEQ ThresholdOp = "=="
)

// Bound is a parsed threshold expression, e.g. ">= 3".
type Bound struct {
	Op ThresholdOp
	N  int
}

// Satisfied reports whether the observed count meets the bound.
func (b Bound) Satisfied(observed int) bool {
	switch b.Op {
	case OpGE:
		return observed >= b.N
	case OpEQ:
		return observed == b.N
	default:
		return false
	}
}

func (b Bound) String() string {
	return fmt.Sprintf("%s %d", b.Op, b.N)
}

// Condition is a matter-record filter value: a scalar matched by equality,
// or a list of accepted values matched as membership (col = ANY(values)).
type Condition struct {
	Values []string
	List   bool
}

// Pattern is a single containment/exclusion pattern. Patterns containing a
// backslash are compiled as regular expressions at parse time (scenario
// authors escape regex metacharacters, e.g. the template-placeholder pattern
// `\{\{.*?\}\}`); all other patterns match as literal substrings.
type Pattern struct {
	Raw string
	re  *regexp.Regexp
}

// NewPattern builds a pattern, compiling it as a regular expression when the
// raw string contains a backslash. Compile errors surface at parse time.
func NewPattern(raw string) (Pattern, error) {
	p := Pattern{Raw: raw}
	if strings.ContainsRune(raw, '\\') {
		re, err := regexp.Compile(raw)
		if err != nil {
			return Pattern{}, fmt.Errorf("invalid pattern %q: %w", raw, err)
		}
		p.re = re
	}
	return p, nil
}

// IsRegexp reports whether the pattern matches as a regular expression.
func (p Pattern) IsRegexp() bool { return p.re != nil }

// Match reports whether the pattern occurs in the value.
func (p Pattern) Match(value string) bool {
	if p.re != nil {
		return p.re.MatchString(value)
	}
	return strings.Contains(value, p.Raw)
}

// Assertion is a single checkable claim: a target locator plus a predicate.
// Which locator fields are set depends on the category; the predicate payload
// depends on Kind. Assertions are immutable after parsing.
type Assertion struct {
	Kind PredicateKind

	// Target locator fields. Exactly the fields relevant to the category
	// are populated; the rest stay zero.
	EntityKey       string               // memory facts
	Scope           string               // memory storage scope constraint
	Table           string               // matter records
	Conditions      map[string]Condition // matter record filter columns
	SkillID         string               // skills executed
	SpanName        string               // trace expectations
	Phase           string               // phase gates
	RequiredOutputs []string             // phase gate output keys
	Query           string               // knowledge search query
	FormatCheck     string               // document format check name

	// Predicate payload.
	Patterns []Pattern // Containment / Exclusion
	Bound    *Bound    // Threshold
	Equals   string    // Equality
}

// Target returns a short locator label for report details.
func (a Assertion) Target() string {
	switch {
	case a.EntityKey != "":
		return a.EntityKey
	case a.Table != "":
		return a.Table
	case a.SkillID != "":
		return a.SkillID
	case a.SpanName != "":
		return a.SpanName
	case a.Phase != "":
		return a.Phase
	case a.Query != "":
		return a.Query
	case a.FormatCheck != "":
		return a.FormatCheck
	case len(a.Patterns) == 1:
		return a.Patterns[0].Raw
	default:
		return a.Kind.String()
	}
}

// Group holds the ordered assertions for one category.
// Groups are parsed once per run and read-only thereafter.
type Group struct {
	Category   Category
	Assertions []Assertion

	// FormatNotApplicable marks a document_quality group whose format/style
	// checks were declared not applicable for this scenario.
	FormatNotApplicable bool
}
