package expectation

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// yamlBlock matches the first fenced yaml block in a scenario README.
// Scenario authors embed the quality-check expectations as the first
// ```yaml block of the document.
var yamlBlock = regexp.MustCompile("(?s)```yaml\n(.*?)\n```")

// ExtractBlock pulls the expectation YAML out of a scenario README document.
func ExtractBlock(markdown []byte) ([]byte, error) {
	m := yamlBlock.FindSubmatch(markdown)
	if m == nil {
		return nil, fmt.Errorf("%w: no yaml expectation block found", ErrMalformed)
	}
	return m[1], nil
}

// Raw YAML shapes. Decoding is strict (KnownFields) so typos in category or
// field names fail at parse time rather than silently skipping checks.

type rawExpectations struct {
	Memory     *rawMemory     `yaml:"memory"`
	Knowledge  *rawKnowledge  `yaml:"knowledge"`
	Matter     *rawMatter     `yaml:"matter"`
	Skills     *rawSkills     `yaml:"skills"`
	Trace      *rawTrace      `yaml:"trace"`
	PhaseGates *rawPhaseGates `yaml:"phase_gates"`
	Document   *rawDocument   `yaml:"document"`
}

type rawMemory struct {
	Retrieval []rawRetrieval `yaml:"retrieval"`
	Storage   []rawStorage   `yaml:"storage"`
}

type rawRetrieval struct {
	EntityKey   string   `yaml:"entity_key"`
	MustInclude []string `yaml:"must_include"`
}

type rawStorage struct {
	EntityKey             string   `yaml:"entity_key"`
	Scope                 string   `yaml:"scope"`
	ExpectedValueContains string   `yaml:"expected_value_contains"`
	MustInclude           []string `yaml:"must_include"`
}

type rawKnowledge struct {
	Hits []rawHit `yaml:"hits"`
}

type rawHit struct {
	Query       string   `yaml:"query"`
	Count       any      `yaml:"count"`
	MustInclude []string `yaml:"must_include"`
}

type rawMatter struct {
	Records []rawRecord `yaml:"records"`
}

type rawRecord struct {
	Table      string               `yaml:"table"`
	Count      any                  `yaml:"count"`
	Conditions map[string]yaml.Node `yaml:"conditions"`
}

type rawSkills struct {
	Executed []rawSkill `yaml:"executed"`
}

type rawSkill struct {
	SkillID string `yaml:"skill_id"`
	Status  string `yaml:"status"`
}

type rawTrace struct {
	Expectations []rawSpan `yaml:"expectations"`
}

type rawSpan struct {
	SpanName string `yaml:"span_name"`
	Count    any    `yaml:"count"`
}

type rawPhaseGates struct {
	Checkpoints []rawCheckpoint `yaml:"checkpoints"`
}

type rawCheckpoint struct {
	Phase           string   `yaml:"phase"`
	Status          string   `yaml:"status"`
	RequiredOutputs []string `yaml:"required_outputs"`
}

type rawDocument struct {
	Quality *rawDocQuality `yaml:"quality"`
}

type rawDocQuality struct {
	Format  *rawDocFormat  `yaml:"format"`
	Content *rawDocContent `yaml:"content"`
}

type rawDocFormat struct {
	NotApplicable         bool `yaml:"not_applicable"`
	CenteredTitle         bool `yaml:"centered_title"`
	RightAlignedSignature bool `yaml:"right_aligned_signature"`
}

type rawDocContent struct {
	MustInclude    []string `yaml:"must_include"`
	MustNotInclude []string `yaml:"must_not_include"`
}

// Parse decodes an expectation block into the eight category groups, in
// canonical order. Categories absent from the block yield empty groups so the
// report always covers all eight. A category with any invalid declaration
// fails the whole parse; nothing is partially accepted.
func Parse(block []byte) ([]Group, error) {
	dec := yaml.NewDecoder(bytes.NewReader(block))
	dec.KnownFields(true)

	var raw rawExpectations
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	groups := make([]Group, 0, len(CanonicalOrder))
	for _, cat := range CanonicalOrder {
		g, err := buildGroup(cat, &raw)
		if err != nil {
			return nil, fmt.Errorf("%w: category %s: %v", ErrMalformed, cat, err)
		}
		groups = append(groups, g)
	}
	return groups, nil
}

func buildGroup(cat Category, raw *rawExpectations) (Group, error) {
	g := Group{Category: cat}
	var err error

	switch cat {
	case MemoryRetrieval:
		if raw.Memory != nil {
			g.Assertions, err = buildRetrieval(raw.Memory.Retrieval)
		}
	case MemoryStorage:
		if raw.Memory != nil {
			g.Assertions, err = buildStorage(raw.Memory.Storage)
		}
	case KnowledgeHits:
		if raw.Knowledge != nil {
			g.Assertions, err = buildHits(raw.Knowledge.Hits)
		}
	case MatterRecords:
		if raw.Matter != nil {
			g.Assertions, err = buildRecords(raw.Matter.Records)
		}
	case SkillsExecuted:
		if raw.Skills != nil {
			g.Assertions, err = buildSkills(raw.Skills.Executed)
		}
	case TraceExpectations:
		if raw.Trace != nil {
			g.Assertions, err = buildSpans(raw.Trace.Expectations)
		}
	case PhaseGates:
		if raw.PhaseGates != nil {
			g.Assertions, err = buildCheckpoints(raw.PhaseGates.Checkpoints)
		}
	case DocumentQuality:
		if raw.Document != nil && raw.Document.Quality != nil {
			g.Assertions, g.FormatNotApplicable, err = buildDocument(raw.Document.Quality)
		}
	}
	if err != nil {
		return Group{}, err
	}
	return g, nil
}

func buildRetrieval(decls []rawRetrieval) ([]Assertion, error) {
	out := make([]Assertion, 0, len(decls))
	for i, d := range decls {
		if strings.TrimSpace(d.EntityKey) == "" {
			return nil, fmt.Errorf("retrieval[%d]: entity_key is required", i)
		}
		patterns, err := buildPatterns(d.MustInclude)
		if err != nil {
			return nil, fmt.Errorf("retrieval[%d]: %w", i, err)
		}
		kind := Containment
		if len(patterns) == 0 {
			kind = Existence
		}
		out = append(out, Assertion{
			Kind:      kind,
			EntityKey: strings.TrimSpace(d.EntityKey),
			Patterns:  patterns,
		})
	}
	return out, nil
}

func buildStorage(decls []rawStorage) ([]Assertion, error) {
	out := make([]Assertion, 0, len(decls))
	for i, d := range decls {
		if strings.TrimSpace(d.EntityKey) == "" {
			return nil, fmt.Errorf("storage[%d]: entity_key is required", i)
		}
		// expected_value_contains is the single-fragment shorthand used by
		// older scenarios; must_include supersedes it.
		include := d.MustInclude
		if d.ExpectedValueContains != "" {
			include = append([]string{d.ExpectedValueContains}, include...)
		}
		patterns, err := buildPatterns(include)
		if err != nil {
			return nil, fmt.Errorf("storage[%d]: %w", i, err)
		}
		kind := Containment
		if len(patterns) == 0 {
			kind = Existence
		}
		out = append(out, Assertion{
			Kind:      kind,
			EntityKey: strings.TrimSpace(d.EntityKey),
			Scope:     strings.TrimSpace(d.Scope),
			Patterns:  patterns,
		})
	}
	return out, nil
}

func buildHits(decls []rawHit) ([]Assertion, error) {
	out := make([]Assertion, 0, len(decls))
	for i, d := range decls {
		if strings.TrimSpace(d.Query) == "" {
			return nil, fmt.Errorf("hits[%d]: query is required", i)
		}
		bound, err := parseBound(d.Count)
		if err != nil {
			return nil, fmt.Errorf("hits[%d]: %w", i, err)
		}
		patterns, err := buildPatterns(d.MustInclude)
		if err != nil {
			return nil, fmt.Errorf("hits[%d]: %w", i, err)
		}
		kind := Threshold
		if bound == nil {
			kind = Existence
		}
		out = append(out, Assertion{
			Kind:     kind,
			Query:    strings.TrimSpace(d.Query),
			Bound:    bound,
			Patterns: patterns,
		})
	}
	return out, nil
}

func buildRecords(decls []rawRecord) ([]Assertion, error) {
	out := make([]Assertion, 0, len(decls))
	for i, d := range decls {
		if strings.TrimSpace(d.Table) == "" {
			return nil, fmt.Errorf("records[%d]: table is required", i)
		}
		bound, err := parseBound(d.Count)
		if err != nil {
			return nil, fmt.Errorf("records[%d]: %w", i, err)
		}
		conds, err := buildConditions(d.Conditions)
		if err != nil {
			return nil, fmt.Errorf("records[%d]: %w", i, err)
		}
		kind := Threshold
		if bound == nil {
			kind = Existence
		}
		out = append(out, Assertion{
			Kind:       kind,
			Table:      strings.TrimSpace(d.Table),
			Conditions: conds,
			Bound:      bound,
		})
	}
	return out, nil
}

// buildConditions accepts a scalar (equality) or a list of scalars
// (membership) per filter column. Anything else fails the parse.
func buildConditions(raw map[string]yaml.Node) (map[string]Condition, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]Condition, len(raw))
	for key, node := range raw {
		switch node.Kind {
		case yaml.ScalarNode:
			var v string
			if err := node.Decode(&v); err != nil {
				return nil, fmt.Errorf("conditions.%s: %w", key, err)
			}
			out[key] = Condition{Values: []string{strings.TrimSpace(v)}}
		case yaml.SequenceNode:
			var vs []string
			if err := node.Decode(&vs); err != nil {
				return nil, fmt.Errorf("conditions.%s: %w", key, err)
			}
			if len(vs) == 0 {
				return nil, fmt.Errorf("conditions.%s: value list must not be empty", key)
			}
			for i := range vs {
				vs[i] = strings.TrimSpace(vs[i])
			}
			out[key] = Condition{Values: vs, List: true}
		default:
			return nil, fmt.Errorf("conditions.%s: value must be a scalar or a list of scalars", key)
		}
	}
	return out, nil
}

func buildSkills(decls []rawSkill) ([]Assertion, error) {
	out := make([]Assertion, 0, len(decls))
	for i, d := range decls {
		if strings.TrimSpace(d.SkillID) == "" {
			return nil, fmt.Errorf("executed[%d]: skill_id is required", i)
		}
		status := strings.TrimSpace(d.Status)
		if status == "" {
			status = "completed"
		}
		out = append(out, Assertion{
			Kind:    Equality,
			SkillID: strings.TrimSpace(d.SkillID),
			Equals:  status,
		})
	}
	return out, nil
}

func buildSpans(decls []rawSpan) ([]Assertion, error) {
	out := make([]Assertion, 0, len(decls))
	for i, d := range decls {
		if strings.TrimSpace(d.SpanName) == "" {
			return nil, fmt.Errorf("expectations[%d]: span_name is required", i)
		}
		bound, err := parseBound(d.Count)
		if err != nil {
			return nil, fmt.Errorf("expectations[%d]: %w", i, err)
		}
		kind := Threshold
		if bound == nil {
			kind = Existence
		}
		out = append(out, Assertion{
			Kind:     kind,
			SpanName: strings.TrimSpace(d.SpanName),
			Bound:    bound,
		})
	}
	return out, nil
}

func buildCheckpoints(decls []rawCheckpoint) ([]Assertion, error) {
	out := make([]Assertion, 0, len(decls))
	for i, d := range decls {
		if strings.TrimSpace(d.Phase) == "" {
			return nil, fmt.Errorf("checkpoints[%d]: phase is required", i)
		}
		if strings.TrimSpace(d.Status) == "" {
			return nil, fmt.Errorf("checkpoints[%d]: status is required", i)
		}
		out = append(out, Assertion{
			Kind:            Equality,
			Phase:           strings.TrimSpace(d.Phase),
			Equals:          strings.TrimSpace(d.Status),
			RequiredOutputs: d.RequiredOutputs,
		})
	}
	return out, nil
}

func buildDocument(q *rawDocQuality) ([]Assertion, bool, error) {
	var out []Assertion
	notApplicable := q.Format != nil && q.Format.NotApplicable

	if q.Content != nil {
		for _, raw := range q.Content.MustInclude {
			p, err := NewPattern(raw)
			if err != nil {
				return nil, false, fmt.Errorf("content.must_include: %w", err)
			}
			out = append(out, Assertion{Kind: Containment, Patterns: []Pattern{p}})
		}
		for _, raw := range q.Content.MustNotInclude {
			p, err := NewPattern(raw)
			if err != nil {
				return nil, false, fmt.Errorf("content.must_not_include: %w", err)
			}
			out = append(out, Assertion{Kind: Exclusion, Patterns: []Pattern{p}})
		}
	}

	if q.Format != nil && !notApplicable {
		if q.Format.CenteredTitle {
			out = append(out, Assertion{Kind: Equality, FormatCheck: "centered_title", Equals: "center"})
		}
		if q.Format.RightAlignedSignature {
			out = append(out, Assertion{Kind: Equality, FormatCheck: "right_aligned_signature", Equals: "right"})
		}
	}

	return out, notApplicable, nil
}

func buildPatterns(raws []string) ([]Pattern, error) {
	out := make([]Pattern, 0, len(raws))
	for _, raw := range raws {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		p, err := NewPattern(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// parseBound parses a declared count into a threshold bound.
// Accepted forms: a bare integer (exact count), ">= N", "== N".
// A nil/absent count returns nil (existence semantics).
// Unsupported operators fail here, not at evaluation time.
func parseBound(v any) (*Bound, error) {
	switch c := v.(type) {
	case nil:
		return nil, nil
	case int:
		return &Bound{Op: OpEQ, N: c}, nil
	case int64:
		return &Bound{Op: OpEQ, N: int(c)}, nil
	case string:
		s := strings.TrimSpace(c)
		switch {
		case strings.HasPrefix(s, string(OpGE)):
			n, err := parseBoundInt(strings.TrimPrefix(s, string(OpGE)))
			if err != nil {
				return nil, err
			}
			return &Bound{Op: OpGE, N: n}, nil
		case strings.HasPrefix(s, string(OpEQ)):
			n, err := parseBoundInt(strings.TrimPrefix(s, string(OpEQ)))
			if err != nil {
				return nil, err
			}
			return &Bound{Op: OpEQ, N: n}, nil
		default:
			return nil, fmt.Errorf("unsupported count expression %q (want \">= N\" or \"== N\")", s)
		}
	default:
		return nil, fmt.Errorf("unsupported count type %T", v)
	}
}

func parseBoundInt(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid count %q: %w", s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("count must be non-negative, got %d", n)
	}
	return n, nil
}
