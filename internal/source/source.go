// Package source provides read-only adapters over the external systems a
// quality-check run verifies: the platform HTTP gateway (memory facts,
// execution traces, phase timeline, deliverables, knowledge search, file
// download) and the matter-service Postgres database.
//
// Adapters never raise for expected absence: a missing fact, record, or file
// is an ordinary return value (ErrNotFound, RecordsEmpty, UnknownTable).
// Transport-layer failures (timeout, malformed response, unauthorized,
// gateway errors) are reported as *Unavailable so checkers can tell "the
// system answered: nothing is there" from "the system could not be reached".
package source

import (
	"errors"
	"fmt"
)

// ErrNotFound marks expected absence: the source answered and the target
// does not exist. It is an ordinary outcome, not a transport failure.
var ErrNotFound = errors.New("not found")

// Unavailable is a transport-layer failure: the source could not be reached
// or did not answer sensibly. Checkers convert it into a failed assertion
// plus a category warning and keep evaluating.
type Unavailable struct {
	Op     string // operation that failed, e.g. "list case facts"
	Status int    // HTTP status if any, 0 otherwise
	Err    error  // underlying error, if any
}

func (u *Unavailable) Error() string {
	switch {
	case u.Status != 0 && u.Err != nil:
		return fmt.Sprintf("%s: source unavailable (status %d): %v", u.Op, u.Status, u.Err)
	case u.Status != 0:
		return fmt.Sprintf("%s: source unavailable (status %d)", u.Op, u.Status)
	case u.Err != nil:
		return fmt.Sprintf("%s: source unavailable: %v", u.Op, u.Err)
	default:
		return fmt.Sprintf("%s: source unavailable", u.Op)
	}
}

func (u *Unavailable) Unwrap() error { return u.Err }

// IsUnavailable reports whether err is a transport-layer failure.
func IsUnavailable(err error) bool {
	var u *Unavailable
	return errors.As(err, &u)
}

// Fact is a memory-service fact surfaced for a user/case scope.
type Fact struct {
	EntityKey string `json:"entity_key"`
	Scope     string `json:"scope"`
	Content   string `json:"content"`
}

// TraceItem is one execution-trace entry, ordered most recent first.
// NodeID carries the span/skill identifier, possibly with a "skill:" prefix.
type TraceItem struct {
	NodeID string `json:"node_id"`
	Status string `json:"status"`
}

// Checkpoint is the recorded state of one workflow phase.
type Checkpoint struct {
	Phase   string   `json:"id"`
	Status  string   `json:"status"`
	Outputs []string `json:"outputs"`
}

// Deliverable is a generated document artifact associated with a matter.
type Deliverable struct {
	OutputKey string `json:"output_key"`
	FileID    string `json:"file_id"`
	Status    string `json:"status"`
}

// KnowledgeResult is one knowledge-search hit.
type KnowledgeResult struct {
	FileID  string `json:"file_id"`
	Content string `json:"content"`
}

// Session is the conversational session under test; it links the session to
// the matter whose backend state the run verifies.
type Session struct {
	MatterID string `json:"matter_id"`
	UserID   string `json:"user_id"`
}

// RecordOutcomeKind distinguishes the three results of a record query.
type RecordOutcomeKind int

const (
	// RecordsFound: the table exists and matching rows were counted.
	RecordsFound RecordOutcomeKind = iota
	// RecordsEmpty: the table exists and no rows matched.
	RecordsEmpty
	// TableUnknown: the table name is not part of the current schema.
	// Visible schema drift, never a silent zero.
	TableUnknown
)

// RecordOutcome is the three-way result of a matter-record count query.
// Every checker handles all three kinds explicitly.
type RecordOutcome struct {
	Kind  RecordOutcomeKind
	Count int // valid for RecordsFound; 0 otherwise
}

// FoundRecords builds the outcome for a known table with n matching rows.
func FoundRecords(n int) RecordOutcome {
	if n <= 0 {
		return RecordOutcome{Kind: RecordsEmpty}
	}
	return RecordOutcome{Kind: RecordsFound, Count: n}
}
