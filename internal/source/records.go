package source

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lawseekdog/e2e-tests/internal/expectation"
)

// validIdentifier matches valid SQL identifiers (table/column names).
// Condition columns are interpolated into the query text, so they must be
// whitelisted to prevent SQL injection via identifier interpolation.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// matterTables maps the table names scenarios may reference to the matter
// column each one is keyed by. A declared table outside this map is schema
// drift and yields TableUnknown.
var matterTables = map[string]string{
	"matters":                    "id",
	"matter_tasks":               "matter_id",
	"matter_evidence_list_items": "matter_id",
	"matter_deliverables":        "matter_id",
	"matter_parties":             "matter_id",
}

// RecordStore is a read-only adapter over the matter-service database.
type RecordStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRecordStore connects a pool to the matter-service database.
func NewRecordStore(ctx context.Context, dsn string, logger *slog.Logger) (*RecordStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect matter database: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordStore{pool: pool, logger: logger}, nil
}

// Close releases the connection pool.
func (s *RecordStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// CountRecords counts rows in a declared table scoped to one matter, with
// optional filter conditions. The outcome is three-way: found, empty, or
// unknown table; transport/query failures are *Unavailable.
func (s *RecordStore) CountRecords(ctx context.Context, table, matterID string, conds map[string]expectation.Condition) (RecordOutcome, error) {
	query, args, ok, err := buildCountQuery(table, matterID, conds)
	if err != nil {
		return RecordOutcome{}, err
	}
	if !ok {
		return RecordOutcome{Kind: TableUnknown}, nil
	}

	var n int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return RecordOutcome{}, &Unavailable{Op: "count records in " + table, Err: err}
	}
	return FoundRecords(n), nil
}

// buildCountQuery assembles a parameterized count statement for a declared
// table. Returns ok=false for tables outside the schema whitelist.
// Condition keys are sorted so query text is deterministic. Scalar
// conditions compare by equality; list conditions by membership (= ANY).
func buildCountQuery(table, matterID string, conds map[string]expectation.Condition) (string, []any, bool, error) {
	keyColumn, ok := matterTables[table]
	if !ok {
		return "", nil, false, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT COUNT(1) FROM %s WHERE %s = $1", table, keyColumn)
	args := []any{matterID}

	keys := make([]string, 0, len(conds))
	for k := range conds {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if !validIdentifier.MatchString(k) {
			return "", nil, false, fmt.Errorf("invalid condition column %q: must match %s", k, validIdentifier.String())
		}
		c := conds[k]
		if len(c.Values) == 0 {
			return "", nil, false, fmt.Errorf("condition column %q has no value", k)
		}
		if c.List {
			args = append(args, c.Values)
			fmt.Fprintf(&b, " AND %s = ANY($%d)", k, len(args))
			continue
		}
		args = append(args, c.Values[0])
		fmt.Fprintf(&b, " AND %s = $%d", k, len(args))
	}

	return b.String(), args, true, nil
}
