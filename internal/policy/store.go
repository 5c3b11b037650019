package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
)

// Querier is the subset of a pgx pool the loader needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// DefaultTable is the policy table consulted when config leaves it unset.
const DefaultTable = "fetch_policies"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Load reads the full policy table. The set is loaded once at process start
// and treated as read-only afterwards; a reload requires re-initialization.
func Load(ctx context.Context, db Querier, table string) ([]Policy, error) {
	if table == "" {
		table = DefaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	query := fmt.Sprintf(
		`SELECT id, kind, pattern, profile, params, priority, parent_id FROM %s ORDER BY id`, table)
	rows, err := db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query policies: %w", err)
	}
	defer rows.Close()

	var policies []Policy
	for rows.Next() {
		var (
			p         Policy
			patternSr string
			paramsRaw []byte
		)
		if err := rows.Scan(&p.ID, &p.Kind, &patternSr, &p.Profile, &paramsRaw, &p.Priority, &p.ParentID); err != nil {
			return nil, fmt.Errorf("scan policy row: %w", err)
		}
		p.Pattern, err = regexp.Compile(patternSr)
		if err != nil {
			return nil, fmt.Errorf("compile policy %d pattern %q: %w", p.ID, patternSr, err)
		}
		if len(paramsRaw) > 0 {
			if err := json.Unmarshal(paramsRaw, &p.Params); err != nil {
				return nil, fmt.Errorf("decode policy %d params: %w", p.ID, err)
			}
		}
		policies = append(policies, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate policies: %w", err)
	}
	return policies, nil
}
