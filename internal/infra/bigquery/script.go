package bigquery

import (
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/wealthflow/internal/remote"
)

// notFoundMarker is raised by write scripts when a referenced row is missing.
const notFoundMarker = "wealthflow: not found"

// script is one atomic write: a multi-statement transaction that applies
// body, bumps the user's revision and the revisions of changed collections,
// and returns the new revision as its last result.
type script struct {
	// guard, when set, is a boolean expression; the body and the revision
	// bump only run when it holds.
	guard   string
	body    []string
	params  []bigquery.QueryParameter
	changed []remote.Collection
}

func (s *script) add(stmt string, params ...bigquery.QueryParameter) {
	s.body = append(s.body, stmt)
	s.params = append(s.params, params...)
}

// requireRow raises notFoundMarker unless the query in exists returns a row.
func (s *script) requireRow(exists string, params ...bigquery.QueryParameter) {
	s.add(fmt.Sprintf("IF NOT EXISTS (%s) THEN\n  RAISE USING MESSAGE = '%s';\nEND IF", exists, notFoundMarker), params...)
}

// sql renders the script. table qualifies a table name.
func (s *script) sql(table func(string) string) string {
	var b strings.Builder
	b.WriteString("BEGIN TRANSACTION;\n")
	if s.guard != "" {
		fmt.Fprintf(&b, "IF %s THEN\n", s.guard)
	}
	for _, stmt := range s.body {
		b.WriteString(stmt)
		b.WriteString(";\n")
	}

	set := []string{"revision = revision + 1"}
	for _, c := range s.changed {
		set = append(set, fmt.Sprintf("%s_revision = revision + 1", c))
	}
	fmt.Fprintf(&b, "UPDATE %s SET %s WHERE user_id = @user_id;\n", table("users"), strings.Join(set, ", "))

	if s.guard != "" {
		b.WriteString("END IF;\n")
	}
	b.WriteString("COMMIT TRANSACTION;\n")
	fmt.Fprintf(&b, "SELECT revision FROM %s WHERE user_id = @user_id;\n", table("users"))
	return b.String()
}
