// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

package store

import (
	"fmt"

	"github.com/sonarhost/sonar/internal/ids"
	"github.com/sonarhost/sonar/internal/sonarerr"
)

// SetClause is one "column = ?" fragment plus its bound argument, built by
// the ApplyValueUpdate* helpers and collected into an UPDATE statement by
// the caller.
type SetClause struct {
	Column string
	Arg    any
}

// ApplyStringUpdate turns a non-nullable string field's update into a
// SetClause, or nil if the field is unchanged. Unset on a non-nullable
// field is a domain error (spec §3's ValueUpdate semantics).
func ApplyStringUpdate(column string, u ids.ValueUpdate[string]) (*SetClause, error) {
	switch u.Op {
	case ids.OpUnchanged:
		return nil, nil
	case ids.OpSet:
		return &SetClause{Column: column, Arg: u.Value}, nil
	case ids.OpUnset:
		return nil, sonarerr.Invalidf("%s is not nullable and cannot be unset", column)
	default:
		return nil, sonarerr.Internalf("unknown value update op %d for %s", u.Op, column)
	}
}

// ApplyIDUpdate turns a non-nullable foreign-key field's update into a
// SetClause. Unset is a domain error, matching ApplyStringUpdate.
func ApplyIDUpdate(column string, u ids.ValueUpdate[ids.ID]) (*SetClause, error) {
	switch u.Op {
	case ids.OpUnchanged:
		return nil, nil
	case ids.OpSet:
		return &SetClause{Column: column, Arg: u.Value}, nil
	case ids.OpUnset:
		return nil, sonarerr.Invalidf("%s is not nullable and cannot be unset", column)
	default:
		return nil, sonarerr.Internalf("unknown value update op %d for %s", u.Op, column)
	}
}

// ApplyNullableIDUpdate turns a nullable foreign-key field's update into a
// SetClause. Unlike ApplyIDUpdate, OpUnset is legal and clears the column
// to SQL NULL (e.g. Track.cover_art_id, Track.preferred_audio_id).
func ApplyNullableIDUpdate(column string, u ids.ValueUpdate[ids.ID]) *SetClause {
	switch u.Op {
	case ids.OpUnchanged:
		return nil
	case ids.OpSet:
		return &SetClause{Column: column, Arg: u.Value}
	case ids.OpUnset:
		return &SetClause{Column: column, Arg: nil}
	default:
		return nil
	}
}

// BuildUpdate assembles an "UPDATE table SET ... WHERE id = ?" statement
// from non-nil clauses. Returns ok=false when every update was Unchanged,
// signaling the caller can skip the write entirely.
func BuildUpdate(table string, id uint32, clauses ...*SetClause) (query string, args []any, ok bool) {
	present := make([]*SetClause, 0, len(clauses))
	for _, c := range clauses {
		if c != nil {
			present = append(present, c)
		}
	}
	if len(present) == 0 {
		return "", nil, false
	}

	query = fmt.Sprintf("UPDATE %s SET ", table)
	args = make([]any, 0, len(present)+1)
	for i, c := range present {
		if i > 0 {
			query += ", "
		}
		query += c.Column + " = ?"
		args = append(args, c.Arg)
	}
	query += " WHERE id = ?"
	args = append(args, id)
	return query, args, true
}
