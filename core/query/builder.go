package query

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/siherrmann/directory/model"
)

const (
	// MaxLimit is the largest page size a listing accepts.
	MaxLimit = 1000
	// DefaultLimit is used by DefaultParams.
	DefaultLimit = 100
)

// Params are the raw filter and pagination inputs of a listing.
// Nil or empty filters are absent.
type Params struct {
	Skip             int
	Limit            int
	EntityType       *model.EntityType
	Search           *string
	EntityID         *uuid.UUID
	RelationshipType *string
}

// DefaultParams returns params for the first page with the default limit.
func DefaultParams() Params {
	return Params{Skip: 0, Limit: DefaultLimit}
}

// Query is a validated listing: a WHERE fragment with positional
// arguments plus the window. It is independent of the table it runs against.
type Query struct {
	Where string
	Args  []interface{}
	Skip  int
	Limit int
}

// OrderBy is the listing order. id breaks ties between equal timestamps.
const OrderBy = "created_at DESC, id DESC"

// BuildEntities validates p and builds the predicate for an entity listing.
// EntityID and RelationshipType are ignored.
func BuildEntities(p Params) (*Query, error) {
	q, err := newQuery(p)
	if err != nil {
		return nil, err
	}

	if p.EntityType != nil && *p.EntityType != "" {
		if !p.EntityType.Valid() {
			return nil, model.NewValidationError("entity_type", fmt.Sprintf("must be one of %v, got %q", model.EntityTypes, *p.EntityType))
		}
		q.and("entity_type = %s", string(*p.EntityType))
	}
	if p.Search != nil && *p.Search != "" {
		n := q.arg("%" + EscapeLike(*p.Search) + "%")
		q.add(fmt.Sprintf(`(name ILIKE %s ESCAPE '\' OR name_nepali ILIKE %s ESCAPE '\')`, n, n))
	}

	return q, nil
}

// BuildRelationships validates p and builds the predicate for a relationship listing.
// EntityID matches either endpoint. EntityType and Search are ignored.
func BuildRelationships(p Params) (*Query, error) {
	q, err := newQuery(p)
	if err != nil {
		return nil, err
	}

	if p.EntityID != nil {
		n := q.arg(*p.EntityID)
		q.add(fmt.Sprintf("(source_entity_id = %s OR target_entity_id = %s)", n, n))
	}
	if p.RelationshipType != nil && *p.RelationshipType != "" {
		q.and("relationship_type = %s", *p.RelationshipType)
	}

	return q, nil
}

func newQuery(p Params) (*Query, error) {
	if p.Skip < 0 {
		return nil, model.NewValidationError("skip", "must be greater than or equal to 0")
	}
	if p.Limit < 1 {
		return nil, model.NewValidationError("limit", "must be greater than or equal to 1")
	}
	if p.Limit > MaxLimit {
		return nil, model.NewValidationError("limit", fmt.Sprintf("must be less than or equal to %d", MaxLimit))
	}
	return &Query{Skip: p.Skip, Limit: p.Limit}, nil
}

// arg appends a positional argument and returns its placeholder.
func (q *Query) arg(v interface{}) string {
	q.Args = append(q.Args, v)
	return fmt.Sprintf("$%d", len(q.Args))
}

func (q *Query) and(format string, v interface{}) {
	q.add(fmt.Sprintf(format, q.arg(v)))
}

func (q *Query) add(predicate string) {
	if q.Where == "" {
		q.Where = predicate
		return
	}
	q.Where += " AND " + predicate
}

// Select returns the statement listing columns of table for q, with the
// window bound as the last two arguments.
func (q *Query) Select(columns, table string) (string, []interface{}) {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", columns, table)
	if q.Where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(q.Where)
	}
	args := append(append([]interface{}{}, q.Args...), q.Limit, q.Skip)
	fmt.Fprintf(&b, " ORDER BY %s LIMIT $%d OFFSET $%d", OrderBy, len(args)-1, len(args))
	return b.String(), args
}

// Count returns the statement counting all rows of table matching q, ignoring the window.
func (q *Query) Count(table string) (string, []interface{}) {
	stmt := "SELECT COUNT(*) FROM " + table
	if q.Where != "" {
		stmt += " WHERE " + q.Where
	}
	return stmt, append([]interface{}{}, q.Args...)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike escapes LIKE wildcards so term matches literally.
func EscapeLike(term string) string {
	return likeEscaper.Replace(term)
}
