package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/siherrmann/directory/core/query"
	"github.com/siherrmann/directory/helper"
	"github.com/siherrmann/directory/model"
	loadSql "github.com/siherrmann/directory/sql"
)

// RelationshipsDBHandlerFunctions defines the interface for Relationships database operations.
type RelationshipsDBHandlerFunctions interface {
	InsertRelationship(ctx context.Context, q DBTX, relationship *model.Relationship) error
	SelectRelationship(ctx context.Context, q DBTX, id uuid.UUID) (*model.Relationship, error)
	SelectRelationships(ctx context.Context, q DBTX, filter *query.Query) ([]*model.Relationship, error)
	CountRelationships(ctx context.Context, q DBTX, filter *query.Query) (int, error)
	UpdateRelationship(ctx context.Context, q DBTX, id uuid.UUID, update *model.RelationshipUpdate) (*model.Relationship, error)
	DeleteRelationship(ctx context.Context, q DBTX, id uuid.UUID) error
}

const relationshipColumns = "id, source_entity_id, target_entity_id, relationship_type, description, metadata, created_at, updated_at"

// RelationshipsDBHandler handles relationship-related database operations
type RelationshipsDBHandler struct {
	db *helper.Database
}

// NewRelationshipsDBHandler creates a new relationships database handler.
// It migrates the schema and loads relationship-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewRelationshipsDBHandler(db *helper.Database, force bool) (*RelationshipsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	relationshipsDbHandler := &RelationshipsDBHandler{
		db: db,
	}

	err := relationshipsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	err = loadSql.LoadRelationshipsSql(relationshipsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load relationships sql", err)
	}

	db.Logger.Info("Initialized RelationshipsDBHandler")

	return relationshipsDbHandler, nil
}

// CreateTable runs the schema migrations that create the 'relationships' table,
// its foreign keys to 'entities' and its indexes.
func (h *RelationshipsDBHandler) CreateTable() error {
	err := loadSql.Init(h.db)
	if err != nil {
		return err
	}

	h.db.Logger.Info("Checked/created table relationships")

	return nil
}

// InsertRelationship inserts a new relationship after locking both endpoints.
// A missing endpoint is reported as a ReferentialIntegrityError and nothing is written.
func (h *RelationshipsDBHandler) InsertRelationship(ctx context.Context, q DBTX, relationship *model.Relationship) error {
	err := lockEndpoint(ctx, q, model.EndpointSource, relationship.SourceEntityID)
	if err != nil {
		return err
	}
	err = lockEndpoint(ctx, q, model.EndpointTarget, relationship.TargetEntityID)
	if err != nil {
		return err
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return helper.NewError("generate id", err)
	}

	row := q.QueryRowContext(
		ctx,
		`SELECT * FROM insert_relationship($1, $2, $3, $4, $5, $6)`,
		id,
		relationship.SourceEntityID,
		relationship.TargetEntityID,
		relationship.RelationshipType,
		relationship.Description,
		relationship.Metadata,
	)

	inserted, err := scanRelationship(row)
	if err != nil {
		// The foreign keys still guard against an endpoint deleted concurrently.
		if endpoint, ok := foreignKeyEndpoint(err); ok {
			endpointID := relationship.SourceEntityID
			if endpoint == model.EndpointTarget {
				endpointID = relationship.TargetEntityID
			}
			return model.NewReferentialIntegrityError(endpoint, endpointID)
		}
		return helper.NewError("scan", err)
	}
	*relationship = *inserted

	return nil
}

func lockEndpoint(ctx context.Context, q DBTX, endpoint model.Endpoint, id uuid.UUID) error {
	var found bool
	err := q.QueryRowContext(
		ctx,
		`SELECT lock_entity($1)`,
		id,
	).Scan(&found)
	if err != nil {
		return helper.NewError("lock "+string(endpoint)+" entity", err)
	}
	if !found {
		return model.NewReferentialIntegrityError(endpoint, id)
	}
	return nil
}

// SelectRelationship retrieves a relationship by ID
func (h *RelationshipsDBHandler) SelectRelationship(ctx context.Context, q DBTX, id uuid.UUID) (*model.Relationship, error) {
	row := q.QueryRowContext(
		ctx,
		`SELECT * FROM select_relationship($1)`,
		id,
	)

	relationship, err := scanRelationship(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NewNotFoundError(model.KindRelationship, id)
	} else if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return relationship, nil
}

// SelectRelationships lists the relationships matching filter, newest first.
func (h *RelationshipsDBHandler) SelectRelationships(ctx context.Context, q DBTX, filter *query.Query) ([]*model.Relationship, error) {
	stmt, args := filter.Select(relationshipColumns, "relationships")

	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	relationships := []*model.Relationship{}
	for rows.Next() {
		relationship, err := scanRelationship(rows)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		relationships = append(relationships, relationship)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return relationships, nil
}

// CountRelationships counts all relationships matching filter, ignoring skip and limit.
func (h *RelationshipsDBHandler) CountRelationships(ctx context.Context, q DBTX, filter *query.Query) (int, error) {
	stmt, args := filter.Count("relationships")

	var count int
	err := q.QueryRowContext(ctx, stmt, args...).Scan(&count)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}

	return count, nil
}

// UpdateRelationship applies the present fields of update and sets updated_at.
// Endpoints cannot change.
func (h *RelationshipsDBHandler) UpdateRelationship(ctx context.Context, q DBTX, id uuid.UUID, update *model.RelationshipUpdate) (*model.Relationship, error) {
	var metadata interface{}
	if update.Metadata.IsSet() {
		m, ok := update.Metadata.Get()
		if !ok || m == nil {
			m = model.Metadata{}
		}
		metadata = m
	}

	row := q.QueryRowContext(
		ctx,
		`SELECT * FROM update_relationship($1, $2, $3, $4, $5)`,
		id,
		update.RelationshipType.Ptr(),
		update.Description.Ptr(),
		update.Description.IsSet(),
		metadata,
	)

	relationship, err := scanRelationship(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NewNotFoundError(model.KindRelationship, id)
	} else if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return relationship, nil
}

// DeleteRelationship deletes a relationship by ID. Its endpoints are untouched.
func (h *RelationshipsDBHandler) DeleteRelationship(ctx context.Context, q DBTX, id uuid.UUID) error {
	var deleted int
	err := q.QueryRowContext(
		ctx,
		`SELECT delete_relationship($1)`,
		id,
	).Scan(&deleted)
	if err != nil {
		return helper.NewError("scan", err)
	}
	if deleted == 0 {
		return model.NewNotFoundError(model.KindRelationship, id)
	}
	return nil
}

func scanRelationship(row rowScanner) (*model.Relationship, error) {
	relationship := &model.Relationship{}
	err := row.Scan(
		&relationship.ID,
		&relationship.SourceEntityID,
		&relationship.TargetEntityID,
		&relationship.RelationshipType,
		&relationship.Description,
		&relationship.Metadata,
		&relationship.CreatedAt,
		&relationship.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return relationship, nil
}
