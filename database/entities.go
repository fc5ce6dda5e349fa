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

// EntitiesDBHandlerFunctions defines the interface for Entities database operations.
type EntitiesDBHandlerFunctions interface {
	InsertEntity(ctx context.Context, q DBTX, entity *model.Entity) error
	SelectEntity(ctx context.Context, q DBTX, id uuid.UUID) (*model.Entity, error)
	SelectEntityByName(ctx context.Context, q DBTX, name string, entityType model.EntityType) (*model.Entity, error)
	SelectEntities(ctx context.Context, q DBTX, filter *query.Query) ([]*model.Entity, error)
	CountEntities(ctx context.Context, q DBTX, filter *query.Query) (int, error)
	UpdateEntity(ctx context.Context, q DBTX, id uuid.UUID, update *model.EntityUpdate) (*model.Entity, error)
	DeleteEntity(ctx context.Context, q DBTX, id uuid.UUID) error
}

const entityColumns = "id, name, name_nepali, entity_type, description, metadata, created_at, updated_at, version"

// EntitiesDBHandler handles entity-related database operations
type EntitiesDBHandler struct {
	db *helper.Database
}

// NewEntitiesDBHandler creates a new entities database handler.
// It migrates the schema and loads entity-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewEntitiesDBHandler(db *helper.Database, force bool) (*EntitiesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	entitiesDbHandler := &EntitiesDBHandler{
		db: db,
	}

	err := entitiesDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	err = loadSql.LoadEntitiesSql(entitiesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load entities sql", err)
	}

	db.Logger.Info("Initialized EntitiesDBHandler")

	return entitiesDbHandler, nil
}

// CreateTable runs the schema migrations that create the 'entities' table and its indexes.
// Already applied migrations are skipped.
func (h *EntitiesDBHandler) CreateTable() error {
	err := loadSql.Init(h.db)
	if err != nil {
		return err
	}

	h.db.Logger.Info("Checked/created table entities")

	return nil
}

// InsertEntity inserts a new entity. The id is generated here and
// created_at is assigned by the database.
func (h *EntitiesDBHandler) InsertEntity(ctx context.Context, q DBTX, entity *model.Entity) error {
	id, err := uuid.NewRandom()
	if err != nil {
		return helper.NewError("generate id", err)
	}

	row := q.QueryRowContext(
		ctx,
		`SELECT * FROM insert_entity($1, $2, $3, $4, $5, $6, $7)`,
		id,
		entity.Name,
		entity.NameNepali,
		string(entity.EntityType),
		entity.Description,
		entity.Metadata,
		entity.Version,
	)

	inserted, err := scanEntity(row)
	if err != nil {
		return helper.NewError("scan", err)
	}
	*entity = *inserted

	return nil
}

// SelectEntity retrieves an entity by ID
func (h *EntitiesDBHandler) SelectEntity(ctx context.Context, q DBTX, id uuid.UUID) (*model.Entity, error) {
	row := q.QueryRowContext(
		ctx,
		`SELECT * FROM select_entity($1)`,
		id,
	)

	entity, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NewNotFoundError(model.KindEntity, id)
	} else if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return entity, nil
}

// SelectEntityByName retrieves the oldest entity with exactly this name and type.
// It returns nil without an error when there is none.
func (h *EntitiesDBHandler) SelectEntityByName(ctx context.Context, q DBTX, name string, entityType model.EntityType) (*model.Entity, error) {
	row := q.QueryRowContext(
		ctx,
		`SELECT * FROM select_entity_by_name($1, $2)`,
		name,
		string(entityType),
	)

	entity, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return entity, nil
}

// SelectEntities lists the entities matching filter, newest first.
func (h *EntitiesDBHandler) SelectEntities(ctx context.Context, q DBTX, filter *query.Query) ([]*model.Entity, error) {
	stmt, args := filter.Select(entityColumns, "entities")

	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	entities := []*model.Entity{}
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		entities = append(entities, entity)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return entities, nil
}

// CountEntities counts all entities matching filter, ignoring skip and limit.
func (h *EntitiesDBHandler) CountEntities(ctx context.Context, q DBTX, filter *query.Query) (int, error) {
	stmt, args := filter.Count("entities")

	var count int
	err := q.QueryRowContext(ctx, stmt, args...).Scan(&count)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}

	return count, nil
}

// UpdateEntity applies the present fields of update and sets updated_at.
// Null metadata resets to {} and null version resets to the default version.
func (h *EntitiesDBHandler) UpdateEntity(ctx context.Context, q DBTX, id uuid.UUID, update *model.EntityUpdate) (*model.Entity, error) {
	var entityType interface{}
	if t, ok := update.EntityType.Get(); ok {
		entityType = string(t)
	}

	var metadata interface{}
	if update.Metadata.IsSet() {
		m, ok := update.Metadata.Get()
		if !ok || m == nil {
			m = model.Metadata{}
		}
		metadata = m
	}

	var version interface{}
	if update.Version.IsSet() {
		v, ok := update.Version.Get()
		if !ok {
			v = model.DefaultEntityVersion
		}
		version = v
	}

	row := q.QueryRowContext(
		ctx,
		`SELECT * FROM update_entity($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id,
		update.Name.Ptr(),
		update.NameNepali.Ptr(),
		update.NameNepali.IsSet(),
		entityType,
		update.Description.Ptr(),
		update.Description.IsSet(),
		metadata,
		version,
	)

	entity, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NewNotFoundError(model.KindEntity, id)
	} else if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return entity, nil
}

// DeleteEntity deletes an entity by ID together with every relationship touching it.
func (h *EntitiesDBHandler) DeleteEntity(ctx context.Context, q DBTX, id uuid.UUID) error {
	var deleted int
	err := q.QueryRowContext(
		ctx,
		`SELECT delete_entity($1)`,
		id,
	).Scan(&deleted)
	if err != nil {
		return helper.NewError("scan", err)
	}
	if deleted == 0 {
		return model.NewNotFoundError(model.KindEntity, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntity(row rowScanner) (*model.Entity, error) {
	entity := &model.Entity{}
	err := row.Scan(
		&entity.ID,
		&entity.Name,
		&entity.NameNepali,
		&entity.EntityType,
		&entity.Description,
		&entity.Metadata,
		&entity.CreatedAt,
		&entity.UpdatedAt,
		&entity.Version,
	)
	if err != nil {
		return nil, err
	}
	return entity, nil
}
