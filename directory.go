package directory

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/siherrmann/directory/core/query"
	"github.com/siherrmann/directory/core/sanitizer"
	"github.com/siherrmann/directory/database"
	"github.com/siherrmann/directory/helper"
	"github.com/siherrmann/directory/model"
)

// Directory provides the entity and relationship operations.
// Every call runs in its own transaction.
type Directory struct {
	DB            *helper.Database
	Entities      *database.EntitiesDBHandler
	Relationships *database.RelationshipsDBHandler
	config        Config
	// Logging
	log *slog.Logger
}

// New connects to the database, migrates the schema and initializes all handlers.
func New(config *Config) (*Directory, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Logger
	logger := config.Logger(os.Stdout)

	// Initialize database
	db, err := helper.NewDatabase("directory", &config.Database, logger)
	if err != nil {
		return nil, helper.NewError("connect database", err)
	}

	// Entities first, its constructor migrates the schema
	entities, err := database.NewEntitiesDBHandler(db, config.ForceReloadSQL)
	if err != nil {
		db.Close()
		return nil, helper.NewError("create entities handler", err)
	}

	relationships, err := database.NewRelationshipsDBHandler(db, config.ForceReloadSQL)
	if err != nil {
		db.Close()
		return nil, helper.NewError("create relationships handler", err)
	}

	logger.Info("Initialized directory", slog.String("environment", config.Environment), slog.String("version", config.APIVersion))

	return &Directory{
		DB:            db,
		Entities:      entities,
		Relationships: relationships,
		config:        *config,
		log:           logger,
	}, nil
}

// Close closes the database connection
func (d *Directory) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}

// inTx runs fn in one transaction bounded by the operation timeout.
func (d *Directory) inTx(ctx context.Context, op string, readOnly bool, fn func(ctx context.Context, tx database.DBTX) error) error {
	ctx, cancel := context.WithTimeout(ctx, d.config.OperationTimeout)
	defer cancel()

	err := database.RunInTx(ctx, d.DB, op, readOnly, func(tx database.DBTX) error {
		return fn(ctx, tx)
	})

	var storageErr *model.StorageError
	if errors.As(err, &storageErr) {
		cause := ""
		if storageErr.Err != nil {
			cause = storageErr.Err.Error()
		}
		d.log.Error("Operation failed", slog.String("operation", op), slog.String("kind", string(storageErr.Kind)), slog.String("cause", cause))
	}
	return err
}

// CreateEntity validates, sanitizes and stores a new entity.
func (d *Directory) CreateEntity(ctx context.Context, input *model.EntityCreate) (*model.Entity, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	clean := *input
	sanitizer.Entity(&clean)
	entity := clean.ToEntity()

	err := d.inTx(ctx, "create entity", false, func(ctx context.Context, tx database.DBTX) error {
		return d.Entities.InsertEntity(ctx, tx, entity)
	})
	if err != nil {
		return nil, err
	}

	d.log.Info("Created entity", slog.String("entity_id", entity.ID.String()), slog.String("entity_type", string(entity.EntityType)))

	return entity, nil
}

// GetEntity returns the entity with the given id.
func (d *Directory) GetEntity(ctx context.Context, id uuid.UUID) (*model.Entity, error) {
	var entity *model.Entity
	err := d.inTx(ctx, "get entity", true, func(ctx context.Context, tx database.DBTX) error {
		var err error
		entity, err = d.Entities.SelectEntity(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entity, nil
}

// FindEntityByName returns the oldest entity with exactly this name and type,
// or nil when there is none.
func (d *Directory) FindEntityByName(ctx context.Context, name string, entityType model.EntityType) (*model.Entity, error) {
	if !entityType.Valid() {
		_, err := model.ParseEntityType(string(entityType))
		return nil, err
	}

	var entity *model.Entity
	err := d.inTx(ctx, "find entity", true, func(ctx context.Context, tx database.DBTX) error {
		var err error
		entity, err = d.Entities.SelectEntityByName(ctx, tx, name, entityType)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entity, nil
}

// ListEntities returns one window of entities, newest first.
// An empty result is an empty slice.
func (d *Directory) ListEntities(ctx context.Context, params query.Params) ([]*model.Entity, error) {
	filter, err := query.BuildEntities(params)
	if err != nil {
		return nil, err
	}

	var entities []*model.Entity
	err = d.inTx(ctx, "list entities", true, func(ctx context.Context, tx database.DBTX) error {
		var err error
		entities, err = d.Entities.SelectEntities(ctx, tx, filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entities, nil
}

// ListEntitiesPage is ListEntities with the total count of matching entities.
func (d *Directory) ListEntitiesPage(ctx context.Context, params query.Params) (*model.Page[*model.Entity], error) {
	filter, err := query.BuildEntities(params)
	if err != nil {
		return nil, err
	}

	var entities []*model.Entity
	var total int
	err = d.inTx(ctx, "list entities", true, func(ctx context.Context, tx database.DBTX) error {
		var err error
		entities, err = d.Entities.SelectEntities(ctx, tx, filter)
		if err != nil {
			return err
		}
		total, err = d.Entities.CountEntities(ctx, tx, filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	return model.NewPage(entities, total, filter.Skip, filter.Limit), nil
}

// UpdateEntity applies a partial update. Absent fields keep their value.
func (d *Directory) UpdateEntity(ctx context.Context, id uuid.UUID, update *model.EntityUpdate) (*model.Entity, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}

	clean := *update
	sanitizer.EntityUpdate(&clean)

	var entity *model.Entity
	err := d.inTx(ctx, "update entity", false, func(ctx context.Context, tx database.DBTX) error {
		var err error
		entity, err = d.Entities.UpdateEntity(ctx, tx, id, &clean)
		return err
	})
	if err != nil {
		return nil, err
	}

	d.log.Info("Updated entity", slog.String("entity_id", id.String()))

	return entity, nil
}

// DeleteEntity deletes an entity and every relationship touching it.
func (d *Directory) DeleteEntity(ctx context.Context, id uuid.UUID) error {
	err := d.inTx(ctx, "delete entity", false, func(ctx context.Context, tx database.DBTX) error {
		return d.Entities.DeleteEntity(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	d.log.Info("Deleted entity", slog.String("entity_id", id.String()))

	return nil
}

// CreateRelationship validates, sanitizes and stores a new relationship.
// Both endpoints must exist, otherwise a ReferentialIntegrityError is returned
// and nothing is written.
func (d *Directory) CreateRelationship(ctx context.Context, input *model.RelationshipCreate) (*model.Relationship, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	clean := *input
	sanitizer.Relationship(&clean)
	relationship := clean.ToRelationship()

	err := d.inTx(ctx, "create relationship", false, func(ctx context.Context, tx database.DBTX) error {
		return d.Relationships.InsertRelationship(ctx, tx, relationship)
	})
	if err != nil {
		return nil, err
	}

	d.log.Info(
		"Created relationship",
		slog.String("relationship_id", relationship.ID.String()),
		slog.String("source_entity_id", relationship.SourceEntityID.String()),
		slog.String("target_entity_id", relationship.TargetEntityID.String()),
	)

	return relationship, nil
}

// GetRelationship returns the relationship with the given id.
func (d *Directory) GetRelationship(ctx context.Context, id uuid.UUID) (*model.Relationship, error) {
	var relationship *model.Relationship
	err := d.inTx(ctx, "get relationship", true, func(ctx context.Context, tx database.DBTX) error {
		var err error
		relationship, err = d.Relationships.SelectRelationship(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return relationship, nil
}

// ListRelationships returns one window of relationships, newest first.
func (d *Directory) ListRelationships(ctx context.Context, params query.Params) ([]*model.Relationship, error) {
	filter, err := query.BuildRelationships(params)
	if err != nil {
		return nil, err
	}

	var relationships []*model.Relationship
	err = d.inTx(ctx, "list relationships", true, func(ctx context.Context, tx database.DBTX) error {
		var err error
		relationships, err = d.Relationships.SelectRelationships(ctx, tx, filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	return relationships, nil
}

// ListRelationshipsPage is ListRelationships with the total count of matching relationships.
func (d *Directory) ListRelationshipsPage(ctx context.Context, params query.Params) (*model.Page[*model.Relationship], error) {
	filter, err := query.BuildRelationships(params)
	if err != nil {
		return nil, err
	}

	var relationships []*model.Relationship
	var total int
	err = d.inTx(ctx, "list relationships", true, func(ctx context.Context, tx database.DBTX) error {
		var err error
		relationships, err = d.Relationships.SelectRelationships(ctx, tx, filter)
		if err != nil {
			return err
		}
		total, err = d.Relationships.CountRelationships(ctx, tx, filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	return model.NewPage(relationships, total, filter.Skip, filter.Limit), nil
}

// UpdateRelationship applies a partial update. Endpoints cannot be changed.
func (d *Directory) UpdateRelationship(ctx context.Context, id uuid.UUID, update *model.RelationshipUpdate) (*model.Relationship, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}

	clean := *update
	sanitizer.RelationshipUpdate(&clean)

	var relationship *model.Relationship
	err := d.inTx(ctx, "update relationship", false, func(ctx context.Context, tx database.DBTX) error {
		var err error
		relationship, err = d.Relationships.UpdateRelationship(ctx, tx, id, &clean)
		return err
	})
	if err != nil {
		return nil, err
	}

	d.log.Info("Updated relationship", slog.String("relationship_id", id.String()))

	return relationship, nil
}

// DeleteRelationship deletes a single relationship.
func (d *Directory) DeleteRelationship(ctx context.Context, id uuid.UUID) error {
	err := d.inTx(ctx, "delete relationship", false, func(ctx context.Context, tx database.DBTX) error {
		return d.Relationships.DeleteRelationship(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	d.log.Info("Deleted relationship", slog.String("relationship_id", id.String()))

	return nil
}

// Health reports whether the database answers. It never returns an error,
// failures are reported in the status.
func (d *Directory) Health(ctx context.Context) *model.HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, d.config.OperationTimeout)
	defer cancel()

	status := &model.HealthStatus{
		Status:   model.HealthStatusHealthy,
		Database: model.DatabaseStatusConnected,
		Version:  d.config.APIVersion,
	}

	if err := d.DB.Health(ctx); err != nil {
		d.log.Error("Health check failed", slog.String("error", err.Error()))
		status.Status = model.HealthStatusUnhealthy
		status.Database = model.DatabaseStatusDisconnected
	}

	return status
}
