package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/siherrmann/directory/helper"
	"github.com/siherrmann/directory/model"
	"gopkg.in/yaml.v3"
)

// SeedFile is the YAML document read by the seed command.
// Relationships reference entities by their local key.
type SeedFile struct {
	Entities      []SeedEntity       `yaml:"entities"`
	Relationships []SeedRelationship `yaml:"relationships"`
}

type SeedEntity struct {
	Key         string                 `yaml:"key"`
	Name        string                 `yaml:"name"`
	NameNepali  *string                `yaml:"name_nepali"`
	EntityType  string                 `yaml:"entity_type"`
	Description *string                `yaml:"description"`
	Metadata    map[string]interface{} `yaml:"metadata"`
	Version     *string                `yaml:"version"`
}

type SeedRelationship struct {
	Source           string                 `yaml:"source"`
	Target           string                 `yaml:"target"`
	RelationshipType string                 `yaml:"relationship_type"`
	Description      *string                `yaml:"description"`
	Metadata         map[string]interface{} `yaml:"metadata"`
}

// Seeder is the part of the directory the seed command writes through.
type Seeder interface {
	CreateEntity(ctx context.Context, input *model.EntityCreate) (*model.Entity, error)
	FindEntityByName(ctx context.Context, name string, entityType model.EntityType) (*model.Entity, error)
	CreateRelationship(ctx context.Context, input *model.RelationshipCreate) (*model.Relationship, error)
}

// SeedResult counts what a seed run did.
type SeedResult struct {
	EntitiesCreated      int
	EntitiesSkipped      int
	RelationshipsCreated int
}

// LoadSeedFile reads and checks a seed file. Keys must be unique and every
// relationship must reference a key defined in the same file.
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, helper.NewError("read seed file", err)
	}

	file := &SeedFile{}
	if err := yaml.Unmarshal(data, file); err != nil {
		return nil, helper.NewError("parse seed file", err)
	}

	keys := map[string]bool{}
	for i, e := range file.Entities {
		if e.Key == "" {
			return nil, fmt.Errorf("entity %d (%s) has no key", i, e.Name)
		}
		if keys[e.Key] {
			return nil, fmt.Errorf("duplicate entity key %q", e.Key)
		}
		keys[e.Key] = true
	}
	for i, r := range file.Relationships {
		if !keys[r.Source] {
			return nil, fmt.Errorf("relationship %d references unknown source %q", i, r.Source)
		}
		if !keys[r.Target] {
			return nil, fmt.Errorf("relationship %d references unknown target %q", i, r.Target)
		}
	}

	return file, nil
}

// Seed creates the entities and relationships of file. Entities whose exact
// name and type already exist are skipped and the existing id is reused.
// It stops at the first error.
func Seed(ctx context.Context, s Seeder, file *SeedFile, logger *slog.Logger) (*SeedResult, error) {
	result := &SeedResult{}
	ids := map[string]*model.Entity{}

	for _, e := range file.Entities {
		entityType, err := model.ParseEntityType(e.EntityType)
		if err != nil {
			return result, helper.NewError("entity "+e.Key, err)
		}

		existing, err := s.FindEntityByName(ctx, e.Name, entityType)
		if err != nil {
			return result, helper.NewError("find entity "+e.Key, err)
		}
		if existing != nil {
			logger.Info("Skipped existing entity", slog.String("key", e.Key), slog.String("entity_id", existing.ID.String()))
			ids[e.Key] = existing
			result.EntitiesSkipped++
			continue
		}

		created, err := s.CreateEntity(ctx, &model.EntityCreate{
			Name:        e.Name,
			NameNepali:  e.NameNepali,
			EntityType:  entityType,
			Description: e.Description,
			Metadata:    model.Metadata(e.Metadata),
			Version:     e.Version,
		})
		if err != nil {
			return result, helper.NewError("create entity "+e.Key, err)
		}
		ids[e.Key] = created
		result.EntitiesCreated++
	}

	for _, r := range file.Relationships {
		created, err := s.CreateRelationship(ctx, &model.RelationshipCreate{
			SourceEntityID:   ids[r.Source].ID,
			TargetEntityID:   ids[r.Target].ID,
			RelationshipType: r.RelationshipType,
			Description:      r.Description,
			Metadata:         model.Metadata(r.Metadata),
		})
		if err != nil {
			return result, helper.NewError(fmt.Sprintf("create relationship %s -> %s", r.Source, r.Target), err)
		}
		logger.Debug("Created relationship", slog.String("relationship_id", created.ID.String()))
		result.RelationshipsCreated++
	}

	return result, nil
}
