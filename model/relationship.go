package model

import (
	"time"

	"github.com/google/uuid"
)

// Relationship is a directed, typed edge between two entities.
// RelationshipType is an open vocabulary such as "member_of" or "works_for".
type Relationship struct {
	ID               uuid.UUID  `json:"id"`
	SourceEntityID   uuid.UUID  `json:"source_entity_id"`
	TargetEntityID   uuid.UUID  `json:"target_entity_id"`
	RelationshipType string     `json:"relationship_type"`
	Description      *string    `json:"description"`
	Metadata         Metadata   `json:"metadata"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        *time.Time `json:"updated_at"`
}

// RelationshipCreate is the input for creating a relationship.
type RelationshipCreate struct {
	SourceEntityID   uuid.UUID `json:"source_entity_id"`
	TargetEntityID   uuid.UUID `json:"target_entity_id"`
	RelationshipType string    `json:"relationship_type" validate:"required,min=1,max=100,text"`
	Description      *string   `json:"description,omitempty" validate:"omitempty,text"`
	Metadata         Metadata  `json:"metadata,omitempty"`
}

// Validate checks field lengths and that both endpoint ids are set.
func (c *RelationshipCreate) Validate() error {
	if c == nil {
		return NewValidationError("body", "relationship input is required")
	}
	if c.SourceEntityID == uuid.Nil {
		return NewValidationError("source_entity_id", "is required")
	}
	if c.TargetEntityID == uuid.Nil {
		return NewValidationError("target_entity_id", "is required")
	}
	if err := validateStruct(c); err != nil {
		return err
	}
	return validateMetadata("metadata", c.Metadata)
}

// ToRelationship builds the relationship to persist. It does not sanitize.
func (c *RelationshipCreate) ToRelationship() *Relationship {
	metadata := c.Metadata
	if metadata == nil {
		metadata = Metadata{}
	}
	return &Relationship{
		SourceEntityID:   c.SourceEntityID,
		TargetEntityID:   c.TargetEntityID,
		RelationshipType: c.RelationshipType,
		Description:      c.Description,
		Metadata:         metadata,
	}
}

// RelationshipUpdate is a partial update of a relationship.
// Endpoints are immutable.
type RelationshipUpdate struct {
	RelationshipType Optional[string]   `json:"relationship_type,omitzero"`
	Description      Optional[string]   `json:"description,omitzero"`
	Metadata         Optional[Metadata] `json:"metadata,omitzero"`
}

// Validate checks every present field. Explicit null is rejected on relationship_type.
func (u *RelationshipUpdate) Validate() error {
	if u == nil {
		return NewValidationError("body", "relationship update is required")
	}
	if err := validateRequiredOptional("relationship_type", u.RelationshipType, "min=1,max=100,text"); err != nil {
		return err
	}
	if err := validateNullableOptional("description", u.Description, "text"); err != nil {
		return err
	}
	if m, ok := u.Metadata.Get(); ok {
		return validateMetadata("metadata", m)
	}
	return nil
}
