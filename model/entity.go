package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EntityType is the closed set of kinds an entity can have.
type EntityType string

const (
	EntityTypePerson         EntityType = "person"
	EntityTypeOrganization   EntityType = "organization"
	EntityTypeGovernment     EntityType = "government"
	EntityTypePoliticalParty EntityType = "political_party"
	EntityTypeOther          EntityType = "other"
)

// EntityTypes lists every valid EntityType.
var EntityTypes = []EntityType{
	EntityTypePerson,
	EntityTypeOrganization,
	EntityTypeGovernment,
	EntityTypePoliticalParty,
	EntityTypeOther,
}

// Valid reports whether t is one of the known entity types.
func (t EntityType) Valid() bool {
	switch t {
	case EntityTypePerson,
		EntityTypeOrganization,
		EntityTypeGovernment,
		EntityTypePoliticalParty,
		EntityTypeOther:
		return true
	}
	return false
}

// ParseEntityType converts s into an EntityType, rejecting unknown values.
func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(s)
	if !t.Valid() {
		return "", NewValidationError("entity_type", fmt.Sprintf("must be one of %v, got %q", EntityTypes, s))
	}
	return t, nil
}

// DefaultEntityVersion is stored when the caller does not supply a version.
const DefaultEntityVersion = "1.0"

// Entity is a public person, organization, government body, political party or other subject.
type Entity struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	NameNepali  *string    `json:"name_nepali"`
	EntityType  EntityType `json:"entity_type"`
	Description *string    `json:"description"`
	Metadata    Metadata   `json:"metadata"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
	Version     string     `json:"version"`
}

// EntityCreate is the input for creating an entity.
type EntityCreate struct {
	Name        string     `json:"name" validate:"required,min=1,max=255,text"`
	NameNepali  *string    `json:"name_nepali,omitempty" validate:"omitempty,max=255,text"`
	EntityType  EntityType `json:"entity_type" validate:"required,entity_type"`
	Description *string    `json:"description,omitempty" validate:"omitempty,max=5000,text"`
	Metadata    Metadata   `json:"metadata,omitempty"`
	Version     *string    `json:"version,omitempty" validate:"omitempty,min=1,max=50,text"`
}

// Validate checks field lengths and enum membership.
func (c *EntityCreate) Validate() error {
	if c == nil {
		return NewValidationError("body", "entity input is required")
	}
	if err := validateStruct(c); err != nil {
		return err
	}
	return validateMetadata("metadata", c.Metadata)
}

// ToEntity builds the entity to persist. It does not sanitize.
func (c *EntityCreate) ToEntity() *Entity {
	version := DefaultEntityVersion
	if c.Version != nil {
		version = *c.Version
	}
	metadata := c.Metadata
	if metadata == nil {
		metadata = Metadata{}
	}
	return &Entity{
		Name:        c.Name,
		NameNepali:  c.NameNepali,
		EntityType:  c.EntityType,
		Description: c.Description,
		Metadata:    metadata,
		Version:     version,
	}
}

// EntityUpdate is a partial update. Absent fields are left untouched,
// fields sent as JSON null are cleared (or reset to their default).
type EntityUpdate struct {
	Name        Optional[string]     `json:"name,omitzero"`
	NameNepali  Optional[string]     `json:"name_nepali,omitzero"`
	EntityType  Optional[EntityType] `json:"entity_type,omitzero"`
	Description Optional[string]     `json:"description,omitzero"`
	Metadata    Optional[Metadata]   `json:"metadata,omitzero"`
	Version     Optional[string]     `json:"version,omitzero"`
}

// Validate checks every present field. Explicit null is rejected on name and entity_type.
func (u *EntityUpdate) Validate() error {
	if u == nil {
		return NewValidationError("body", "entity update is required")
	}
	if err := validateRequiredOptional("name", u.Name, "min=1,max=255,text"); err != nil {
		return err
	}
	if err := validateNullableOptional("name_nepali", u.NameNepali, "max=255,text"); err != nil {
		return err
	}
	if u.EntityType.IsSet() {
		t, ok := u.EntityType.Get()
		if !ok {
			return NewValidationError("entity_type", "must not be null")
		}
		if !t.Valid() {
			return NewValidationError("entity_type", fmt.Sprintf("must be one of %v, got %q", EntityTypes, t))
		}
	}
	if err := validateNullableOptional("description", u.Description, "max=5000,text"); err != nil {
		return err
	}
	if v, ok := u.Version.Get(); ok {
		if err := validateVar("version", v, "min=1,max=50,text"); err != nil {
			return err
		}
	}
	if m, ok := u.Metadata.Get(); ok {
		return validateMetadata("metadata", m)
	}
	return nil
}
