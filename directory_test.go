package directory

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/directory/core/query"
	"github.com/siherrmann/directory/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func countRows(t *testing.T, d *Directory, table string) int {
	var count int
	err := d.DB.Instance.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&count)
	require.NoError(t, err)
	return count
}

func TestNew(t *testing.T) {
	t.Run("Valid call New", func(t *testing.T) {
		d := initDirectory(t)
		assert.NotNil(t, d.DB, "Expected directory to have a database instance")
		assert.NotNil(t, d.Entities, "Expected directory to have entities handler")
		assert.NotNil(t, d.Relationships, "Expected directory to have relationships handler")
	})

	t.Run("Invalid configuration", func(t *testing.T) {
		config := DefaultConfig()
		config.OperationTimeout = -time.Second

		_, err := New(config)
		assert.Error(t, err, "Expected New to reject an invalid configuration")
	})

	t.Run("Directory with nil database handles Close gracefully", func(t *testing.T) {
		d := &Directory{}
		assert.NoError(t, d.Close(), "Expected Close to handle nil DB gracefully")
	})
}

func TestEntityLifecycle(t *testing.T) {
	d := initDirectory(t)
	ctx := context.Background()

	input := &model.EntityCreate{
		Name:        "Nepal Government",
		NameNepali:  strPtr("नेपाल सरकार"),
		EntityType:  model.EntityTypeGovernment,
		Description: strPtr("Federal Government of Nepal"),
		Metadata:    model.Metadata{"capital": "Kathmandu", "provinces": float64(7), "levels": []interface{}{"federal", "provincial", "local"}},
	}

	created, err := d.CreateEntity(ctx, input)
	require.NoError(t, err, "Expected CreateEntity to not return an error")

	t.Run("Create then get returns the input", func(t *testing.T) {
		fetched, err := d.GetEntity(ctx, created.ID)
		require.NoError(t, err)

		assert.Equal(t, created.ID, fetched.ID)
		assert.Equal(t, input.Name, fetched.Name)
		assert.Equal(t, *input.NameNepali, *fetched.NameNepali)
		assert.Equal(t, input.EntityType, fetched.EntityType)
		assert.Equal(t, *input.Description, *fetched.Description)
		assert.Equal(t, input.Metadata, fetched.Metadata)
		assert.Equal(t, model.DefaultEntityVersion, fetched.Version)
		assert.True(t, created.CreatedAt.Equal(fetched.CreatedAt))
		assert.Nil(t, fetched.UpdatedAt)
	})

	t.Run("Partial update of description", func(t *testing.T) {
		updated, err := d.UpdateEntity(ctx, created.ID, &model.EntityUpdate{Description: model.Some("Government of Nepal")})
		require.NoError(t, err)

		assert.Equal(t, "Government of Nepal", *updated.Description)
		assert.Equal(t, created.Name, updated.Name)
		assert.Equal(t, created.EntityType, updated.EntityType)
		assert.Equal(t, created.Metadata, updated.Metadata)
		assert.True(t, created.CreatedAt.Equal(updated.CreatedAt), "Expected created_at to be unchanged")
		require.NotNil(t, updated.UpdatedAt)
		assert.True(t, updated.UpdatedAt.After(created.CreatedAt), "Expected updated_at to advance")

		again, err := d.UpdateEntity(ctx, created.ID, &model.EntityUpdate{Version: model.Some("1.1")})
		require.NoError(t, err)
		require.NotNil(t, again.UpdatedAt)
		assert.True(t, again.UpdatedAt.After(*updated.UpdatedAt), "Expected updated_at to advance on every update")
		assert.Equal(t, "1.1", again.Version)
	})

	t.Run("Delete then get", func(t *testing.T) {
		err := d.DeleteEntity(ctx, created.ID)
		require.NoError(t, err)

		_, err = d.GetEntity(ctx, created.ID)
		assert.ErrorIs(t, err, model.ErrNotFound)

		err = d.DeleteEntity(ctx, created.ID)
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestCreateEntityValidation(t *testing.T) {
	d := initDirectory(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input *model.EntityCreate
	}{
		{"Nil input", nil},
		{"Empty name", &model.EntityCreate{Name: "", EntityType: model.EntityTypePerson}},
		{"Name too long", &model.EntityCreate{Name: strings.Repeat("a", 256), EntityType: model.EntityTypePerson}},
		{"Unknown type", &model.EntityCreate{Name: "Acme", EntityType: "company"}},
		{"Description too long", &model.EntityCreate{Name: "Acme", EntityType: model.EntityTypeOrganization, Description: strPtr(strings.Repeat("x", 5001))}},
		{"Invalid UTF-8 in name", &model.EntityCreate{Name: "bad\xff", EntityType: model.EntityTypePerson}},
		{"NUL in Nepali name", &model.EntityCreate{Name: "Ram", NameNepali: strPtr("रा\x00म"), EntityType: model.EntityTypePerson}},
		{"NUL in description", &model.EntityCreate{Name: "Acme", EntityType: model.EntityTypeOrganization, Description: strPtr("a\x00b")}},
		{"NUL in metadata", &model.EntityCreate{Name: "Acme", EntityType: model.EntityTypeOrganization, Metadata: model.Metadata{"tags": []interface{}{"ok", "a\u0000b"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.CreateEntity(ctx, tt.input)
			assert.ErrorIs(t, err, model.ErrValidation)
			assert.Equal(t, 422, model.HTTPStatus(err))
		})
	}

	assert.Equal(t, 0, countRows(t, d, "entities"), "Expected no entity to be written")
}

func TestSanitization(t *testing.T) {
	d := initDirectory(t)
	ctx := context.Background()

	t.Run("Create strips markup", func(t *testing.T) {
		input := &model.EntityCreate{
			Name:        "Ram Sharma",
			EntityType:  model.EntityTypePerson,
			Description: strPtr("<script>alert(1)</script>Hello"),
			Metadata:    model.Metadata{"bio": "<b>Minister</b>", "office": map[string]interface{}{"room": "<i>12</i>"}, "term": float64(2)},
		}

		created, err := d.CreateEntity(ctx, input)
		require.NoError(t, err)
		assert.Equal(t, "Hello", *created.Description)

		fetched, err := d.GetEntity(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Hello", *fetched.Description)
		assert.Equal(t, "Minister", fetched.Metadata["bio"])
		assert.Equal(t, map[string]interface{}{"room": "12"}, fetched.Metadata["office"])
		assert.Equal(t, float64(2), fetched.Metadata["term"])

		assert.Equal(t, "<script>alert(1)</script>Hello", *input.Description, "Expected the caller input to be left untouched")
	})

	t.Run("Update strips markup", func(t *testing.T) {
		created, err := d.CreateEntity(ctx, &model.EntityCreate{Name: "Sita Thapa", EntityType: model.EntityTypePerson})
		require.NoError(t, err)

		updated, err := d.UpdateEntity(ctx, created.ID, &model.EntityUpdate{
			Description: model.Some("<style>p{}</style>Secretary"),
			Metadata:    model.Some(model.Metadata{"note": "<a href=\"x\">link</a>"}),
		})
		require.NoError(t, err)
		assert.Equal(t, "Secretary", *updated.Description)
		assert.Equal(t, "link", updated.Metadata["note"])
	})

	t.Run("Relationship fields are sanitized", func(t *testing.T) {
		a, err := d.CreateEntity(ctx, &model.EntityCreate{Name: "A", EntityType: model.EntityTypePerson})
		require.NoError(t, err)
		b, err := d.CreateEntity(ctx, &model.EntityCreate{Name: "B", EntityType: model.EntityTypeOrganization})
		require.NoError(t, err)

		relationship, err := d.CreateRelationship(ctx, &model.RelationshipCreate{
			SourceEntityID:   a.ID,
			TargetEntityID:   b.ID,
			RelationshipType: "works_for",
			Description:      strPtr("<script>x()</script>Advisor"),
			Metadata:         model.Metadata{"role": "<b>chair</b>"},
		})
		require.NoError(t, err)
		assert.Equal(t, "Advisor", *relationship.Description)
		assert.Equal(t, "chair", relationship.Metadata["role"])
	})
}

func TestListEntities(t *testing.T) {
	d := initDirectory(t)
	ctx := context.Background()

	ram, err := d.CreateEntity(ctx, &model.EntityCreate{Name: "Ram Sharma", EntityType: model.EntityTypePerson})
	require.NoError(t, err)
	nepali, err := d.CreateEntity(ctx, &model.EntityCreate{Name: "R. Sharma", NameNepali: strPtr("राम शर्मा"), EntityType: model.EntityTypePerson})
	require.NoError(t, err)
	_, err = d.CreateEntity(ctx, &model.EntityCreate{Name: "Nepali Congress", EntityType: model.EntityTypePoliticalParty})
	require.NoError(t, err)

	t.Run("Search ram in any case", func(t *testing.T) {
		for _, term := range []string{"ram", "RAM", "rAm"} {
			entities, err := d.ListEntities(ctx, query.Params{Limit: 10, Search: &term})
			require.NoError(t, err)

			ids := []uuid.UUID{}
			for _, e := range entities {
				ids = append(ids, e.ID)
			}
			assert.Contains(t, ids, ram.ID, "Expected %q to find Ram Sharma", term)
		}
	})

	t.Run("Search Nepali script", func(t *testing.T) {
		term := "शर्मा"
		entities, err := d.ListEntities(ctx, query.Params{Limit: 10, Search: &term})
		require.NoError(t, err)
		require.Len(t, entities, 1)
		assert.Equal(t, nepali.ID, entities[0].ID)
	})

	t.Run("Newest first", func(t *testing.T) {
		entities, err := d.ListEntities(ctx, query.DefaultParams())
		require.NoError(t, err)
		require.Len(t, entities, 3)
		assert.Equal(t, "Nepali Congress", entities[0].Name)
		assert.Equal(t, ram.ID, entities[2].ID)
	})

	t.Run("Empty result", func(t *testing.T) {
		other := model.EntityTypeOther
		entities, err := d.ListEntities(ctx, query.Params{Limit: 10, EntityType: &other})
		require.NoError(t, err)
		assert.NotNil(t, entities)
		assert.Empty(t, entities)
	})

	t.Run("Pagination bounds", func(t *testing.T) {
		_, err := d.ListEntities(ctx, query.Params{Skip: 0, Limit: 1000})
		assert.NoError(t, err, "Expected limit=1000 to be accepted")

		for _, p := range []query.Params{{Limit: 1001}, {Limit: 0}, {Skip: -1, Limit: 10}} {
			_, err := d.ListEntities(ctx, p)
			assert.ErrorIs(t, err, model.ErrValidation, "Expected %+v to be rejected", p)

			_, err = d.ListRelationships(ctx, p)
			assert.ErrorIs(t, err, model.ErrValidation, "Expected %+v to be rejected", p)
		}
	})

	t.Run("Page metadata", func(t *testing.T) {
		page, err := d.ListEntitiesPage(ctx, query.Params{Skip: 1, Limit: 1})
		require.NoError(t, err)
		assert.Len(t, page.Items, 1)
		assert.Equal(t, 3, page.Total)
		assert.Equal(t, 1, page.Skip)
		assert.Equal(t, 1, page.Limit)
		assert.True(t, page.HasMore)
	})
}

func TestFindEntityByName(t *testing.T) {
	d := initDirectory(t)
	ctx := context.Background()

	created, err := d.CreateEntity(ctx, &model.EntityCreate{Name: "Ministry of Finance", EntityType: model.EntityTypeGovernment})
	require.NoError(t, err)

	found, err := d.FindEntityByName(ctx, "Ministry of Finance", model.EntityTypeGovernment)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)

	found, err = d.FindEntityByName(ctx, "Ministry of Health", model.EntityTypeGovernment)
	assert.NoError(t, err)
	assert.Nil(t, found)

	_, err = d.FindEntityByName(ctx, "Ministry of Finance", "ministry")
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestRelationshipScenario(t *testing.T) {
	d := initDirectory(t)
	ctx := context.Background()

	a, err := d.CreateEntity(ctx, &model.EntityCreate{Name: "Ram Sharma", EntityType: model.EntityTypePerson})
	require.NoError(t, err)
	b, err := d.CreateEntity(ctx, &model.EntityCreate{Name: "Ministry of Finance", EntityType: model.EntityTypeOrganization})
	require.NoError(t, err)

	relationship, err := d.CreateRelationship(ctx, &model.RelationshipCreate{
		SourceEntityID:   a.ID,
		TargetEntityID:   b.ID,
		RelationshipType: "works_for",
	})
	require.NoError(t, err)

	byA, err := d.ListRelationships(ctx, query.Params{Limit: 10, EntityID: &a.ID})
	require.NoError(t, err)
	require.Len(t, byA, 1)
	assert.Equal(t, relationship.ID, byA[0].ID)

	err = d.DeleteEntity(ctx, a.ID)
	require.NoError(t, err)

	byB, err := d.ListRelationships(ctx, query.Params{Limit: 10, EntityID: &b.ID})
	require.NoError(t, err)
	assert.Empty(t, byB)

	all, err := d.ListRelationships(ctx, query.DefaultParams())
	require.NoError(t, err)
	assert.Empty(t, all)

	_, err = d.GetRelationship(ctx, relationship.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = d.GetEntity(ctx, b.ID)
	assert.NoError(t, err, "Expected the other endpoint to survive")
}

func TestCreateRelationshipMissingEndpoint(t *testing.T) {
	d := initDirectory(t)
	ctx := context.Background()

	existing, err := d.CreateEntity(ctx, &model.EntityCreate{Name: "Existing", EntityType: model.EntityTypeOther})
	require.NoError(t, err)
	missing := uuid.New()

	tests := []struct {
		name     string
		source   uuid.UUID
		target   uuid.UUID
		endpoint model.Endpoint
		code     string
	}{
		{"Missing source", missing, existing.ID, model.EndpointSource, "SOURCE_ENTITY_NOT_FOUND"},
		{"Missing target", existing.ID, missing, model.EndpointTarget, "TARGET_ENTITY_NOT_FOUND"},
		{"Both missing reports source", missing, uuid.New(), model.EndpointSource, "SOURCE_ENTITY_NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.CreateRelationship(ctx, &model.RelationshipCreate{
				SourceEntityID:   tt.source,
				TargetEntityID:   tt.target,
				RelationshipType: "works_for",
			})

			assert.ErrorIs(t, err, model.ErrNotFound)
			var refErr *model.ReferentialIntegrityError
			require.ErrorAs(t, err, &refErr)
			assert.Equal(t, tt.endpoint, refErr.Endpoint)
			assert.Equal(t, tt.code, model.ErrorCode(err))
			assert.Equal(t, 404, model.HTTPStatus(err))
			assert.Equal(t, 0, countRows(t, d, "relationships"), "Expected nothing to be written")
		})
	}

	t.Run("Invalid input", func(t *testing.T) {
		_, err := d.CreateRelationship(ctx, &model.RelationshipCreate{SourceEntityID: existing.ID, TargetEntityID: existing.ID})
		assert.ErrorIs(t, err, model.ErrValidation)
	})
}

func TestRelationshipUpdateAndDelete(t *testing.T) {
	d := initDirectory(t)
	ctx := context.Background()

	a, err := d.CreateEntity(ctx, &model.EntityCreate{Name: "Ram Sharma", EntityType: model.EntityTypePerson})
	require.NoError(t, err)
	b, err := d.CreateEntity(ctx, &model.EntityCreate{Name: "Nepali Congress", EntityType: model.EntityTypePoliticalParty})
	require.NoError(t, err)

	relationship, err := d.CreateRelationship(ctx, &model.RelationshipCreate{
		SourceEntityID:   a.ID,
		TargetEntityID:   b.ID,
		RelationshipType: "member_of",
		Metadata:         model.Metadata{"since": float64(2010)},
	})
	require.NoError(t, err)

	t.Run("Partial update", func(t *testing.T) {
		updated, err := d.UpdateRelationship(ctx, relationship.ID, &model.RelationshipUpdate{Description: model.Some("Central committee")})
		require.NoError(t, err)
		assert.Equal(t, "Central committee", *updated.Description)
		assert.Equal(t, "member_of", updated.RelationshipType)
		assert.Equal(t, relationship.Metadata, updated.Metadata)
		require.NotNil(t, updated.UpdatedAt)
	})

	t.Run("Null relationship type is rejected", func(t *testing.T) {
		_, err := d.UpdateRelationship(ctx, relationship.ID, &model.RelationshipUpdate{RelationshipType: model.Null[string]()})
		assert.ErrorIs(t, err, model.ErrValidation)
	})

	t.Run("Update unknown relationship", func(t *testing.T) {
		_, err := d.UpdateRelationship(ctx, uuid.New(), &model.RelationshipUpdate{Description: model.Some("x")})
		assert.ErrorIs(t, err, model.ErrNotFound)
		assert.Equal(t, "RELATIONSHIP_NOT_FOUND", model.ErrorCode(err))
	})

	t.Run("Delete relationship", func(t *testing.T) {
		err := d.DeleteRelationship(ctx, relationship.ID)
		require.NoError(t, err)

		err = d.DeleteRelationship(ctx, relationship.ID)
		assert.ErrorIs(t, err, model.ErrNotFound)

		page, err := d.ListRelationshipsPage(ctx, query.DefaultParams())
		require.NoError(t, err)
		assert.Empty(t, page.Items)
		assert.Equal(t, 0, page.Total)
		assert.False(t, page.HasMore)

		assert.Equal(t, 2, countRows(t, d, "entities"), "Expected entities to survive a relationship delete")
	})
}

func TestConcurrentDeleteAndCreateRelationship(t *testing.T) {
	d := initDirectory(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		a, err := d.CreateEntity(ctx, &model.EntityCreate{Name: "Source", EntityType: model.EntityTypePerson})
		require.NoError(t, err)
		b, err := d.CreateEntity(ctx, &model.EntityCreate{Name: "Target", EntityType: model.EntityTypeOrganization})
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = d.DeleteEntity(ctx, a.ID)
		}()
		go func() {
			defer wg.Done()
			_, err := d.CreateRelationship(ctx, &model.RelationshipCreate{SourceEntityID: a.ID, TargetEntityID: b.ID, RelationshipType: "works_for"})
			if err != nil {
				assert.ErrorIs(t, err, model.ErrNotFound)
			}
		}()
		wg.Wait()
	}

	var dangling int
	err := d.DB.Instance.QueryRow(`
		SELECT COUNT(*) FROM relationships r
		WHERE NOT EXISTS (SELECT 1 FROM entities e WHERE e.id = r.source_entity_id)
		   OR NOT EXISTS (SELECT 1 FROM entities e WHERE e.id = r.target_entity_id)`).Scan(&dangling)
	require.NoError(t, err)
	assert.Equal(t, 0, dangling, "Expected no relationship to reference a deleted entity")
}

func TestHealth(t *testing.T) {
	d := initDirectory(t)

	status := d.Health(context.Background())
	assert.Equal(t, model.HealthStatusHealthy, status.Status)
	assert.Equal(t, model.DatabaseStatusConnected, status.Database)
	assert.Equal(t, "2.0.0", status.Version)

	require.NoError(t, d.DB.Close())

	status = d.Health(context.Background())
	assert.Equal(t, model.HealthStatusUnhealthy, status.Status)
	assert.Equal(t, model.DatabaseStatusDisconnected, status.Database)
}

func TestStorageFailureIsClassified(t *testing.T) {
	d := initDirectory(t)
	require.NoError(t, d.DB.Close())

	_, err := d.GetEntity(context.Background(), uuid.New())

	assert.ErrorIs(t, err, model.ErrStorage)
	assert.Equal(t, 500, model.HTTPStatus(err))
	assert.Equal(t, "DATABASE_ERROR", model.ErrorCode(err))
}
