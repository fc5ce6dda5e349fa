package main

import (
	"context"
	"fmt"
	"log"

	"github.com/siherrmann/directory"
	"github.com/siherrmann/directory/core/query"
	"github.com/siherrmann/directory/helper"
	"github.com/siherrmann/directory/model"
)

func main() {
	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	config := directory.DefaultConfig()
	config.Database.Port = dbPort
	config.Database.Database = "database"
	config.Database.Username = "user"
	config.Database.Password = "password"

	d, err := directory.New(config)
	if err != nil {
		log.Fatalf("Failed to create directory: %v", err)
	}
	defer d.Close()

	ctx := context.Background()
	nepali := "नेपाल सरकार"
	description := `Federal Government of Nepal<script>alert("x")</script>`

	government, err := d.CreateEntity(ctx, &model.EntityCreate{
		Name:        "Nepal Government",
		NameNepali:  &nepali,
		EntityType:  model.EntityTypeGovernment,
		Description: &description,
		Metadata:    model.Metadata{"capital": "Kathmandu"},
	})
	if err != nil {
		log.Fatalf("Failed to create entity: %v", err)
	}
	fmt.Printf("Created %s (%s), description %q\n", government.Name, government.ID, *government.Description)

	ministry, err := d.CreateEntity(ctx, &model.EntityCreate{
		Name:       "Ministry of Finance",
		EntityType: model.EntityTypeGovernment,
	})
	if err != nil {
		log.Fatalf("Failed to create entity: %v", err)
	}

	relationship, err := d.CreateRelationship(ctx, &model.RelationshipCreate{
		SourceEntityID:   ministry.ID,
		TargetEntityID:   government.ID,
		RelationshipType: "part_of",
	})
	if err != nil {
		log.Fatalf("Failed to create relationship: %v", err)
	}
	fmt.Printf("Created relationship %s: %s -[%s]-> %s\n", relationship.ID, ministry.Name, relationship.RelationshipType, government.Name)

	// Search matches both the English and the Nepali name
	params := query.DefaultParams()
	search := "सरकार"
	params.Search = &search
	page, err := d.ListEntitiesPage(ctx, params)
	if err != nil {
		log.Fatalf("Failed to list entities: %v", err)
	}
	fmt.Printf("\nSearch %q: %d of %d results\n", search, len(page.Items), page.Total)
	for _, e := range page.Items {
		fmt.Printf("  %s [%s]\n", e.Name, e.EntityType)
	}

	// Deleting an entity removes every relationship touching it
	if err := d.DeleteEntity(ctx, government.ID); err != nil {
		log.Fatalf("Failed to delete entity: %v", err)
	}
	_, err = d.GetRelationship(ctx, relationship.ID)
	fmt.Printf("\nRelationship after deleting %s: %v (status %d)\n", government.Name, err, model.HTTPStatus(err))

	health := d.Health(ctx)
	fmt.Printf("Health: %s, database %s, version %s\n", health.Status, health.Database, health.Version)
}
