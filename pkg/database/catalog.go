package database

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/chatflow-io/chatflow/pkg/models"
)

//go:embed catalog.yaml
var catalogYAML []byte

type catalogFile struct {
	NodeTypes []catalogEntry `yaml:"node_types"`
}

type catalogEntry struct {
	Type              string   `yaml:"type"`
	Category          string   `yaml:"category"`
	Title             string   `yaml:"title"`
	Description       string   `yaml:"description"`
	UserInputRequired bool     `yaml:"user_input_required"`
	Fields            []string `yaml:"fields"`
}

// SeedCatalog loads the embedded node-type catalog into the store,
// skipping types that already have an entry.
func SeedCatalog(ctx context.Context, store NodeDetailStore) error {
	var file catalogFile
	if err := yaml.Unmarshal(catalogYAML, &file); err != nil {
		return fmt.Errorf("parse node catalog: %w", err)
	}
	for _, entry := range file.NodeTypes {
		detail := &models.NodeDetail{
			ID:                uuid.NewString(),
			Type:              models.NodeType(entry.Type),
			Category:          entry.Category,
			Title:             entry.Title,
			Description:       entry.Description,
			UserInputRequired: entry.UserInputRequired,
			Fields:            entry.Fields,
		}
		if err := store.SeedNodeDetail(ctx, detail); err != nil {
			return fmt.Errorf("seed node type %s: %w", entry.Type, err)
		}
	}
	return nil
}
