package staging

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/timmy/sportsync/internal/domain"
	"github.com/timmy/sportsync/internal/provider"
)

const (
	ProviderName = "staging"
	// FileExt is the JSON Lines extension of staged entity files.
	FileExt = ".jsonl"
)

// Gateway implements provider.Gateway over a directory of staged records,
// one <entity_type>.jsonl file per entity type. It is used for offline runs
// and replaying captured provider output.
type Gateway struct {
	basePath string
}

// NewGateway creates a staging gateway rooted at basePath.
func NewGateway(basePath string) *Gateway {
	return &Gateway{basePath: basePath}
}

// Name returns the provider identifier.
func (g *Gateway) Name() string {
	return ProviderName
}

// EntityTypes lists entity types with a staged file.
func (g *Gateway) EntityTypes() []domain.EntityType {
	var types []domain.EntityType
	for _, t := range domain.AllEntityTypes {
		if _, err := os.Stat(g.path(t)); err == nil {
			types = append(types, t)
		}
	}
	return types
}

// Fetch reads every staged record of one entity type.
// Params filter records by ParentExternalID when "parent" is set.
func (g *Gateway) Fetch(ctx context.Context, entityType domain.EntityType, params provider.Params) ([]domain.ProviderRecord, error) {
	if _, err := domain.ParseEntityType(string(entityType)); err != nil {
		return nil, err
	}

	file, err := os.Open(g.path(entityType))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.MarkProviderUnavailable(err, "no staged %s", entityType)
		}
		return nil, fmt.Errorf("failed to open staged %s: %w", entityType, err)
	}
	defer file.Close()

	parent := params["parent"]
	var records []domain.ProviderRecord

	// Read line by line (JSON Lines format)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, domain.MarkProviderUnavailable(err, "reading staged %s", entityType)
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var rec domain.ProviderRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			// Skip malformed lines
			continue
		}
		if rec.ExternalID == "" {
			continue
		}
		if parent != "" && rec.ParentExternalID != parent {
			continue
		}
		rec.EntityType = entityType
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading staged %s: %w", entityType, err)
	}

	// Sort by ID for consistent ordering
	sort.Slice(records, func(i, j int) bool {
		return records[i].ExternalID < records[j].ExternalID
	})
	return records, nil
}

func (g *Gateway) path(entityType domain.EntityType) string {
	return filepath.Join(g.basePath, string(entityType)+FileExt)
}
