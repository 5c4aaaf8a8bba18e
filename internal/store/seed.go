package store

import (
	"context"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/joescharf/bugboard/internal/models"
)

//go:embed seed/demo.yaml
var demoSeed []byte

// Seed is a YAML document of bugs and their comments. It is the format of
// the demo fixtures and of files passed to `bugboard import`.
type Seed struct {
	Bugs     []*models.Bug     `yaml:"bugs"`
	Comments []*models.Comment `yaml:"comments"`
}

// ParseSeed decodes a seed document.
func ParseSeed(data []byte) (*Seed, error) {
	var s Seed
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	return &s, nil
}

// DemoSeed returns the fixtures shipped with the binary.
func DemoSeed() *Seed {
	s, err := ParseSeed(demoSeed)
	if err != nil {
		panic(err)
	}
	return s
}

// ImportResult reports what Import created.
type ImportResult struct {
	Bugs     []*models.Bug
	Comments int
	// Orphans counts comments whose bug id matched no bug in the seed.
	Orphans int
}

// Import creates every seed bug through s, letting the store assign fresh
// ids, and re-points comments at the new ids. Comments that reference a bug
// not present in the seed are skipped and counted as orphans.
func Import(ctx context.Context, s Store, seed *Seed) (*ImportResult, error) {
	res := &ImportResult{}
	idMap := make(map[int64]int64, len(seed.Bugs))

	// Create oldest first so the store's newest-first order matches the file.
	for i := len(seed.Bugs) - 1; i >= 0; i-- {
		b := seed.Bugs[i]
		created, err := s.CreateBug(ctx, models.BugInput{
			Title:       b.Title,
			Description: b.Description,
			Severity:    b.Severity,
			Status:      b.Status,
			Reporter:    b.Reporter,
			Assignee:    b.Assignee,
			Tags:        models.CleanTags(b.Tags),
		})
		if err != nil {
			return res, fmt.Errorf("import bug %q: %w", b.Title, err)
		}
		if b.ID != 0 {
			idMap[b.ID] = created.ID
		}
		res.Bugs = append([]*models.Bug{created}, res.Bugs...)
	}

	for _, c := range seed.Comments {
		newID, ok := idMap[c.BugID]
		if !ok {
			res.Orphans++
			continue
		}
		comment := &models.Comment{
			BugID:     newID,
			Author:    c.Author,
			Content:   c.Content,
			CreatedAt: c.CreatedAt,
		}
		if err := s.CreateComment(ctx, comment); err != nil {
			return res, fmt.Errorf("import comment: %w", err)
		}
		res.Comments++
	}
	return res, nil
}
