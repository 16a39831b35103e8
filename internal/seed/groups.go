package seed

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"regexp"

	"yatube/internal/cache"
	"yatube/internal/models"
	"yatube/internal/validation"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//go:embed fixtures/groups.yml
var defaultGroupsYAML []byte

var slugPattern = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)

// GroupFixture is one group entry of a fixtures file.
type GroupFixture struct {
	Title       string `yaml:"title" validate:"notblank,max=200"`
	Slug        string `yaml:"slug" validate:"required,max=200"`
	Description string `yaml:"description"`
}

type groupsFile struct {
	Groups []GroupFixture `yaml:"groups"`
}

// ParseGroups decodes a fixtures document and rejects entries without a
// title, with a malformed slug, or with a slug repeated in the same file.
func ParseGroups(data []byte) ([]GroupFixture, error) {
	var doc groupsFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse group fixtures: %w", err)
	}

	seen := make(map[string]struct{}, len(doc.Groups))
	for i, g := range doc.Groups {
		if err := validation.Validator().Struct(g); err != nil {
			return nil, fmt.Errorf("group #%d: %w", i+1, err)
		}
		if !slugPattern.MatchString(g.Slug) {
			return nil, fmt.Errorf("group #%d: invalid slug %q", i+1, g.Slug)
		}
		if _, dup := seen[g.Slug]; dup {
			return nil, fmt.Errorf("group #%d: duplicate slug %q", i+1, g.Slug)
		}
		seen[g.Slug] = struct{}{}
	}
	return doc.Groups, nil
}

// DefaultGroups returns the groups shipped with the binary.
func DefaultGroups() []GroupFixture {
	groups, err := ParseGroups(defaultGroupsYAML)
	if err != nil {
		panic(err)
	}
	return groups
}

// LoadGroups reads fixtures from path, or the built-in set when path is empty.
func LoadGroups(path string) ([]GroupFixture, error) {
	if path == "" {
		return DefaultGroups(), nil
	}
	data, err := os.ReadFile(path) // #nosec G304: operator supplied fixture path
	if err != nil {
		return nil, fmt.Errorf("read group fixtures: %w", err)
	}
	return ParseGroups(data)
}

// Groups upserts the fixtures keyed by slug and returns the stored rows in
// fixture order. Running it twice leaves a single row per slug.
func Groups(db *gorm.DB, fixtures []GroupFixture) ([]models.Group, error) {
	out := make([]models.Group, 0, len(fixtures))
	err := db.Transaction(func(tx *gorm.DB) error {
		for _, item := range fixtures {
			group := models.Group{
				Title:       item.Title,
				Slug:        item.Slug,
				Description: item.Description,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "slug"}},
				DoUpdates: clause.AssignmentColumns([]string{"title", "description"}),
			}).Create(&group).Error; err != nil {
				return err
			}
			// Some drivers do not report the id of a conflicting row.
			if err := tx.Where("slug = ?", item.Slug).First(&group).Error; err != nil {
				return err
			}
			out = append(out, group)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("seed groups: %w", err)
	}
	for _, g := range out {
		cache.Invalidate(context.Background(), cache.GroupKey(g.Slug))
	}
	return out, nil
}
