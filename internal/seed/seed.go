// Package seed fills a database with demo users, groups, posts, comments and
// follow edges.
package seed

import (
	"fmt"
	"log"

	"yatube/internal/models"

	"gorm.io/gorm"
)

// Plan describes how much demo data to create.
type Plan struct {
	Users           int
	Posts           int
	CommentsPerPost int
	FollowsPerUser  int
	// GroupsFile points at a YAML fixtures file; empty means the built-in set.
	GroupsFile string
	// Clean removes existing users, posts, comments and follows first.
	Clean bool
}

// Summary reports what a run created.
type Summary struct {
	Groups   int
	Users    int
	Posts    int
	Comments int
	Follows  int
}

func (s Summary) String() string {
	return fmt.Sprintf("groups=%d users=%d posts=%d comments=%d follows=%d",
		s.Groups, s.Users, s.Posts, s.Comments, s.Follows)
}

// Seeder runs a Plan against a database.
type Seeder struct {
	db      *gorm.DB
	factory *Factory
	dryRun  bool
}

// NewSeeder returns a seeder writing to db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	return &Seeder{db: db, factory: NewFactory(db, opts), dryRun: opts.DryRun}
}

// Run executes plan. Posts are spread round robin over the users; roughly
// two out of three posts are filed under a group.
func (s *Seeder) Run(plan Plan) (*Summary, error) {
	fixtures, err := LoadGroups(plan.GroupsFile)
	if err != nil {
		return nil, err
	}

	if plan.Clean {
		if err := s.ClearAll(); err != nil {
			return nil, err
		}
	}

	sum := &Summary{}

	var groups []models.Group
	if s.dryRun {
		for i, g := range fixtures {
			groups = append(groups, models.Group{ID: uint(i + 1), Title: g.Title, Slug: g.Slug})
		}
		log.Printf("[dry-run] Groups: %d fixtures", len(fixtures))
	} else {
		groups, err = Groups(s.db, fixtures)
		if err != nil {
			return nil, err
		}
	}
	sum.Groups = len(groups)

	users := make([]*models.User, 0, plan.Users)
	for i := 0; i < plan.Users; i++ {
		u, err := s.factory.CreateUser()
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		users = append(users, u)
	}
	sum.Users = len(users)
	if len(users) == 0 {
		return sum, nil
	}

	posts := make([]*models.Post, 0, plan.Posts)
	for i := 0; i < plan.Posts; i++ {
		var group *models.Group
		if len(groups) > 0 && i%3 != 2 {
			group = &groups[i%len(groups)]
		}
		posts = append(posts, s.factory.BuildPost(users[i%len(users)], group))
	}
	if err := s.factory.CreatePostsBatch(posts, 100); err != nil {
		return nil, fmt.Errorf("create posts: %w", err)
	}
	sum.Posts = len(posts)

	for i, p := range posts {
		for j := 0; j < plan.CommentsPerPost; j++ {
			author := users[(i+j+1)%len(users)]
			if _, err := s.factory.CreateComment(author, p); err != nil {
				return nil, fmt.Errorf("create comment: %w", err)
			}
			sum.Comments++
		}
	}

	follows := plan.FollowsPerUser
	if follows > len(users)-1 {
		follows = len(users) - 1
	}
	for i, u := range users {
		for j := 1; j <= follows; j++ {
			if err := s.factory.CreateFollow(u, users[(i+j)%len(users)]); err != nil {
				return nil, fmt.Errorf("create follow: %w", err)
			}
			sum.Follows++
		}
	}

	return sum, nil
}

// ClearAll deletes every user-generated row. Groups are kept.
func (s *Seeder) ClearAll() error {
	if s.dryRun {
		log.Println("[dry-run] ClearAll skipped")
		return nil
	}
	return s.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&models.Comment{}, &models.Follow{}, &models.Post{}, &models.User{}} {
			if err := tx.Delete(model).Error; err != nil {
				return fmt.Errorf("clear %T: %w", model, err)
			}
		}
		return nil
	})
}
