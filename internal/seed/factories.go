package seed

import (
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"yatube/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password every seeded account logs in with.
const DefaultPassword = "yatube-demo-123"

// Options tunes how the factory builds and stores records.
type Options struct {
	// DryRun logs records instead of writing them; ids are still assigned.
	DryRun bool
	// BcryptCost overrides bcrypt.DefaultCost, mainly for tests.
	BcryptCost int
	// MaxDays spreads publication dates over the last MaxDays days.
	MaxDays int
	// Seed makes fake data reproducible when non-zero.
	Seed int64
}

// Factory builds demo records with gofakeit and persists them through gorm.
type Factory struct {
	db     *gorm.DB
	opts   Options
	faker  *gofakeit.Faker
	rng    *rand.Rand
	hash   string
	nextID uint
	users  int
}

// NewFactory returns a factory writing to db.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if opts.MaxDays <= 0 {
		opts.MaxDays = 90
	}
	return &Factory{
		db:    db,
		opts:  opts,
		faker: gofakeit.New(seed),
		// #nosec G404: demo data only
		rng: rand.New(rand.NewSource(seed)),
	}
}

func (f *Factory) passwordHash() (string, error) {
	if f.hash != "" {
		return f.hash, nil
	}
	cost := f.opts.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), cost)
	if err != nil {
		return "", err
	}
	f.hash = string(hashed)
	return f.hash, nil
}

func (f *Factory) assignID() uint {
	f.nextID++
	return f.nextID
}

// CreateUser builds and stores a user with a unique username.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	hashed, err := f.passwordHash()
	if err != nil {
		return nil, err
	}

	f.users++
	first, last := f.faker.FirstName(), f.faker.LastName()
	user := &models.User{
		Username:  fmt.Sprintf("%s_%s%d", usernamePart(first), usernamePart(last), f.users),
		Email:     f.faker.Email(),
		Password:  hashed,
		FirstName: first,
		LastName:  last,
	}
	for _, override := range overrides {
		override(user)
	}

	if f.opts.DryRun {
		user.ID = f.assignID()
		log.Printf("[dry-run] CreateUser: id=%d username=%s", user.ID, user.Username)
		return user, nil
	}
	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// BuildPost returns an unsaved post by author, filed under group when given,
// with a publication date spread over the configured window.
func (f *Factory) BuildPost(author *models.User, group *models.Group) *models.Post {
	post := &models.Post{
		Text:     f.faker.Paragraph(1, 3, 12, "\n"),
		AuthorID: author.ID,
		PubDate:  f.pastTime(),
	}
	if group != nil {
		id := group.ID
		post.GroupID = &id
	}
	return post
}

// CreatePostsBatch stores posts in batches of size.
func (f *Factory) CreatePostsBatch(posts []*models.Post, size int) error {
	if len(posts) == 0 {
		return nil
	}
	if f.opts.DryRun {
		for _, p := range posts {
			p.ID = f.assignID()
		}
		log.Printf("[dry-run] CreatePostsBatch: %d posts", len(posts))
		return nil
	}
	if size <= 0 {
		size = 100
	}
	return f.db.CreateInBatches(posts, size).Error
}

// CreateComment stores a comment by author on post.
func (f *Factory) CreateComment(author *models.User, post *models.Post) (*models.Comment, error) {
	comment := &models.Comment{
		Text:      f.faker.Sentence(10),
		AuthorID:  author.ID,
		PostID:    post.ID,
		CreatedAt: f.after(post.PubDate),
	}
	if f.opts.DryRun {
		comment.ID = f.assignID()
		return comment, nil
	}
	if err := f.db.Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// CreateFollow stores a follow edge. Self follows are skipped.
func (f *Factory) CreateFollow(user, author *models.User) error {
	if user.ID == author.ID {
		return nil
	}
	if f.opts.DryRun {
		return nil
	}
	return f.db.Create(&models.Follow{UserID: user.ID, AuthorID: author.ID}).Error
}

func usernamePart(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return -1
		}
	}, strings.ToLower(name))
}

func (f *Factory) pastTime() time.Time {
	back := time.Duration(f.rng.Int63n(int64(f.opts.MaxDays) * int64(24*time.Hour)))
	return time.Now().Add(-back).Truncate(time.Second)
}

func (f *Factory) after(t time.Time) time.Time {
	gap := time.Since(t)
	if gap <= 0 {
		return t
	}
	return t.Add(time.Duration(f.rng.Int63n(int64(gap)))).Truncate(time.Second)
}
