package service

import (
	"context"
	"testing"

	"yatube/internal/models"
	"yatube/internal/repository"

	"github.com/stretchr/testify/require"
)

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	countFn   func(context.Context, repository.PostFilter) (int64, error)
	listFn    func(context.Context, repository.PostFilter, int, int) ([]*models.Post, error)
	getByIDFn func(context.Context, uint) (*models.Post, error)
	createFn  func(context.Context, *models.Post) error
	updateFn  func(context.Context, *models.Post) error
}

func (s *postRepoStub) Count(ctx context.Context, f repository.PostFilter) (int64, error) {
	return s.countFn(ctx, f)
}
func (s *postRepoStub) List(ctx context.Context, f repository.PostFilter, limit, offset int) ([]*models.Post, error) {
	return s.listFn(ctx, f, limit, offset)
}
func (s *postRepoStub) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) Create(ctx context.Context, p *models.Post) error {
	return s.createFn(ctx, p)
}
func (s *postRepoStub) Update(ctx context.Context, p *models.Post) error {
	return s.updateFn(ctx, p)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		countFn: func(context.Context, repository.PostFilter) (int64, error) { return 0, nil },
		listFn: func(context.Context, repository.PostFilter, int, int) ([]*models.Post, error) {
			return []*models.Post{}, nil
		},
		getByIDFn: func(_ context.Context, id uint) (*models.Post, error) {
			return nil, models.NewNotFoundError("Post", id)
		},
		createFn: func(_ context.Context, p *models.Post) error {
			p.ID = 1
			return nil
		},
		updateFn: func(context.Context, *models.Post) error { return nil },
	}
}

// commentRepoStub is a stub for repository.CommentRepository.
type commentRepoStub struct {
	createFn     func(context.Context, *models.Comment) error
	listByPostFn func(context.Context, uint) ([]*models.Comment, error)
}

func (s *commentRepoStub) Create(ctx context.Context, c *models.Comment) error {
	return s.createFn(ctx, c)
}
func (s *commentRepoStub) ListByPost(ctx context.Context, postID uint) ([]*models.Comment, error) {
	return s.listByPostFn(ctx, postID)
}

func noopCommentRepo() *commentRepoStub {
	return &commentRepoStub{
		createFn:     func(context.Context, *models.Comment) error { return nil },
		listByPostFn: func(context.Context, uint) ([]*models.Comment, error) { return []*models.Comment{}, nil },
	}
}

// groupRepoStub serves a fixed set of groups.
type groupRepoStub struct {
	groups []models.Group
}

func (s *groupRepoStub) GetBySlug(_ context.Context, slug string) (*models.Group, error) {
	for i := range s.groups {
		if s.groups[i].Slug == slug {
			g := s.groups[i]
			return &g, nil
		}
	}
	return nil, models.NewNotFoundError("Group", slug)
}
func (s *groupRepoStub) GetByID(_ context.Context, id uint) (*models.Group, error) {
	for i := range s.groups {
		if s.groups[i].ID == id {
			g := s.groups[i]
			return &g, nil
		}
	}
	return nil, models.NewNotFoundError("Group", id)
}
func (s *groupRepoStub) List(context.Context) ([]models.Group, error) {
	return s.groups, nil
}
func (s *groupRepoStub) Create(_ context.Context, g *models.Group) error {
	g.ID = uint(len(s.groups) + 1)
	s.groups = append(s.groups, *g)
	return nil
}

// userRepoStub is an in-memory repository.UserRepository.
type userRepoStub struct {
	users []*models.User
}

func (s *userRepoStub) GetByID(_ context.Context, id uint) (*models.User, error) {
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, models.NewNotFoundError("User", id)
}
func (s *userRepoStub) GetByUsername(_ context.Context, username string) (*models.User, error) {
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, models.NewNotFoundError("User", username)
}
func (s *userRepoStub) Create(_ context.Context, user *models.User) error {
	for _, u := range s.users {
		if u.Username == user.Username {
			return models.NewConflictError("duplicate")
		}
	}
	user.ID = uint(len(s.users) + 1)
	s.users = append(s.users, user)
	return nil
}

// followRepoStub keeps edges in a set.
type followRepoStub struct {
	edges map[[2]uint]bool
}

func newFollowRepoStub() *followRepoStub {
	return &followRepoStub{edges: map[[2]uint]bool{}}
}

func (s *followRepoStub) Create(_ context.Context, userID, authorID uint) (bool, error) {
	key := [2]uint{userID, authorID}
	if s.edges[key] {
		return false, nil
	}
	s.edges[key] = true
	return true, nil
}
func (s *followRepoStub) Delete(_ context.Context, userID, authorID uint) (int64, error) {
	key := [2]uint{userID, authorID}
	if !s.edges[key] {
		return 0, nil
	}
	delete(s.edges, key)
	return 1, nil
}
func (s *followRepoStub) Exists(_ context.Context, userID, authorID uint) (bool, error) {
	return s.edges[[2]uint{userID, authorID}], nil
}
func (s *followRepoStub) CountFollowers(_ context.Context, authorID uint) (int64, error) {
	var n int64
	for k := range s.edges {
		if k[1] == authorID {
			n++
		}
	}
	return n, nil
}

// imageStoreStub records saves and removals.
type imageStoreStub struct {
	saveFn  func(context.Context, ImageInput) (*StoredImage, error)
	removed []*StoredImage
}

func (s *imageStoreStub) Save(ctx context.Context, in ImageInput) (*StoredImage, error) {
	return s.saveFn(ctx, in)
}
func (s *imageStoreStub) Remove(img *StoredImage) {
	s.removed = append(s.removed, img)
}

func assertValidationError(t *testing.T, err error) map[string]string {
	t.Helper()
	require.Error(t, err)
	require.True(t, models.IsCode(err, models.CodeValidation), "expected VALIDATION_ERROR, got %v", err)
	return models.FieldErrors(err)
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.True(t, models.IsCode(err, code), "expected %s, got %v", code, err)
}
