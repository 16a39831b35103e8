package service

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"yatube/internal/cache"
	"yatube/internal/middleware"
	"yatube/internal/models"
	"yatube/internal/observability"
	"yatube/internal/pagination"
	"yatube/internal/repository"
	"yatube/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

// FeedPage is one page of posts, newest first.
type FeedPage struct {
	Posts []*models.Post  `json:"posts"`
	Page  pagination.Page `json:"page"`
}

// GroupFeed is a group with one page of its posts.
type GroupFeed struct {
	Group *models.Group `json:"group"`
	Feed  FeedPage      `json:"feed"`
}

// ProfileView is an author page as seen by a (possibly anonymous) viewer.
type ProfileView struct {
	Author         *models.User `json:"author"`
	PostsCount     int64        `json:"posts_count"`
	FollowersCount int64        `json:"followers_count"`
	Following      bool         `json:"following"`
	Feed           FeedPage     `json:"feed"`
}

// PostDetail is a single post with its comment thread.
type PostDetail struct {
	Post             *models.Post      `json:"post"`
	AuthorPostsCount int64             `json:"author_posts_count"`
	Comments         []*models.Comment `json:"comments"`
	CommentForm      FormDescriptor    `json:"comment_form"`
}

// PostEditor is what the edit endpoint needs to render a prefilled form.
type PostEditor struct {
	Post *models.Post   `json:"-"`
	Form FormDescriptor `json:"form"`
}

type CreatePostInput struct {
	AuthorID uint
	Form     validation.PostForm
	Image    *ImageInput
}

type EditPostInput struct {
	PostID   uint
	EditorID uint
	// Post may carry the row returned by Editable to skip a second lookup.
	Post  *models.Post
	Form  validation.PostForm
	Image *ImageInput
}

// PostServiceDeps wires PostService to storage.
type PostServiceDeps struct {
	Posts    repository.PostRepository
	Groups   repository.GroupRepository
	Users    repository.UserRepository
	Comments repository.CommentRepository
	Follows  repository.FollowRepository
	Images   ImageStore
	PageSize int
	// IndexCacheTTL of zero disables index caching.
	IndexCacheTTL time.Duration
}

type PostService struct {
	posts     repository.PostRepository
	groups    repository.GroupRepository
	users     repository.UserRepository
	comments  repository.CommentRepository
	follows   repository.FollowRepository
	following *FollowService
	images    ImageStore
	pageSize  int
	indexTTL  time.Duration
}

func NewPostService(deps PostServiceDeps) *PostService {
	pageSize := deps.PageSize
	if pageSize <= 0 {
		pageSize = pagination.DefaultPerPage
	}
	return &PostService{
		posts:     deps.Posts,
		groups:    deps.Groups,
		users:     deps.Users,
		comments:  deps.Comments,
		follows:   deps.Follows,
		following: NewFollowService(deps.Users, deps.Follows),
		images:    deps.Images,
		pageSize:  pageSize,
		indexTTL:  deps.IndexCacheTTL,
	}
}

// PageSize is the number of posts per feed page.
func (s *PostService) PageSize() int {
	return s.pageSize
}

// Index returns a page of every post. Pages are cached for the index TTL, so a
// new post can take that long to show up.
func (s *PostService) Index(ctx context.Context, rawPage string) (*FeedPage, error) {
	requested := pagination.Requested(rawPage)
	ctx, span := observability.StartSpan(ctx, "PostService.Index", attribute.Int("page.requested", requested))

	var feed FeedPage
	err := cache.Aside(ctx, cache.IndexPageKey(s.pageSize, requested), &feed, s.indexTTL, func() error {
		page, err := s.feed(ctx, repository.PostFilter{}, requested)
		if err != nil {
			return err
		}
		feed = *page
		return nil
	})
	observability.EndSpan(span, err)
	if err != nil {
		return nil, err
	}
	return &feed, nil
}

// GroupFeed returns a page of the group's posts.
func (s *PostService) GroupFeed(ctx context.Context, slug, rawPage string) (*GroupFeed, error) {
	group, err := s.groups.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	page, err := s.feed(ctx, repository.PostFilter{GroupID: group.ID}, pagination.Requested(rawPage))
	if err != nil {
		return nil, err
	}
	return &GroupFeed{Group: group, Feed: *page}, nil
}

// Profile returns the author's page. Following is only true for an
// authenticated viewer (viewerID != 0) other than the author who follows them.
func (s *PostService) Profile(ctx context.Context, username string, viewerID uint, rawPage string) (*ProfileView, error) {
	author, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	page, err := s.feed(ctx, repository.PostFilter{AuthorID: author.ID}, pagination.Requested(rawPage))
	if err != nil {
		return nil, err
	}

	following, err := s.following.IsFollowing(ctx, viewerID, author.ID)
	if err != nil {
		return nil, err
	}
	followers, err := s.follows.CountFollowers(ctx, author.ID)
	if err != nil {
		return nil, err
	}

	return &ProfileView{
		Author:         author,
		PostsCount:     page.Page.Count,
		FollowersCount: followers,
		Following:      following,
		Feed:           *page,
	}, nil
}

// FollowFeed returns a page of posts by authors the user follows.
func (s *PostService) FollowFeed(ctx context.Context, userID uint, rawPage string) (*FeedPage, error) {
	return s.feed(ctx, repository.PostFilter{FollowerID: userID}, pagination.Requested(rawPage))
}

func (s *PostService) feed(ctx context.Context, filter repository.PostFilter, requested int) (*FeedPage, error) {
	count, err := s.posts.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	page := pagination.Resolve(requested, count, s.pageSize)

	posts := []*models.Post{}
	if page.Len() > 0 {
		posts, err = s.posts.List(ctx, filter, page.Limit(), page.Offset())
		if err != nil {
			return nil, err
		}
	}
	return &FeedPage{Posts: posts, Page: page}, nil
}

// Detail returns the post, its comments oldest first and an empty comment
// form. The post's comment count is the length of that thread.
func (s *PostService) Detail(ctx context.Context, postID uint) (*PostDetail, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	authorPosts, err := s.posts.Count(ctx, repository.PostFilter{AuthorID: post.AuthorID})
	if err != nil {
		return nil, err
	}
	post.CommentsCount = len(comments)

	return &PostDetail{
		Post:             post,
		AuthorPostsCount: authorPosts,
		Comments:         comments,
		CommentForm:      CommentFormDescriptor(nil, nil),
	}, nil
}

// NewPostForm returns the empty create form.
func (s *PostService) NewPostForm(ctx context.Context) (*FormDescriptor, error) {
	return s.PostForm(ctx, nil, nil)
}

// PostForm renders the post form with submitted values and errors.
func (s *PostService) PostForm(ctx context.Context, values, errs map[string]string) (*FormDescriptor, error) {
	groups, err := s.groups.List(ctx)
	if err != nil {
		return nil, err
	}
	form := PostFormDescriptor(groups, values, errs)
	return &form, nil
}

// Create validates and stores a new post owned by in.AuthorID. Nothing is
// written, image included, when any field is invalid.
func (s *PostService) Create(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	ctx, span := observability.StartSpan(ctx, "PostService.Create", attribute.Int64("author.id", int64(in.AuthorID)))
	post, err := s.create(ctx, in)
	observability.EndSpan(span, err)
	return post, err
}

func (s *PostService) create(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if in.AuthorID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}

	groupID, err := s.cleanPostForm(ctx, &in.Form)
	if err != nil {
		return nil, err
	}
	stored, err := s.saveImage(ctx, in.Image)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		Text:     in.Form.Text,
		AuthorID: in.AuthorID,
		GroupID:  groupID,
	}
	if stored != nil {
		post.Image = stored.Path
		post.ImageWebP = stored.WebPPath
	}
	if err := s.posts.Create(ctx, post); err != nil {
		if s.images != nil {
			s.images.Remove(stored)
		}
		return nil, err
	}

	observability.PostsCreated.Inc()
	middleware.Logger.InfoContext(ctx, "post created", slog.Uint64("post_id", uint64(post.ID)))
	return post, nil
}

// Editable loads the post for editing. A caller who is not the author gets
// a FORBIDDEN error.
func (s *PostService) Editable(ctx context.Context, postID, editorID uint) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if err := checkAuthor(post, editorID); err != nil {
		return nil, err
	}
	return post, nil
}

func checkAuthor(post *models.Post, editorID uint) error {
	if post.AuthorID != editorID {
		observability.PostsEdited.WithLabelValues("forbidden").Inc()
		return models.NewForbiddenError("Only the author can edit this post")
	}
	return nil
}

// EditForm returns the edit form prefilled from the post. A caller who is not
// the author gets a FORBIDDEN error.
func (s *PostService) EditForm(ctx context.Context, postID, editorID uint) (*PostEditor, error) {
	post, err := s.Editable(ctx, postID, editorID)
	if err != nil {
		return nil, err
	}

	form, err := s.PostForm(ctx, PostValues(post), nil)
	if err != nil {
		return nil, err
	}
	form.IsEdit = true
	form.PostID = post.ID
	return &PostEditor{Post: post, Form: *form}, nil
}

// Edit updates text, group and, when a new file is uploaded, the image. The
// author and publication date never change.
func (s *PostService) Edit(ctx context.Context, in EditPostInput) (*models.Post, error) {
	post := in.Post
	if post == nil || post.ID != in.PostID {
		var err error
		if post, err = s.posts.GetByID(ctx, in.PostID); err != nil {
			return nil, err
		}
	}
	if err := checkAuthor(post, in.EditorID); err != nil {
		return nil, err
	}

	groupID, err := s.cleanPostForm(ctx, &in.Form)
	if err != nil {
		observability.PostsEdited.WithLabelValues("invalid").Inc()
		return nil, err
	}
	stored, err := s.saveImage(ctx, in.Image)
	if err != nil {
		observability.PostsEdited.WithLabelValues("invalid").Inc()
		return nil, err
	}

	updated := *post
	updated.Text = in.Form.Text
	updated.GroupID = groupID
	if stored != nil {
		updated.Image = stored.Path
		updated.ImageWebP = stored.WebPPath
	}
	if err := s.posts.Update(ctx, &updated); err != nil {
		if s.images != nil {
			s.images.Remove(stored)
		}
		return nil, err
	}

	observability.PostsEdited.WithLabelValues("saved").Inc()
	return &updated, nil
}

// cleanPostForm strips the text, validates it and resolves the selected group.
func (s *PostService) cleanPostForm(ctx context.Context, form *validation.PostForm) (*uint, error) {
	form.Text = strings.TrimSpace(form.Text)
	form.Group = validation.GroupChoice(strings.TrimSpace(string(form.Group)))
	errs := validation.Check(form)
	if errs == nil {
		errs = map[string]string{}
	}

	var groupID *uint
	if form.Group != "" && errs["group"] == "" {
		id, err := strconv.ParseUint(string(form.Group), 10, 64)
		if err != nil {
			errs["group"] = validation.MsgInvalidChoice
		} else if group, err := s.groups.GetByID(ctx, uint(id)); err != nil {
			if !models.IsCode(err, models.CodeNotFound) {
				return nil, err
			}
			errs["group"] = validation.MsgInvalidChoice
		} else {
			groupID = &group.ID
		}
	}

	if len(errs) > 0 {
		return nil, models.NewFormError(errs)
	}
	return groupID, nil
}

func (s *PostService) saveImage(ctx context.Context, in *ImageInput) (*StoredImage, error) {
	if in == nil || s.images == nil {
		return nil, nil
	}
	return s.images.Save(ctx, *in)
}
