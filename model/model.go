// Package model declares the blog entities, their persisted shape and the
// schema descriptions the generic repositories are bound to.
package model

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-blogstore/repository"
)

// PostType classifies a post.
type PostType string

const (
	PostTypeArticle  PostType = "article"
	PostTypeNews     PostType = "news"
	PostTypeTutorial PostType = "tutorial"
	PostTypeReview   PostType = "review"
)

// PostStatus is the publication state of a post.
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPublished PostStatus = "published"
	PostStatusArchived  PostStatus = "archived"
)

// PostTypes lists every valid PostType.
var PostTypes = []any{PostTypeArticle, PostTypeNews, PostTypeTutorial, PostTypeReview}

// PostStatuses lists every valid PostStatus.
var PostStatuses = []any{PostStatusDraft, PostStatusPublished, PostStatusArchived}

// Table names, also used as cache namespaces.
const (
	TablePosts          = "posts"
	TableComments       = "comments"
	TableTags           = "tags"
	TableCategories     = "categories"
	TablePostTags       = "posts_tags"
	TablePostCategories = "posts_categories"
)

// Timestamps is embedded by every entity.
type Timestamps struct {
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

type Post struct {
	bun.BaseModel `bun:"table:posts,alias:post"`

	ID              int64      `bun:"id,pk,autoincrement" json:"id"`
	Title           string     `bun:"title,notnull" json:"title"`
	Content         string     `bun:"content,type:text,notnull" json:"content"`
	Type            PostType   `bun:"type,notnull,default:'article'" json:"type"`
	Status          PostStatus `bun:"status,notnull,default:'draft'" json:"status"`
	PublicationDate *time.Time `bun:"publication_date" json:"publication_date,omitempty"`
	AuthorID        int64      `bun:"author_id,notnull" json:"author_id"`
	Timestamps
}

type Comment struct {
	bun.BaseModel `bun:"table:comments,alias:comment"`

	ID         int64  `bun:"id,pk,autoincrement" json:"id"`
	Content    string `bun:"content,type:text,notnull" json:"content"`
	PostID     int64  `bun:"post_id,notnull" json:"post_id"`
	AuthorID   int64  `bun:"author_id,notnull" json:"author_id"`
	ParentID   *int64 `bun:"parent_id" json:"parent_id,omitempty"`
	IsApproved bool   `bun:"is_approved,notnull,default:true" json:"is_approved"`
	Timestamps
}

type Tag struct {
	bun.BaseModel `bun:"table:tags,alias:tag"`

	ID   int64  `bun:"id,pk,autoincrement" json:"id"`
	Name string `bun:"name,notnull,unique" json:"name"`
	Timestamps
}

type Category struct {
	bun.BaseModel `bun:"table:categories,alias:category"`

	ID          int64   `bun:"id,pk,autoincrement" json:"id"`
	Name        string  `bun:"name,notnull,unique" json:"name"`
	Description *string `bun:"description,type:text" json:"description,omitempty"`
	Timestamps
}

// PostTag is the edge between a post and a tag.
type PostTag struct {
	bun.BaseModel `bun:"table:posts_tags,alias:post_tag"`

	PostID int64 `bun:"post_id,pk" json:"post_id"`
	TagID  int64 `bun:"tag_id,pk" json:"tag_id"`
	Timestamps
}

// PostCategory is the edge between a post and a category.
type PostCategory struct {
	bun.BaseModel `bun:"table:posts_categories,alias:post_category"`

	PostID     int64 `bun:"post_id,pk" json:"post_id"`
	CategoryID int64 `bun:"category_id,pk" json:"category_id"`
	Timestamps
}

var PostSchema = repository.Schema[Post]{
	Name:       TablePosts,
	Columns:    []string{"title", "content", "type", "status", "publication_date", "author_id"},
	Key:        []string{"id"},
	Surrogate:  true,
	Timestamps: true,
	KeyOf:      func(p *Post) repository.Predicate { return repository.Predicate{"id": p.ID} },
}

var CommentSchema = repository.Schema[Comment]{
	Name:       TableComments,
	Columns:    []string{"content", "post_id", "author_id", "parent_id", "is_approved"},
	Key:        []string{"id"},
	Surrogate:  true,
	Timestamps: true,
	KeyOf:      func(c *Comment) repository.Predicate { return repository.Predicate{"id": c.ID} },
}

var TagSchema = repository.Schema[Tag]{
	Name:       TableTags,
	Columns:    []string{"name"},
	Key:        []string{"id"},
	Surrogate:  true,
	Timestamps: true,
	KeyOf:      func(t *Tag) repository.Predicate { return repository.Predicate{"id": t.ID} },
}

var CategorySchema = repository.Schema[Category]{
	Name:       TableCategories,
	Columns:    []string{"name", "description"},
	Key:        []string{"id"},
	Surrogate:  true,
	Timestamps: true,
	KeyOf:      func(c *Category) repository.Predicate { return repository.Predicate{"id": c.ID} },
}

var PostTagSchema = repository.Schema[PostTag]{
	Name:       TablePostTags,
	Columns:    []string{"post_id", "tag_id"},
	Key:        []string{"post_id", "tag_id"},
	Timestamps: true,
	KeyOf: func(e *PostTag) repository.Predicate {
		return repository.Predicate{"post_id": e.PostID, "tag_id": e.TagID}
	},
}

var PostCategorySchema = repository.Schema[PostCategory]{
	Name:       TablePostCategories,
	Columns:    []string{"post_id", "category_id"},
	Key:        []string{"post_id", "category_id"},
	Timestamps: true,
	KeyOf: func(e *PostCategory) repository.Predicate {
		return repository.Predicate{"post_id": e.PostID, "category_id": e.CategoryID}
	},
}
