package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/goliatone/go-blogstore/model"
	"github.com/goliatone/go-blogstore/unitofwork"
)

// SeedData is a blog snapshot loaded by Seed. Posts refer to tags and
// categories by name.
type SeedData struct {
	Tags       []string        `json:"tags"`
	Categories []CategoryInput `json:"categories"`
	Posts      []SeedPost      `json:"posts"`
}

type SeedPost struct {
	PostInput
	Tags       []string      `json:"tags,omitempty"`
	Categories []string      `json:"categories,omitempty"`
	Comments   []SeedComment `json:"comments,omitempty"`
}

type SeedComment struct {
	Content  string        `json:"content"`
	AuthorID int64         `json:"author_id"`
	Replies  []SeedComment `json:"replies,omitempty"`
}

// SeedResult counts the records Seed created.
type SeedResult struct {
	Tags       int `json:"tags"`
	Categories int `json:"categories"`
	Posts      int `json:"posts"`
	Comments   int `json:"comments"`
	Edges      int `json:"edges"`
}

// DecodeSeed reads a JSON SeedData document.
func DecodeSeed(r io.Reader) (SeedData, error) {
	var data SeedData
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&data); err != nil {
		return SeedData{}, fmt.Errorf("decode seed: %w", err)
	}
	return data, nil
}

// Seed loads data in a single scope: either everything is stored or nothing
// is.
func (s *Services) Seed(ctx context.Context, data SeedData) (SeedResult, error) {
	data = data.trimmed()
	for i, p := range data.Posts {
		if err := validate(p.PostInput); err != nil {
			return SeedResult{}, fmt.Errorf("post %d: %w", i, err)
		}
	}
	for i, c := range data.Categories {
		if err := validate(c); err != nil {
			return SeedResult{}, fmt.Errorf("category %d: %w", i, err)
		}
	}

	return unitofwork.Within(ctx, s.factory, func(ctx context.Context, uow *unitofwork.UnitOfWork) (SeedResult, error) {
		var res SeedResult

		tags := make(map[string]int64, len(data.Tags))
		for _, name := range data.Tags {
			if err := validateName(name, 50); err != nil {
				return res, err
			}
			tag, err := createTag(ctx, uow, name)
			if err != nil {
				return res, err
			}
			tags[name] = tag.ID
			res.Tags++
		}

		categories := make(map[string]int64, len(data.Categories))
		for _, in := range data.Categories {
			c, err := createCategory(ctx, uow, in)
			if err != nil {
				return res, err
			}
			categories[in.Name] = c.ID
			res.Categories++
		}

		for _, sp := range data.Posts {
			post, err := createPost(ctx, uow, sp.PostInput)
			if err != nil {
				return res, err
			}
			res.Posts++

			for _, name := range sp.Tags {
				id, ok := tags[name]
				if !ok {
					return res, notFoundName(entityTag, name)
				}
				if _, err := addTag(ctx, uow, post.ID, id); err != nil {
					return res, err
				}
				res.Edges++
			}
			for _, name := range sp.Categories {
				id, ok := categories[name]
				if !ok {
					return res, notFoundName(entityCategory, name)
				}
				if _, err := addCategory(ctx, uow, post.ID, id); err != nil {
					return res, err
				}
				res.Edges++
			}

			n, err := seedComments(ctx, uow, post, nil, sp.Comments)
			if err != nil {
				return res, err
			}
			res.Comments += n
		}
		return res, nil
	})
}

func seedComments(ctx context.Context, uow *unitofwork.UnitOfWork, post *model.Post, parentID *int64, comments []SeedComment) (int, error) {
	total := 0
	for _, sc := range comments {
		in := CommentInput{Content: sc.Content, PostID: post.ID, AuthorID: sc.AuthorID, ParentID: parentID}
		if err := validate(in); err != nil {
			return total, err
		}
		c, err := createComment(ctx, uow, in)
		if err != nil {
			return total, err
		}
		total++

		n, err := seedComments(ctx, uow, post, &c.ID, sc.Replies)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// trimmed returns a copy of d with tag and category names, and the post
// references to them, trimmed the way the services trim them.
func (d SeedData) trimmed() SeedData {
	out := SeedData{
		Tags:       trimAll(d.Tags),
		Categories: make([]CategoryInput, len(d.Categories)),
		Posts:      make([]SeedPost, len(d.Posts)),
	}
	for i, c := range d.Categories {
		c.Name = strings.TrimSpace(c.Name)
		out.Categories[i] = c
	}
	for i, p := range d.Posts {
		p.Tags = trimAll(p.Tags)
		p.Categories = trimAll(p.Categories)
		out.Posts[i] = p
	}
	return out
}

func trimAll(names []string) []string {
	if names == nil {
		return nil
	}
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = strings.TrimSpace(name)
	}
	return out
}
