package model

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

type tableDef struct {
	model       any
	foreignKeys []string
}

// tables is ordered so that referenced tables are created first.
var tables = []tableDef{
	{model: (*Post)(nil)},
	{model: (*Tag)(nil)},
	{model: (*Category)(nil)},
	{
		model: (*Comment)(nil),
		foreignKeys: []string{
			`("post_id") REFERENCES "posts" ("id")`,
			`("parent_id") REFERENCES "comments" ("id")`,
		},
	},
	{
		model: (*PostTag)(nil),
		foreignKeys: []string{
			`("post_id") REFERENCES "posts" ("id")`,
			`("tag_id") REFERENCES "tags" ("id")`,
		},
	},
	{
		model: (*PostCategory)(nil),
		foreignKeys: []string{
			`("post_id") REFERENCES "posts" ("id")`,
			`("category_id") REFERENCES "categories" ("id")`,
		},
	},
}

type indexDef struct {
	model  any
	name   string
	column string
}

var indexes = []indexDef{
	{model: (*Post)(nil), name: "posts_author_id_idx", column: "author_id"},
	{model: (*Post)(nil), name: "posts_status_idx", column: "status"},
	{model: (*Comment)(nil), name: "comments_post_id_idx", column: "post_id"},
	{model: (*Comment)(nil), name: "comments_parent_id_idx", column: "parent_id"},
	{model: (*PostTag)(nil), name: "posts_tags_tag_id_idx", column: "tag_id"},
	{model: (*PostCategory)(nil), name: "posts_categories_category_id_idx", column: "category_id"},
}

// CreateSchema creates the blog tables and indexes when they are missing.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, def := range tables {
		q := db.NewCreateTable().Model(def.model).IfNotExists()
		for _, fk := range def.foreignKeys {
			q = q.ForeignKey(fk)
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("create table %T: %w", def.model, err)
		}
	}

	for _, idx := range indexes {
		_, err := db.NewCreateIndex().
			Model(idx.model).
			Index(idx.name).
			Column(idx.column).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}
	return nil
}
