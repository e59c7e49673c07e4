// Command blogstore manages a blog store database: it creates the schema,
// loads seed fixtures and reports record counts and cache statistics.
//
//	blogstore [-config blogstore.yaml] [-role admin] migrate
//	blogstore [-config blogstore.yaml] seed <fixture.json>
//	blogstore [-config blogstore.yaml] report
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/goliatone/go-blogstore/access"
	"github.com/goliatone/go-blogstore/config"
	"github.com/goliatone/go-blogstore/model"
	"github.com/goliatone/go-blogstore/pkg/di"
	"github.com/goliatone/go-blogstore/repositorycache"
	"github.com/goliatone/go-blogstore/service"
)

var errUsage = errors.New("usage: blogstore [flags] migrate | seed <fixture.json> | report")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "blogstore:", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("blogstore", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	role := fs.String("role", string(access.RoleAdmin), "role of the acting principal")
	userID := fs.Int64("user", 0, "id of the acting principal")
	if err := fs.Parse(args); err != nil {
		return errors.Join(errUsage, err)
	}
	if fs.NArg() == 0 {
		return errUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	principal := &access.Principal{ID: *userID, Role: access.Role(*role)}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "migrate":
		if err := access.Require(principal, access.RoleAdmin); err != nil {
			return err
		}
		// the container creates missing tables on startup
		cfg.Database.Migrate = true
		return withContainer(ctx, cfg, func(c *di.Container) error {
			fmt.Fprintln(out, "schema ready")
			return nil
		})

	case "seed":
		if len(rest) != 1 {
			return errUsage
		}
		if err := access.Require(principal, access.Editors...); err != nil {
			return err
		}
		data, err := readSeed(rest[0])
		if err != nil {
			return err
		}
		return withContainer(ctx, cfg, func(c *di.Container) error {
			res, err := c.Services().Seed(ctx, data)
			if err != nil {
				return err
			}
			return writeJSON(out, res)
		})

	case "report":
		return withContainer(ctx, cfg, func(c *di.Container) error {
			rep, err := buildReport(ctx, c.Services())
			if err != nil {
				return err
			}
			return writeJSON(out, rep)
		})

	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func withContainer(ctx context.Context, cfg config.Config, fn func(*di.Container) error) error {
	c, err := di.NewContainer(ctx, cfg)
	if err != nil {
		return err
	}
	return errors.Join(fn(c), c.Close())
}

func readSeed(path string) (service.SeedData, error) {
	f, err := os.Open(path)
	if err != nil {
		return service.SeedData{}, err
	}
	defer f.Close()
	return service.DecodeSeed(f)
}

type report struct {
	Counts      map[string]int                   `json:"counts"`
	PopularTags []service.TagCount               `json:"popular_tags"`
	Categories  []service.CategoryCount          `json:"categories"`
	Cache       map[string]repositorycache.Stats `json:"cache"`
}

func buildReport(ctx context.Context, svc *service.Services) (*report, error) {
	posts, err := svc.Posts.List(ctx, service.PostFilter{})
	if err != nil {
		return nil, err
	}
	published, err := svc.Posts.ListPublished(ctx)
	if err != nil {
		return nil, err
	}
	tags, err := svc.Tags.List(ctx)
	if err != nil {
		return nil, err
	}
	popular, err := svc.Tags.Popular(ctx, 10)
	if err != nil {
		return nil, err
	}
	categories, err := svc.Categories.WithPostCount(ctx)
	if err != nil {
		return nil, err
	}

	comments := 0
	for _, p := range posts {
		list, err := svc.Comments.ListByPost(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		comments += len(list)
	}

	return &report{
		Counts: map[string]int{
			model.TablePosts:      len(posts),
			"published":           len(published),
			model.TableComments:   comments,
			model.TableTags:       len(tags),
			model.TableCategories: len(categories),
		},
		PopularTags: popular,
		Categories:  categories,
		Cache:       svc.Factory().Stats(),
	}, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
