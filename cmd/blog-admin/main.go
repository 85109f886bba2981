// Package main is the entry point for the Inkwell admin CLI.
// It works directly on the configured store: soft-delete housekeeping and role changes.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"github.com/prn-tf/inkwell/internal/config"
	"github.com/prn-tf/inkwell/internal/domain"
	"github.com/prn-tf/inkwell/internal/pkg/logger"
	"github.com/prn-tf/inkwell/internal/query"
	"github.com/prn-tf/inkwell/internal/repository"
	"github.com/prn-tf/inkwell/internal/schema"
	"github.com/prn-tf/inkwell/internal/service"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	fs := flag.NewFlagSet(command, flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	_ = fs.Parse(os.Args[2:])
	args := fs.Args()

	switch command {
	case "version":
		fmt.Printf("Inkwell Admin CLI\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)
		return

	case "help", "-h", "--help":
		printUsage()
		return

	case "list-deleted", "restore", "purge", "promote", "deactivate":
		if err := run(*configPath, command, args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func run(configPath, command string, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Logging)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	result, err := repository.NewFactory(cfg, log).Create(ctx)
	if err != nil {
		return err
	}
	defer result.Driver.Close()
	repos := result.Repos

	switch command {
	case "list-deleted":
		if len(args) != 1 {
			return fmt.Errorf("usage: list-deleted <entity>")
		}
		return forEntity(repos, args[0], entityOps{
			list: func(r lister) error { return listDeleted(ctx, r) },
		})

	case "restore", "purge":
		if len(args) != 2 {
			return fmt.Errorf("usage: %s <entity> <id>", command)
		}
		id := domain.ID(args[1])
		var apply func(context.Context, domain.ID) (bool, error)
		if args[0] == "posts" {
			// posts go through the service so category postCount follows
			posts := service.NewPostService(repos.Post, repos.Category, nil, log)
			apply = posts.Restore
			if command == "purge" {
				apply = posts.Purge
			}
		} else if err := forEntity(repos, args[0], entityOps{
			mutate: func(m mutator) error {
				apply = m.RestoreOneByID
				if command == "purge" {
					apply = m.DeleteOneByID
				}
				return nil
			},
		}); err != nil {
			return err
		}

		changed, err := apply(ctx, id)
		if err != nil {
			return err
		}
		if !changed {
			return fmt.Errorf("%s %s: nothing to %s", args[0], id, command)
		}
		fmt.Printf("%s %s: %sd\n", args[0], id, command)
		return nil

	case "promote":
		if len(args) != 2 {
			return fmt.Errorf("usage: promote <email> <USER|AUTHOR|ADMIN>")
		}
		user, err := repos.User.FindByEmail(ctx, args[0])
		if err != nil {
			return err
		}
		user, err = repos.User.SetRole(ctx, user.ID, domain.Role(args[1]))
		if err != nil {
			return err
		}
		fmt.Printf("%s is now %s\n", user.Email, user.Role)
		return nil

	case "deactivate":
		if len(args) != 1 {
			return fmt.Errorf("usage: deactivate <email>")
		}
		user, err := repos.User.FindByEmail(ctx, args[0])
		if err != nil {
			return err
		}
		if _, err := repos.User.Deactivate(ctx, user.ID); err != nil {
			return err
		}
		fmt.Printf("%s deactivated\n", user.Email)
		return nil
	}
	return nil
}

// =============================================================================
// Entity dispatch
// =============================================================================

type lister interface {
	Spec() *schema.Spec
	listDeleted(ctx context.Context) ([]any, error)
}

type mutator interface {
	RestoreOneByID(ctx context.Context, id domain.ID) (bool, error)
	DeleteOneByID(ctx context.Context, id domain.ID) (bool, error)
}

type entityOps struct {
	list   func(lister) error
	mutate func(mutator) error
}

// adapter exposes any repository through the untyped admin operations.
type adapter[T any] struct {
	repository.Repository[T]
}

func (a adapter[T]) listDeleted(ctx context.Context) ([]any, error) {
	items, err := a.ListAll(ctx, query.Exists{Field: schema.FieldDeletedAt, Present: true}, query.WithDeleted())
	if err != nil {
		return nil, err
	}
	out := make([]any, len(items))
	for i, item := range items {
		if u, ok := any(item).(*domain.User); ok {
			redacted := *u
			redacted.PasswordHash = ""
			out[i] = &redacted
			continue
		}
		out[i] = item
	}
	return out, nil
}

func forEntity(repos *repository.Repositories, name string, ops entityOps) error {
	var (
		l lister
		m mutator
	)
	switch name {
	case "users":
		l, m = adapter[domain.User]{repos.User}, repos.User
	case "categories":
		l, m = adapter[domain.Category]{repos.Category}, repos.Category
	case "posts":
		l, m = adapter[domain.Post]{repos.Post}, repos.Post
	case "comments":
		l, m = adapter[domain.Comment]{repos.Comment}, repos.Comment
	case "likes":
		l, m = adapter[domain.Like]{repos.Like}, repos.Like
	default:
		return fmt.Errorf("unknown entity %q (users, categories, posts, comments, likes)", name)
	}
	if ops.list != nil {
		return ops.list(l)
	}
	return ops.mutate(m)
}

func listDeleted(ctx context.Context, l lister) error {
	items, err := l.listDeleted(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer tw.Flush()
	fmt.Fprintf(tw, "ID\tDELETED AT\tDOCUMENT\n")
	for _, item := range items {
		raw, err := json.Marshal(item)
		if err != nil {
			return err
		}
		var head struct {
			ID        string     `json:"id"`
			DeletedAt *time.Time `json:"deletedAt"`
		}
		_ = json.Unmarshal(raw, &head)
		deleted := ""
		if head.DeletedAt != nil {
			deleted = head.DeletedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", head.ID, deleted, truncate(string(raw), 80))
	}
	fmt.Fprintf(tw, "\n%d deleted %s\n", len(items), l.Spec().Collection())
	return nil
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-3]) + "..."
}

func printUsage() {
	fmt.Println(`Inkwell Admin CLI

Usage:
  blog-admin <command> [-config path] [arguments]

Commands:
  list-deleted <entity>        List soft-deleted rows (users, categories, posts, comments, likes)
  restore <entity> <id>        Clear the deleted mark of a row
  purge <entity> <id>          Remove a row permanently
                               (for posts, both keep category postCount in step)
  promote <email> <role>       Set a user's role (USER, AUTHOR, ADMIN)
  deactivate <email>           Disable a user account
  version                      Print version information
  help                         Show this help message

Examples:
  blog-admin list-deleted posts
  blog-admin restore posts 3f0c9a2e-8d7b-4a51-9c0e-2b6f1d4e7a90
  blog-admin promote ada@example.com AUTHOR`)
}
