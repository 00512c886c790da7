// Command contentctl seeds fixtures into the content store, prints the
// newsletter eligibility set and mints HS256 service tokens.
//
//	contentctl seed -file fixtures.yaml
//	contentctl eligible [-content-type event] [-tag category:news]
//	contentctl token -uid svc-layout [-role admin] [-ttl 1h]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gogotex/newsdesk/internal/config"
	"github.com/gogotex/newsdesk/internal/content"
	"github.com/gogotex/newsdesk/internal/content/repository"
	"github.com/gogotex/newsdesk/internal/content/service"
	"github.com/gogotex/newsdesk/internal/database"
	"github.com/gogotex/newsdesk/internal/tokens"
	"github.com/gogotex/newsdesk/pkg/logger"
)

type tagList []string

func (t *tagList) String() string     { return strings.Join(*t, ",") }
func (t *tagList) Set(v string) error { *t = append(*t, v); return nil }

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))
	if len(os.Args) < 2 {
		usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		die("load config: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	switch os.Args[1] {
	case "seed":
		fs := flag.NewFlagSet("seed", flag.ExitOnError)
		file := fs.String("file", "", "YAML fixture file")
		_ = fs.Parse(os.Args[2:])
		if *file == "" {
			die("seed: -file is required")
		}
		store, repo, closeFn := openRepository(ctx, cfg)
		defer closeFn()
		if err := store.EnsureIndexes(ctx, repo.IndexSpecs()); err != nil {
			logger.Warnf("ensure indexes: %v", err)
		}
		runSeed(ctx, service.New(repo), repo, *file)
	case "eligible":
		fs := flag.NewFlagSet("eligible", flag.ExitOnError)
		ct := fs.String("content-type", "", "only this content type")
		var tags tagList
		fs.Var(&tags, "tag", "required tag (repeatable)")
		_ = fs.Parse(os.Args[2:])
		_, repo, closeFn := openRepository(ctx, cfg)
		defer closeFn()
		runEligible(ctx, service.New(repo), *ct, tags)
	case "token":
		fs := flag.NewFlagSet("token", flag.ExitOnError)
		uid := fs.String("uid", "", "subject of the token")
		name := fs.String("name", "", "display name")
		var roles tagList
		fs.Var(&roles, "role", "role to grant (repeatable)")
		ttl := fs.Duration("ttl", cfg.JWT.AccessTokenTTL, "token lifetime")
		_ = fs.Parse(os.Args[2:])
		if *uid == "" {
			die("token: -uid is required")
		}
		tok, err := tokens.GenerateActorToken(cfg.JWT.Secret, content.Actor{UID: *uid, DisplayName: *name, Roles: roles}, *ttl)
		if err != nil {
			die("token: %v", err)
		}
		fmt.Println(tok)
	default:
		usage()
	}
}

func openRepository(ctx context.Context, cfg *config.Config) (*repository.MongoStore, *repository.Repository, func()) {
	if cfg.MongoDB.URI == "" {
		die("MONGODB_URI is required")
	}
	client, err := database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
	if err != nil {
		die("%v", err)
	}
	store := repository.NewMongoStore(client.Database(cfg.MongoDB.Database))
	repo := repository.New(store, repository.WithCollectionNames(cfg.Content.CanonicalCollection, cfg.Content.LegacyCollection))
	return store, repo, func() { _ = client.Disconnect(context.Background()) }
}

func runSeed(ctx context.Context, svc service.Service, repo *repository.Repository, path string) {
	fh, err := os.Open(path)
	if err != nil {
		die("open fixtures: %v", err)
	}
	defer fh.Close()
	f, err := loadFixtures(fh)
	if err != nil {
		die("%v", err)
	}
	res, err := seed(ctx, svc, repo, f)
	if err != nil {
		die("seed: %v", err)
	}
	fmt.Printf("seeded %d canonical and %d legacy items\n", len(res.Created), len(res.Legacy))
}

func runEligible(ctx context.Context, svc service.Service, contentType string, tags []string) {
	var f *service.EligibilityFilter
	if contentType != "" || len(tags) > 0 {
		f = &service.EligibilityFilter{ContentType: contentType, Tags: tags}
	}
	res, err := svc.EligibleForIssue(ctx, f)
	if err != nil {
		die("eligible: %v", err)
	}
	for _, sf := range res.Failures {
		fmt.Fprintf(os.Stderr, "warning: source %s failed: %v\n", sf.Source, sf.Err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res.Items); err != nil {
		die("encode: %v", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: contentctl seed -file fixtures.yaml | eligible [-content-type T] [-tag T]... | token -uid U [-role R]... [-ttl D]")
	os.Exit(2)
}

func die(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "contentctl: "+format+"\n", args...)
	os.Exit(1)
}
