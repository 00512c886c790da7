package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gogotex/newsdesk/internal/content"
	"github.com/gogotex/newsdesk/internal/content/repository"
	"github.com/gogotex/newsdesk/internal/content/service"
	"gopkg.in/yaml.v3"
)

// fixtureFile is the YAML layout read by `contentctl seed`.
//
//	actor: {uid: editor-1, name: Editor}
//	content:
//	  - title: Summer fair
//	    description: ...
//	    tags: [content-type:event]
//	    status: published
//	    features:
//	      feat:date: {start: 2026-07-01T10:00:00Z}
//	legacy:
//	  - id: old-1
//	    title: ...
//	    status: approved
type fixtureFile struct {
	Actor   fixtureActor `yaml:"actor"`
	Content []fixture    `yaml:"content"`
	Legacy  []fixture    `yaml:"legacy"`
}

type fixtureActor struct {
	UID   string   `yaml:"uid"`
	Name  string   `yaml:"name"`
	Roles []string `yaml:"roles"`
}

type fixture struct {
	ID          string                 `yaml:"id"`
	Title       string                 `yaml:"title"`
	Description string                 `yaml:"description"`
	Tags        []string               `yaml:"tags"`
	Status      string                 `yaml:"status"`
	Features    map[string]interface{} `yaml:"features"`
	CreatedAt   *time.Time             `yaml:"createdAt"`
}

func loadFixtures(r io.Reader) (*fixtureFile, error) {
	var f fixtureFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	if f.Actor.UID == "" {
		return nil, fmt.Errorf("parse fixtures: actor.uid is required")
	}
	return &f, nil
}

func (fx fixture) features() (content.Features, error) {
	if len(fx.Features) == 0 {
		return nil, nil
	}
	fs := content.Features{}
	for k, payload := range fx.Features {
		f, err := content.DecodeFeature(content.FeatureKey(k), payload)
		if err != nil {
			return nil, err
		}
		fs.Set(f)
	}
	return fs, nil
}

type seedResult struct {
	Created []string
	Legacy  []string
}

// seed runs canonical fixtures through the regular create pipeline and
// writes legacy fixtures straight into the legacy collection, the way old
// submissions exist in production.
func seed(ctx context.Context, svc service.Service, repo *repository.Repository, f *fixtureFile) (seedResult, error) {
	var res seedResult
	actor := content.Actor{UID: f.Actor.UID, DisplayName: f.Actor.Name, Roles: f.Actor.Roles}
	ctx = content.WithActor(ctx, actor)

	for i, fx := range f.Content {
		fs, err := fx.features()
		if err != nil {
			return res, fmt.Errorf("content[%d]: %w", i, err)
		}
		id, err := svc.CreateContent(ctx, service.CreateInput{
			Title:       fx.Title,
			Description: fx.Description,
			Tags:        fx.Tags,
			Features:    fs,
			Status:      content.Status(fx.Status),
		})
		if err != nil {
			return res, fmt.Errorf("content[%d] %q: %w", i, fx.Title, err)
		}
		res.Created = append(res.Created, id)
	}

	for i, fx := range f.Legacy {
		if fx.ID == "" {
			return res, fmt.Errorf("legacy[%d]: id is required", i)
		}
		status, err := content.ParseStatus(fx.Status)
		if err != nil {
			return res, fmt.Errorf("legacy[%d]: %w", i, err)
		}
		fs, err := fx.features()
		if err != nil {
			return res, fmt.Errorf("legacy[%d]: %w", i, err)
		}
		created := time.Now().UTC().Truncate(time.Millisecond)
		if fx.CreatedAt != nil {
			created = fx.CreatedAt.UTC()
		}
		o := &content.Object{
			ID:          fx.ID,
			Title:       fx.Title,
			Description: fx.Description,
			AuthorID:    actor.UID,
			AuthorName:  actor.DisplayName,
			Tags:        fx.Tags,
			Features:    fs,
			Status:      status,
			CreatedAt:   created,
			UpdatedAt:   created,
		}
		if status == content.StatusPublished {
			o.PublishedAt = &created
		}
		if err := repo.Put(ctx, repository.Legacy, o); err != nil {
			return res, fmt.Errorf("legacy[%d] %s: %w", i, fx.ID, err)
		}
		res.Legacy = append(res.Legacy, fx.ID)
	}
	return res, nil
}
