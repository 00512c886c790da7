package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/gogotex/newsdesk/internal/content"
	"github.com/gogotex/newsdesk/internal/content/aggregator"
	"github.com/gogotex/newsdesk/internal/content/cache"
	"github.com/gogotex/newsdesk/internal/content/repository"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

var editor = content.Actor{UID: "u1", DisplayName: "Ada <b>L</b>"}

func actorCtx() context.Context {
	return content.WithActor(context.Background(), editor)
}

func newService(t *testing.T, opts ...Option) (Service, *repository.Repository, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	repo := repository.New(store)
	return New(repo, opts...), repo, store
}

func TestCreateContent_Pipeline(t *testing.T) {
	svc, repo, _ := newService(t)
	ctx := actorCtx()

	id, err := svc.CreateContent(ctx, CreateInput{
		Title:       "<script>alert(1)</script>Hello",
		Description: `<p onclick="x()">Body <a href="javascript:alert(1)">link</a></p>`,
		Tags:        []string{"content-type:article", "<i>category:news</i>"},
	})
	require.NoError(t, err)

	o, err := repo.Get(context.Background(), repository.Canonical, id)
	require.NoError(t, err)
	require.Equal(t, "Hello", o.Title)
	require.NotContains(t, o.Description, "onclick")
	require.NotContains(t, o.Description, "javascript:")
	require.Equal(t, []string{"content-type:article", "category:news"}, o.Tags)
	require.Equal(t, "u1", o.AuthorID)
	require.Equal(t, "Ada L", o.AuthorName)
	require.Equal(t, content.StatusDraft, o.Status)
}

func TestCreateContent_RequiresActor(t *testing.T) {
	svc, _, store := newService(t)
	_, err := svc.CreateContent(context.Background(), CreateInput{Title: "t", Description: "d"})
	var aerr *content.AuthError
	require.True(t, errors.As(err, &aerr))
	require.ErrorIs(t, err, content.ErrNoActor)

	all, err := store.Query(context.Background(), repository.DefaultCanonicalCollection, repository.Query{})
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestCreateContent_ValidationIsBatch(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.CreateContent(actorCtx(), CreateInput{Title: "", Description: "", Tags: []string{"untyped"}})
	var verr *content.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, []string{
		"Title is required",
		"Description is required",
		`Tag "untyped" must use the namespace:value form`,
	}, verr.Errors)

	_, err = svc.CreateContent(actorCtx(), CreateInput{Title: strings.Repeat("A", 201), Description: "d"})
	require.True(t, errors.As(err, &verr))
	require.Equal(t, []string{"Title cannot exceed 200 characters"}, verr.Errors)

	// markup-only titles are empty after sanitizing
	_, err = svc.CreateContent(actorCtx(), CreateInput{Title: "<script>x</script>", Description: "d"})
	require.True(t, errors.As(err, &verr))
	require.Equal(t, []string{"Title is required"}, verr.Errors)

	_, err = svc.CreateContent(actorCtx(), CreateInput{Title: "t", Description: "d", Status: content.StatusApproved})
	require.ErrorIs(t, err, content.ErrInvalidTransition)
}

func TestCreateEvent(t *testing.T) {
	svc, repo, _ := newService(t)
	start := time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)

	_, err := svc.CreateEvent(actorCtx(), EventInput{Title: "Concert", Description: "Live", Start: start, End: &end})
	var verr *content.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, []string{"End time cannot precede start time"}, verr.Errors)

	end = start.Add(2 * time.Hour)
	id, err := svc.CreateEvent(actorCtx(), EventInput{
		Title:       "Concert",
		Description: "Live",
		Start:       start,
		End:         &end,
		Location:    &content.LocationFeature{Address: "<b>Park</b> stage"},
		Tags:        []string{"content-type:announcement", "category:music"},
	})
	require.NoError(t, err)

	o, err := repo.Get(context.Background(), repository.Canonical, id)
	require.NoError(t, err)
	ct, _ := content.ContentType(o)
	require.Equal(t, content.TypeEvent, ct)
	d, ok := content.DateOf(o)
	require.True(t, ok)
	require.True(t, start.Equal(d.Start))
	l, ok := content.LocationOf(o)
	require.True(t, ok)
	require.Equal(t, "Park stage", l.Address)
}

func TestCreateTypedWrappers(t *testing.T) {
	svc, repo, _ := newService(t)
	ctx := actorCtx()

	taskID, err := svc.CreateTask(ctx, TaskInput{Title: "Food drive", Description: "Bring cans", Category: "food", Qty: 40, Unit: "cans"})
	require.NoError(t, err)
	_, err = svc.CreateTask(ctx, TaskInput{Title: "Food drive", Description: "Bring cans", Category: "food", Unit: "cans"})
	require.ErrorContains(t, err, "Task quantity must be greater than zero")

	locID, err := svc.CreateLocationContent(ctx, LocationInput{Title: "New bakery", Description: "Opened", Address: "Main St 1", Geo: &content.GeoPoint{Lat: 1, Lng: 2}})
	require.NoError(t, err)

	canvaID, err := svc.CreateCanvaContent(ctx, CanvaInput{
		Title: "Poster", Description: "Spring poster", DesignID: "DAF1",
		EditURL: "javascript:alert(1)",
	})
	require.Error(t, err)
	require.ErrorContains(t, err, "Canva edit URL is required")
	require.Empty(t, canvaID)

	canvaID, err = svc.CreateCanvaContent(ctx, CanvaInput{
		Title: "Poster", Description: "Spring poster", DesignID: "DAF1",
		EditURL: "https://www.canva.com/design/DAF1/edit?a=1&b=2", ContentType: content.TypeClassified,
	})
	require.NoError(t, err)

	for id, want := range map[string]string{taskID: content.TypeTask, locID: content.TypeArticle, canvaID: content.TypeClassified} {
		o, err := repo.Get(context.Background(), repository.Canonical, id)
		require.NoError(t, err)
		ct, ok := content.ContentType(o)
		require.True(t, ok)
		require.Equal(t, want, ct)
	}
	o, _ := repo.Get(context.Background(), repository.Canonical, canvaID)
	c, _ := content.CanvaOf(o)
	require.Equal(t, "https://www.canva.com/design/DAF1/edit?a=1&b=2", c.EditURL)
}

func TestValidateContentData(t *testing.T) {
	svc, _, _ := newService(t)
	res := svc.ValidateContentData("", "", nil)
	require.False(t, res.IsValid)
	require.Equal(t, []string{"Title is required", "Description is required"}, res.Errors)
}

func TestUpdateContentStatus(t *testing.T) {
	fixed := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	svc, repo, _ := newService(t, WithClock(func() time.Time { return fixed }))
	ctx := actorCtx()
	id, err := svc.CreateContent(ctx, CreateInput{Title: "t", Description: "d"})
	require.NoError(t, err)

	require.NoError(t, svc.Submit(ctx, id))
	require.NoError(t, svc.Approve(ctx, id))
	require.NoError(t, svc.Publish(ctx, id))
	o, err := repo.Get(context.Background(), repository.Canonical, id)
	require.NoError(t, err)
	require.Equal(t, content.StatusPublished, o.Status)
	require.True(t, fixed.Equal(*o.PublishedAt))

	require.ErrorIs(t, svc.Submit(ctx, id), content.ErrInvalidTransition)
	require.ErrorIs(t, svc.UpdateContentStatus(ctx, id, "bogus"), content.ErrInvalidStatus)
	require.ErrorIs(t, svc.UpdateContentStatus(ctx, "missing", content.StatusArchived), content.ErrNotFound)
	require.ErrorIs(t, svc.Archive(context.Background(), id), content.ErrNoActor)

	require.NoError(t, svc.Archive(ctx, id))
	require.NoError(t, svc.Delete(ctx, id))
	o, err = repo.Get(context.Background(), repository.Canonical, id)
	require.NoError(t, err)
	require.Equal(t, content.StatusDeleted, o.Status)
	require.True(t, fixed.Equal(*o.PublishedAt), "publishedAt survives later transitions")
}

func TestUpdateContentStatus_LegacyFallback(t *testing.T) {
	svc, repo, store := newService(t)
	require.NoError(t, store.Put(context.Background(), repository.DefaultLegacyCollection, repository.Document{
		"_id": "L1", "title": "old", "status": "approved", "tags": []string{},
		"submittedAt": time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, svc.Publish(actorCtx(), "L1"))
	o, err := repo.Get(context.Background(), repository.Legacy, "L1")
	require.NoError(t, err)
	require.Equal(t, content.StatusPublished, o.Status)
	require.NotNil(t, o.PublishedAt)
}

func TestUpdateContentTags(t *testing.T) {
	svc, repo, _ := newService(t)
	ctx := actorCtx()
	id, err := svc.CreateContent(ctx, CreateInput{Title: "t", Description: "d", Tags: []string{"category:food"}})
	require.NoError(t, err)

	require.NoError(t, svc.UpdateContentTags(ctx, id, []string{"category:music", "category:music", "featured:front"}))
	o, _ := repo.Get(context.Background(), repository.Canonical, id)
	require.Equal(t, []string{"category:music", "category:music", "featured:front"}, o.Tags)

	err = svc.UpdateContentTags(ctx, id, []string{"bad"})
	var verr *content.ValidationError
	require.True(t, errors.As(err, &verr))

	require.NoError(t, svc.SetNewsletterReady(ctx, id, true))
	require.NoError(t, svc.SetNewsletterReady(ctx, id, true))
	o, _ = repo.Get(context.Background(), repository.Canonical, id)
	require.Equal(t, []string{"category:music", "category:music", "featured:front", "newsletter:ready"}, o.Tags)

	require.NoError(t, svc.SetNewsletterReady(ctx, id, false))
	o, _ = repo.Get(context.Background(), repository.Canonical, id)
	require.False(t, content.HasTag(o, content.TagNewsletterReady))

	require.NoError(t, svc.UpdateContentTags(ctx, id, nil))
	o, _ = repo.Get(context.Background(), repository.Canonical, id)
	require.NotNil(t, o.Tags)
	require.Empty(t, o.Tags)
}

func TestHardDelete_RequiresAdmin(t *testing.T) {
	svc, repo, _ := newService(t)
	id, err := svc.CreateContent(actorCtx(), CreateInput{Title: "t", Description: "d"})
	require.NoError(t, err)

	err = svc.HardDelete(actorCtx(), id)
	require.ErrorIs(t, err, content.ErrInsufficientRole)
	var aerr *content.AuthError
	require.True(t, errors.As(err, &aerr))

	admin := content.WithActor(context.Background(), content.Actor{UID: "root", Roles: []string{content.RoleAdmin}})
	require.NoError(t, svc.HardDelete(admin, id))
	o, err := repo.Get(context.Background(), repository.Canonical, id)
	require.NoError(t, err)
	require.Nil(t, o)
	require.ErrorIs(t, svc.HardDelete(admin, id), content.ErrNotFound)
}

func TestListAndGetContent(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := actorCtx()
	a, err := svc.CreateContent(ctx, CreateInput{Title: "a", Description: "d", Tags: []string{"category:food"}, Status: content.StatusPublished})
	require.NoError(t, err)
	_, err = svc.CreateContent(ctx, CreateInput{Title: "b", Description: "d"})
	require.NoError(t, err)

	list, err := svc.ListContent(context.Background(), ListFilter{Status: content.StatusPublished})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, a, list[0].ID)

	list, err = svc.ListContent(context.Background(), ListFilter{Tag: "category:food", AuthorID: "u1"})
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = svc.ListContent(context.Background(), ListFilter{Status: "nope"})
	require.ErrorIs(t, err, content.ErrInvalidStatus)

	o, err := svc.GetContent(context.Background(), a)
	require.NoError(t, err)
	require.Equal(t, "a", o.Title)
	_, err = svc.GetContent(context.Background(), "missing")
	require.ErrorIs(t, err, content.ErrNotFound)
}

func TestGetEligibleForIssue(t *testing.T) {
	svc, _, store := newService(t)
	ctx := actorCtx()

	readyEvent, err := svc.CreateEvent(ctx, EventInput{
		Title: "Fair", Description: "d", Start: time.Now().Add(24 * time.Hour),
		Tags: []string{content.TagNewsletterReady}, Status: content.StatusPublished,
	})
	require.NoError(t, err)
	_, err = svc.CreateContent(ctx, CreateInput{Title: "not ready", Description: "d", Status: content.StatusPublished})
	require.NoError(t, err)
	readyArticle, err := svc.CreateContent(ctx, CreateInput{Title: "article", Description: "d", Status: content.StatusPublished,
		Tags: []string{"content-type:article", content.TagNewsletterReady}})
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), repository.DefaultLegacyCollection, repository.Document{
		"_id": readyEvent, "title": "legacy copy", "status": "approved", "tags": []string{content.TagNewsletterReady},
		"submittedAt": time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}))

	items, err := svc.GetEligibleForIssue(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, o := range items {
		require.NotEqual(t, "legacy copy", o.Title)
	}

	items, err = svc.GetEligibleForIssue(context.Background(), &EligibilityFilter{ContentType: content.TypeArticle})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, readyArticle, items[0].ID)
}

func TestEligibleForIssue_Cache(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	svc, _, _ := newService(t, WithCache(cache.NewRedisCache(client, time.Minute)))
	ctx := actorCtx()

	items, err := svc.GetEligibleForIssue(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, items)

	// the write invalidates the cached empty set
	id, err := svc.CreateContent(ctx, CreateInput{Title: "t", Description: "d", Status: content.StatusPublished, Tags: []string{content.TagNewsletterReady}})
	require.NoError(t, err)
	items, err = svc.GetEligibleForIssue(ctx, nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, id, items[0].ID)

	require.NoError(t, svc.SetNewsletterReady(ctx, id, false))
	items, err = svc.GetEligibleForIssue(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestEligibleForIssue_WriteDuringAggregationIsNotCachedAsCurrent(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	ctx := actorCtx()

	store := repository.NewMemoryStore()
	repo := repository.New(store)
	var svc Service
	var once sync.Once
	var writtenID string
	canonical := aggregator.CanonicalSource(repo)
	racing := aggregator.Source{Name: aggregator.SourceCanonical, Fetch: func(fctx context.Context) ([]*content.Object, error) {
		items, err := canonical.Fetch(fctx)
		once.Do(func() {
			writtenID, err = svc.CreateContent(ctx, CreateInput{Title: "late", Description: "d", Status: content.StatusPublished, Tags: []string{content.TagNewsletterReady}})
		})
		return items, err
	}}
	svc = New(repo, WithAggregator(aggregator.New(racing)), WithCache(cache.NewRedisCache(client, time.Minute)))

	items, err := svc.GetEligibleForIssue(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, items)
	require.NotEmpty(t, writtenID)

	items, err = svc.GetEligibleForIssue(ctx, nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, writtenID, items[0].ID)
}

type fakeExporter struct {
	mu    sync.Mutex
	issue string
	items []*content.Object
}

func (f *fakeExporter) ExportIssue(_ context.Context, issueID string, items []*content.Object) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issue = issueID
	f.items = items
	return "https://files.example.org/issues/" + issueID + "/eligible.json", nil
}

func TestExportIssue(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.ExportIssue(actorCtx(), "2026-07", nil)
	require.ErrorIs(t, err, ErrExportDisabled)

	exp := &fakeExporter{}
	svc, _, _ = newService(t, WithExporter(exp))
	ctx := actorCtx()
	_, err = svc.CreateContent(ctx, CreateInput{Title: "t", Description: "d", Status: content.StatusPublished, Tags: []string{content.TagNewsletterReady}})
	require.NoError(t, err)

	res, err := svc.ExportIssue(ctx, "2026-07", nil)
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)
	require.False(t, res.Partial)
	require.Contains(t, res.URL, "2026-07")
	require.Equal(t, "2026-07", exp.issue)

	_, err = svc.ExportIssue(ctx, "../etc", nil)
	var verr *content.ValidationError
	require.True(t, errors.As(err, &verr))
	_, err = svc.ExportIssue(context.Background(), "2026-07", nil)
	require.ErrorIs(t, err, content.ErrNoActor)
}

func TestSubscribe(t *testing.T) {
	svc, _, _ := newService(t)
	snaps := make(chan int, 8)
	cancel, err := svc.Subscribe(context.Background(), ListFilter{Status: content.StatusPublished}, func(objs []*content.Object, err error) {
		if err == nil {
			snaps <- len(objs)
		}
	})
	require.NoError(t, err)
	defer cancel()

	require.Equal(t, 0, <-snaps)
	_, err = svc.CreateContent(actorCtx(), CreateInput{Title: "t", Description: "d", Status: content.StatusPublished})
	require.NoError(t, err)
	select {
	case n := <-snaps:
		require.Equal(t, 1, n)
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot after write")
	}
}

func TestValidateContentData_AgreesWithCreate(t *testing.T) {
	svc, _, _ := newService(t)
	res := svc.ValidateContentData("<b></b>", "d", nil)
	require.False(t, res.IsValid)
	require.Equal(t, []string{"Title is required"}, res.Errors)

	_, err := svc.CreateContent(actorCtx(), CreateInput{Title: "<b></b>", Description: "d"})
	var verr *content.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, res.Errors, verr.Errors)

	res = svc.ValidateContentData(strings.Repeat("A", 180)+strings.Repeat("'", 5), "d", nil)
	require.True(t, res.IsValid, res.Errors)
}

func TestCreateContent_StoresPlainText(t *testing.T) {
	svc, repo, _ := newService(t)
	ctx := actorCtx()

	title := strings.Repeat("A", 180) + strings.Repeat("'", 5)
	id, err := svc.CreateContent(ctx, CreateInput{
		Title:       title,
		Description: "d",
		Tags:        []string{"category:arts & crafts"},
	})
	require.NoError(t, err)
	o, err := repo.Get(context.Background(), repository.Canonical, id)
	require.NoError(t, err)
	require.Equal(t, title, o.Title)
	require.True(t, content.HasTag(o, "category:arts & crafts"))

	quoted := strings.Repeat("Q", 190) + `"a&b"`
	id, err = svc.CreateContent(ctx, CreateInput{Title: quoted, Description: "d"})
	require.NoError(t, err)
	o, _ = repo.Get(context.Background(), repository.Canonical, id)
	require.Equal(t, quoted, o.Title)

	id, err = svc.CreateContent(ctx, CreateInput{Title: `Bob's "Fish & Chips" night`, Description: "d"})
	require.NoError(t, err)
	o, _ = repo.Get(context.Background(), repository.Canonical, id)
	require.Equal(t, `Bob's "Fish & Chips" night`, o.Title)
}

func TestCreateContent_ContentType(t *testing.T) {
	svc, repo, _ := newService(t)
	ctx := actorCtx()
	get := func(id string) *content.Object {
		o, err := repo.Get(context.Background(), repository.Canonical, id)
		require.NoError(t, err)
		return o
	}

	id, err := svc.CreateContent(ctx, CreateInput{Title: "t", Description: "d", ContentType: content.TypeClassified, Tags: []string{"category:sale"}})
	require.NoError(t, err)
	require.Equal(t, []string{"content-type:classified", "category:sale"}, get(id).Tags)

	// explicit type wins over a supplied tag
	id, err = svc.CreateContent(ctx, CreateInput{Title: "t", Description: "d", ContentType: content.TypeEvent, Tags: []string{"content-type:article"}})
	require.NoError(t, err)
	ct, ok := content.ContentType(get(id))
	require.True(t, ok)
	require.Equal(t, content.TypeEvent, ct)

	// a supplied tag is kept when no type is given
	id, err = svc.CreateContent(ctx, CreateInput{Title: "t", Description: "d", Tags: []string{"category:x", "content-type:announcement"}})
	require.NoError(t, err)
	require.Equal(t, []string{"content-type:announcement", "category:x"}, get(id).Tags)

	id, err = svc.CreateContent(ctx, CreateInput{Title: "t", Description: "d"})
	require.NoError(t, err)
	require.Equal(t, []string{"content-type:article"}, get(id).Tags)
}
