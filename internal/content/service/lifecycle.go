package service

import (
	"context"
	"fmt"

	"github.com/gogotex/newsdesk/internal/content"
	"github.com/gogotex/newsdesk/internal/content/repository"
	"github.com/gogotex/newsdesk/internal/content/sanitize"
	"github.com/gogotex/newsdesk/internal/content/validate"
	"github.com/gogotex/newsdesk/pkg/logger"
)

// UpdateContentStatus moves the object through its lifecycle. Canonical
// content is looked up first; legacy submissions are updated in place.
func (s *contentService) UpdateContentStatus(ctx context.Context, id string, status content.Status) error {
	err := s.updateStatus(ctx, id, status)
	record("status", err)
	return err
}

func (s *contentService) updateStatus(ctx context.Context, id string, status content.Status) error {
	actor, err := content.RequireActor(ctx)
	if err != nil {
		return err
	}
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", content.ErrInvalidStatus, status)
	}
	coll, o, err := s.locate(ctx, id)
	if err != nil {
		return err
	}
	from, published := o.Status, o.PublishedAt != nil
	if err := content.ApplyStatus(o, status, s.now().UTC()); err != nil {
		return err
	}
	p := repository.Patch{Status: &o.Status}
	if !published {
		p.PublishedAt = o.PublishedAt
	}
	if err := s.repo.Update(ctx, coll, id, p); err != nil {
		return err
	}
	logger.Infof("content %s: %s -> %s by %s", id, from, status, actor.UID)
	s.invalidate(ctx)
	return nil
}

func (s *contentService) Submit(ctx context.Context, id string) error {
	return s.UpdateContentStatus(ctx, id, content.StatusSubmitted)
}

func (s *contentService) Approve(ctx context.Context, id string) error {
	return s.UpdateContentStatus(ctx, id, content.StatusApproved)
}

func (s *contentService) Reject(ctx context.Context, id string) error {
	return s.UpdateContentStatus(ctx, id, content.StatusRejected)
}

func (s *contentService) Publish(ctx context.Context, id string) error {
	return s.UpdateContentStatus(ctx, id, content.StatusPublished)
}

func (s *contentService) Archive(ctx context.Context, id string) error {
	return s.UpdateContentStatus(ctx, id, content.StatusArchived)
}

// Delete is the soft delete: the object stays stored with status deleted.
func (s *contentService) Delete(ctx context.Context, id string) error {
	return s.UpdateContentStatus(ctx, id, content.StatusDeleted)
}

// UpdateContentTags replaces the tag list. Order and duplicates are kept.
func (s *contentService) UpdateContentTags(ctx context.Context, id string, tags []string) error {
	err := s.updateTags(ctx, id, func([]string) []string { return tags })
	record("tags", err)
	return err
}

// SetNewsletterReady adds or removes the newsletter:ready tag.
func (s *contentService) SetNewsletterReady(ctx context.Context, id string, ready bool) error {
	err := s.updateTags(ctx, id, func(cur []string) []string {
		if ready {
			return content.WithTag(cur, content.TagNewsletterReady)
		}
		return content.WithoutTag(cur, content.TagNewsletterReady)
	})
	record("tags", err)
	return err
}

func (s *contentService) updateTags(ctx context.Context, id string, change func([]string) []string) error {
	actor, err := content.RequireActor(ctx)
	if err != nil {
		return err
	}
	coll, o, err := s.locate(ctx, id)
	if err != nil {
		return err
	}
	if o.Status == content.StatusDeleted {
		return fmt.Errorf("%w: content %s is deleted", content.ErrInvalidTransition, id)
	}
	tags := s.sanitizer.SanitizeAll(change(o.Tags), sanitize.Metadata)
	if tags == nil {
		tags = []string{}
	}
	if errs := validate.ValidateTags(tags); len(errs) > 0 {
		return &content.ValidationError{Errors: errs}
	}
	if err := s.repo.Update(ctx, coll, id, repository.Patch{Tags: tags}); err != nil {
		return err
	}
	logger.Infof("content %s: tags updated by %s", id, actor.UID)
	s.invalidate(ctx)
	return nil
}

// HardDelete physically removes an object. Only admins may do this.
func (s *contentService) HardDelete(ctx context.Context, id string) error {
	err := s.hardDelete(ctx, id)
	record("hard_delete", err)
	return err
}

func (s *contentService) hardDelete(ctx context.Context, id string) error {
	actor, err := content.RequireActor(ctx)
	if err != nil {
		return err
	}
	if !actor.HasRole(content.RoleAdmin) {
		return &content.AuthError{Reason: fmt.Errorf("%w: hard delete requires %s", content.ErrInsufficientRole, content.RoleAdmin)}
	}
	coll, _, err := s.locate(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.HardDelete(ctx, coll, id); err != nil {
		return err
	}
	logger.Warnf("content %s hard deleted from %s by %s", id, coll, actor.UID)
	s.invalidate(ctx)
	return nil
}
