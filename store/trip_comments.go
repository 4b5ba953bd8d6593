package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jacentio/itinera/kv"
	"github.com/jacentio/itinera/tenant"
)

// AddComment appends a comment to a visible trip.
func (s *Store) AddComment(ctx context.Context, tenantID, id, author, body string) (Comment, error) {
	if err := tenant.ValidateID(id); err != nil {
		return Comment{}, err
	}
	if strings.TrimSpace(body) == "" {
		return Comment{}, fmt.Errorf("%w: empty comment", ErrInvalidDocument)
	}
	p := tenant.For(tenantID)
	if _, err := s.load(ctx, p, id); err != nil {
		return Comment{}, err
	}

	comments, err := s.loadComments(ctx, p, id)
	if err != nil {
		return Comment{}, err
	}
	c := Comment{
		ID:        uuid.NewString(),
		Author:    author,
		Body:      body,
		CreatedAt: s.now().UTC(),
	}
	if err := s.saveComments(ctx, p, id, append(comments, c)); err != nil {
		return Comment{}, err
	}

	s.maintain(ctx, "comment-index-add", p, id, func(ctx context.Context) error {
		return s.comments.Add(ctx, p, id)
	})
	return c, nil
}

// DismissComment marks a comment dismissed. The trip leaves the comment
// index once none of its comments are active.
func (s *Store) DismissComment(ctx context.Context, tenantID, id, commentID string) error {
	if err := tenant.ValidateID(id); err != nil {
		return err
	}
	p := tenant.For(tenantID)
	if _, err := s.load(ctx, p, id); err != nil {
		return err
	}

	comments, err := s.loadComments(ctx, p, id)
	if err != nil {
		return err
	}
	found := false
	for i := range comments {
		if comments[i].ID == commentID {
			comments[i].Dismissed = true
			found = true
		}
	}
	if !found {
		return ErrCommentNotFound
	}
	if err := s.saveComments(ctx, p, id, comments); err != nil {
		return err
	}

	if !hasActive(comments) {
		s.maintain(ctx, "comment-index-remove", p, id, func(ctx context.Context) error {
			return s.comments.Remove(ctx, p, id)
		})
	}
	return nil
}

// Comments returns every comment on a visible trip, dismissed ones included.
func (s *Store) Comments(ctx context.Context, tenantID, id string) ([]Comment, error) {
	if err := tenant.ValidateID(id); err != nil {
		return nil, err
	}
	p := tenant.For(tenantID)
	if _, err := s.load(ctx, p, id); err != nil {
		return nil, err
	}
	return s.loadComments(ctx, p, id)
}

// TripsWithComments returns the visible trips that have an active comment.
// An empty index falls back to scanning every visible trip and repairs the
// index from the result; indexed trips found without an active comment are
// pruned from the index.
func (s *Store) TripsWithComments(ctx context.Context, tenantID string) ([]string, error) {
	p := tenant.For(tenantID)
	indexed, err := s.comments.Get(ctx, p)
	if err != nil {
		return nil, err
	}
	if len(indexed) == 0 {
		return s.scanComments(ctx, p)
	}

	visible, err := s.pending.FilterVisible(ctx, p, indexed)
	if err != nil {
		return nil, err
	}
	var active, stale []string
	for _, id := range visible {
		comments, err := s.loadComments(ctx, p, id)
		if err != nil {
			return nil, err
		}
		if hasActive(comments) {
			active = append(active, id)
		} else {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		s.maintain(ctx, "comment-index-prune", p, "", func(ctx context.Context) error {
			return s.comments.Remove(ctx, p, stale...)
		})
	}
	return active, nil
}

func (s *Store) scanComments(ctx context.Context, p tenant.Prefix) ([]string, error) {
	ids, err := s.visible(ctx, p)
	if err != nil {
		return nil, err
	}
	var active []string
	for _, id := range ids {
		comments, err := s.loadComments(ctx, p, id)
		if err != nil {
			return nil, err
		}
		if hasActive(comments) {
			active = append(active, id)
		}
	}
	if len(active) > 0 {
		s.maintain(ctx, "comment-index-repair", p, "", func(ctx context.Context) error {
			return s.comments.Add(ctx, p, active...)
		})
	}
	return active, nil
}

func (s *Store) loadComments(ctx context.Context, p tenant.Prefix, id string) ([]Comment, error) {
	var comments []Comment
	if _, err := kv.GetJSON(ctx, s.kv, p.Comments(id), &comments); err != nil {
		return nil, fmt.Errorf("load comments %s: %w", id, err)
	}
	return comments, nil
}

func (s *Store) saveComments(ctx context.Context, p tenant.Prefix, id string, comments []Comment) error {
	if err := kv.PutJSON(ctx, s.kv, p.Comments(id), comments, kv.PutOptions{}); err != nil {
		return fmt.Errorf("save comments %s: %w", id, err)
	}
	return nil
}
