package service

import (
	"context"

	"go.uber.org/zap"

	"task-manager/internal/models"
	"task-manager/internal/permission"
	"task-manager/internal/repository"
	"task-manager/internal/view"
	"task-manager/pkg/logger"
)

type TagService struct {
	store repository.Store
}

func NewTagService(store repository.Store) *TagService {
	return &TagService{store: store}
}

// renderTags loads the tasks of every tag and their users in two queries.
func renderTags(ctx context.Context, q repository.Querier, tags []models.Tag, c view.Contract) ([]view.Object, error) {
	ids := make([]int64, len(tags))
	for i, tag := range tags {
		ids[i] = tag.ID
	}
	byTag, err := q.ListTasksByTags(ctx, ids)
	if err != nil {
		return nil, translate(err, "Task")
	}
	var all []models.Task
	for _, tasks := range byTag {
		all = append(all, tasks...)
	}
	users, err := userIndex(ctx, q, all...)
	if err != nil {
		return nil, translate(err, "User")
	}
	out := make([]view.Object, 0, len(tags))
	for i := range tags {
		out = append(out, view.RenderTag(&tags[i], byTag[tags[i].ID], users, c))
	}
	return out, nil
}

func renderTag(ctx context.Context, q repository.Querier, tag *models.Tag, c view.Contract) (view.Object, error) {
	out, err := renderTags(ctx, q, []models.Tag{*tag}, c)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (s *TagService) List(ctx context.Context, actor *models.User) ([]view.Object, error) {
	if err := authorize(ctx, permission.AuthorizeTag(actor, permission.VerbRead, nil, nil), "tag", permission.VerbRead); err != nil {
		return nil, err
	}
	tags, err := s.store.ListTags(ctx)
	if err != nil {
		return nil, translate(err, "Tag")
	}
	return renderTags(ctx, s.store, tags, view.ResolveTagContract(permission.VerbRead))
}

func (s *TagService) Get(ctx context.Context, actor *models.User, id int64) (view.Object, error) {
	if err := authorize(ctx, permission.AuthorizeTag(actor, permission.VerbRead, nil, nil), "tag", permission.VerbRead); err != nil {
		return nil, err
	}
	tag, err := s.store.GetTag(ctx, id)
	if err != nil {
		return nil, translate(err, "Tag")
	}
	return renderTag(ctx, s.store, tag, view.ResolveTagContract(permission.VerbRead))
}

func (s *TagService) Create(ctx context.Context, actor *models.User, body []byte) (view.Object, error) {
	if err := authorize(ctx, permission.AuthorizeTag(actor, permission.VerbCreate, nil, nil), "tag", permission.VerbCreate); err != nil {
		return nil, err
	}
	c := view.ResolveTagContract(permission.VerbCreate)
	payload, err := view.DecodeTagPayload(body)
	if err != nil {
		return nil, err
	}
	if err := view.CheckRequired(payload.Present, c.Required); err != nil {
		return nil, err
	}

	tag := &models.Tag{Title: *payload.Title}
	if err := s.store.CreateTag(ctx, tag); err != nil {
		return nil, translate(err, "Tag")
	}
	logger.AuditLogger.Info("Tag created", append(logger.Fields(ctx), zap.Int64("tag_id", tag.ID))...)
	return renderTag(ctx, s.store, tag, c)
}

func (s *TagService) Update(ctx context.Context, actor *models.User, id int64, body []byte, full bool) (view.Object, error) {
	if err := authorize(ctx, permission.AuthorizeTag(actor, permission.VerbUpdate, nil, nil), "tag", permission.VerbUpdate); err != nil {
		return nil, err
	}
	c := view.ResolveTagContract(permission.VerbUpdate)
	payload, err := view.DecodeTagPayload(body)
	if err != nil {
		return nil, err
	}
	if err := view.CheckRequired(payload.Present, c.RequiredFor(full)); err != nil {
		return nil, err
	}

	var tag *models.Tag
	err = s.store.InTx(ctx, func(q repository.Querier) error {
		current, err := q.LockTag(ctx, id)
		if err != nil {
			return err
		}
		if payload.Present.Has("title") {
			current.Title = *payload.Title
		}
		if err := q.UpdateTag(ctx, current); err != nil {
			return err
		}
		tag = current
		return nil
	})
	if err != nil {
		return nil, translate(err, "Tag")
	}
	logger.AuditLogger.Info("Tag updated", append(logger.Fields(ctx), zap.Int64("tag_id", id))...)
	return renderTag(ctx, s.store, tag, c)
}

// Delete removes a tag and its task associations. Tasks are kept.
func (s *TagService) Delete(ctx context.Context, actor *models.User, id int64) error {
	if err := authorize(ctx, permission.AuthorizeTag(actor, permission.VerbDelete, nil, nil), "tag", permission.VerbDelete); err != nil {
		return err
	}
	if err := s.store.DeleteTag(ctx, id); err != nil {
		return translate(err, "Tag")
	}
	logger.AuditLogger.Info("Tag deleted", append(logger.Fields(ctx), zap.Int64("tag_id", id))...)
	return nil
}
