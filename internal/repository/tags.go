package repository

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"task-manager/internal/models"
)

func (q *queries) getTag(ctx context.Context, suffix string, id int64) (*models.Tag, error) {
	tag := &models.Tag{}
	err := q.db.QueryRowContext(ctx, `SELECT id, title FROM tags WHERE id = $1`+suffix, id).
		Scan(&tag.ID, &tag.Title)
	if err != nil {
		return nil, mapError(err, "get tag")
	}
	return tag, nil
}

func (q *queries) GetTag(ctx context.Context, id int64) (*models.Tag, error) {
	return q.getTag(ctx, "", id)
}

func (q *queries) LockTag(ctx context.Context, id int64) (*models.Tag, error) {
	return q.getTag(ctx, " FOR UPDATE", id)
}

func (q *queries) listTags(ctx context.Context, query string, args ...any) ([]models.Tag, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	tags := []models.Tag{}
	for rows.Next() {
		var tag models.Tag
		if err := rows.Scan(&tag.ID, &tag.Title); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

func (q *queries) ListTags(ctx context.Context) ([]models.Tag, error) {
	return q.listTags(ctx, `SELECT id, title FROM tags ORDER BY id`)
}

func (q *queries) ListTagsByTitle(ctx context.Context, titles []string) ([]models.Tag, error) {
	if len(titles) == 0 {
		return []models.Tag{}, nil
	}
	return q.listTags(ctx, `SELECT DISTINCT ON (title) id, title FROM tags
		WHERE title = ANY($1)
		ORDER BY title, id`, pq.Array(titles))
}

func (q *queries) CreateTag(ctx context.Context, tag *models.Tag) error {
	err := q.db.QueryRowContext(ctx, `INSERT INTO tags (title) VALUES ($1) RETURNING id`, tag.Title).Scan(&tag.ID)
	if err != nil {
		return mapError(err, "create tag")
	}
	return nil
}

func (q *queries) UpdateTag(ctx context.Context, tag *models.Tag) error {
	res, err := q.db.ExecContext(ctx, `UPDATE tags SET title = $1 WHERE id = $2`, tag.Title, tag.ID)
	if err != nil {
		return mapError(err, "update tag")
	}
	return affected(res, "update tag")
}

func (q *queries) DeleteTag(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM tags WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	return affected(res, "delete tag")
}
