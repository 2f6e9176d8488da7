package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"task-manager/internal/models"
)

const taskColumns = `t.id, t.title, t.description, t.deadline, t.state, t.priority, t.author_id, t.executor_id, t.created_at, t.edited_at`

func scanTask(row rowScanner) (*models.Task, error) {
	t := &models.Task{}
	var author, executor sql.NullInt64
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Deadline, &t.State, &t.Priority,
		&author, &executor, &t.CreatedAt, &t.EditedAt)
	if err != nil {
		return nil, err
	}
	if author.Valid {
		t.AuthorID = &author.Int64
	}
	if executor.Valid {
		t.ExecutorID = &executor.Int64
	}
	t.Tags = []models.Tag{}
	return t, nil
}

func nullID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func (q *queries) getTask(ctx context.Context, suffix string, id int64) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks t WHERE t.id = $1` + suffix
	t, err := scanTask(q.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(err, "get task")
	}
	tasks := []models.Task{*t}
	if err := q.attachTags(ctx, tasks); err != nil {
		return nil, err
	}
	return &tasks[0], nil
}

func (q *queries) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	return q.getTask(ctx, "", id)
}

func (q *queries) LockTask(ctx context.Context, id int64) (*models.Task, error) {
	return q.getTask(ctx, " FOR UPDATE OF t", id)
}

func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// ListTasks returns tasks matching filter ordered by id.
func (q *queries) ListTasks(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.State != "" {
		conds = append(conds, "lower(t.state) = lower("+arg(filter.State)+")")
	}
	if len(filter.Tags) > 0 {
		conds = append(conds, `EXISTS (SELECT 1 FROM task_tags tt JOIN tags g ON g.id = tt.tag_id
			WHERE tt.task_id = t.id AND g.title = ANY(`+arg(pq.Array(filter.Tags))+`))`)
	}
	if filter.Author != "" {
		p := arg(likePattern(filter.Author))
		conds = append(conds, "(a.name ILIKE "+p+" OR a.surname ILIKE "+p+" OR a.email ILIKE "+p+")")
	}
	if filter.Executor != "" {
		p := arg(likePattern(filter.Executor))
		conds = append(conds, "(e.name ILIKE "+p+" OR e.surname ILIKE "+p+" OR e.email ILIKE "+p+")")
	}
	if filter.ExecutorID != nil {
		conds = append(conds, "t.executor_id = "+arg(*filter.ExecutorID))
	}

	query := `SELECT ` + taskColumns + ` FROM tasks t
		LEFT JOIN users a ON a.id = t.author_id
		LEFT JOIN users e ON e.id = t.executor_id`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY t.id"
	return q.listTasks(ctx, query, args...)
}

// prefixScanner scans leading columns into dest before handing the rest to the wrapped scan.
type prefixScanner struct {
	rowScanner
	dest []any
}

func (p prefixScanner) Scan(dest ...any) error {
	return p.rowScanner.Scan(append(p.dest, dest...)...)
}

// ListTasksByTags groups the tasks carrying each tag, ordered by task id.
// Tags without tasks are absent from the result.
func (q *queries) ListTasksByTags(ctx context.Context, tagIDs []int64) (map[int64][]models.Task, error) {
	out := make(map[int64][]models.Task, len(tagIDs))
	if len(tagIDs) == 0 {
		return out, nil
	}
	rows, err := q.db.QueryContext(ctx, `SELECT tt.tag_id, `+taskColumns+` FROM tasks t
		JOIN task_tags tt ON tt.task_id = t.id
		WHERE tt.tag_id = ANY($1)
		ORDER BY tt.tag_id, t.id`, pq.Array(tagIDs))
	if err != nil {
		return nil, fmt.Errorf("list tasks by tags: %w", err)
	}
	defer rows.Close()

	// A task carrying several requested tags is scanned once per tag but tagged once.
	var (
		tasks  []models.Task
		index  = map[int64]int{}
		groups = map[int64][]int64{}
	)
	for rows.Next() {
		var tagID int64
		t, err := scanTask(prefixScanner{rowScanner: rows, dest: []any{&tagID}})
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		if _, ok := index[t.ID]; !ok {
			index[t.ID] = len(tasks)
			tasks = append(tasks, *t)
		}
		groups[tagID] = append(groups[tagID], t.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks by tags: %w", err)
	}
	if err := q.attachTags(ctx, tasks); err != nil {
		return nil, err
	}
	for tagID, ids := range groups {
		for _, id := range ids {
			out[tagID] = append(out[tagID], tasks[index[id]])
		}
	}
	return out, nil
}

func (q *queries) listTasks(ctx context.Context, query string, args ...any) ([]models.Task, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	if err := q.attachTags(ctx, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// attachTags loads the tags of tasks in one query, keeping each task's stored order.
func (q *queries) attachTags(ctx context.Context, tasks []models.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	ids := make([]int64, len(tasks))
	index := make(map[int64]int, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
		index[t.ID] = i
	}

	rows, err := q.db.QueryContext(ctx, `SELECT tt.task_id, g.id, g.title
		FROM task_tags tt JOIN tags g ON g.id = tt.tag_id
		WHERE tt.task_id = ANY($1)
		ORDER BY tt.task_id, tt.position, g.id`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("load task tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var taskID int64
		var tag models.Tag
		if err := rows.Scan(&taskID, &tag.ID, &tag.Title); err != nil {
			return fmt.Errorf("scan task tag: %w", err)
		}
		i := index[taskID]
		tasks[i].Tags = append(tasks[i].Tags, tag)
	}
	return rows.Err()
}

func (q *queries) setTags(ctx context.Context, taskID int64, tags []models.Tag) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM task_tags WHERE task_id = $1`, taskID); err != nil {
		return fmt.Errorf("clear task tags: %w", err)
	}
	for pos, tag := range tags {
		_, err := q.db.ExecContext(ctx,
			`INSERT INTO task_tags (task_id, tag_id, position) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
			taskID, tag.ID, pos)
		if err != nil {
			return fmt.Errorf("insert task tag: %w", err)
		}
	}
	return nil
}

func (q *queries) CreateTask(ctx context.Context, t *models.Task) error {
	query := `INSERT INTO tasks (title, description, deadline, state, priority, author_id, executor_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, edited_at`
	err := q.db.QueryRowContext(ctx, query, t.Title, t.Description, t.Deadline, string(t.State),
		string(t.Priority), nullID(t.AuthorID), nullID(t.ExecutorID)).Scan(&t.ID, &t.CreatedAt, &t.EditedAt)
	if err != nil {
		return mapError(err, "create task")
	}
	return q.setTags(ctx, t.ID, t.Tags)
}

// UpdateTask writes every column of t and replaces its tag list.
func (q *queries) UpdateTask(ctx context.Context, t *models.Task) error {
	query := `UPDATE tasks
		SET title = $1, description = $2, deadline = $3, state = $4, priority = $5,
		    author_id = $6, executor_id = $7, edited_at = CURRENT_TIMESTAMP
		WHERE id = $8
		RETURNING edited_at`
	err := q.db.QueryRowContext(ctx, query, t.Title, t.Description, t.Deadline, string(t.State),
		string(t.Priority), nullID(t.AuthorID), nullID(t.ExecutorID), t.ID).Scan(&t.EditedAt)
	if err != nil {
		return mapError(err, "update task")
	}
	return q.setTags(ctx, t.ID, t.Tags)
}

func (q *queries) DeleteTask(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return affected(res, "delete task")
}
