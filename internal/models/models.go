package models

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"task-manager/internal/workflow"
)

type Role string

const (
	RoleDeveloper Role = "developer"
	RoleManager   Role = "manager"
	RoleAdmin     Role = "admin"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleDeveloper, RoleManager, RoleAdmin:
		return true
	default:
		return false
	}
}

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMiddle Priority = "middle"
	PriorityLow    Priority = "low"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityMiddle, PriorityLow:
		return true
	default:
		return false
	}
}

type User struct {
	ID           int64          `json:"id"`
	Username     string         `json:"username"`
	Name         string         `json:"name"`
	Surname      string         `json:"surname"`
	Email        string         `json:"email"`
	Role         Role           `json:"role"`
	IsStaff      bool           `json:"is_staff"`
	Avatar       sql.NullString `json:"-"`
	PasswordHash string         `json:"-"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Staff reports whether the user has override privileges. Admins are always staff.
func (u *User) Staff() bool {
	return u != nil && (u.IsStaff || u.Role == RoleAdmin)
}

type Tag struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

type Task struct {
	ID          int64          `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Deadline    Date           `json:"deadline"`
	State       workflow.State `json:"state"`
	Priority    Priority       `json:"priority"`
	AuthorID    *int64         `json:"author_id"`
	ExecutorID  *int64         `json:"executor_id"`
	Tags        []Tag          `json:"tags"`
	CreatedAt   time.Time      `json:"created_at"`
	EditedAt    time.Time      `json:"edited_at"`
}

// TagTitles returns the task's tag titles in stored order.
func (t *Task) TagTitles() []string {
	titles := make([]string, 0, len(t.Tags))
	for _, tag := range t.Tags {
		titles = append(titles, tag.Title)
	}
	return titles
}

// TaskFilter narrows task listings. Empty fields are ignored.
type TaskFilter struct {
	State      string
	Tags       []string
	Author     string
	Executor   string
	ExecutorID *int64
}

const DateLayout = "2006-01-02"

var ErrDateFormat = errors.New("date must be in YYYY-MM-DD format")

// Date is a calendar date serialised as YYYY-MM-DD.
type Date struct {
	time.Time
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		d.Time = time.Time{}
		return nil
	}
	s := strings.Trim(string(b), `"`)
	parsed, err := ParseDate(s)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDateFormat, err)
	}
	*d = parsed
	return nil
}

func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		d.Time = time.Time{}
	case time.Time:
		d.Time = time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, time.UTC)
	case string:
		parsed, err := ParseDate(v)
		if err != nil {
			return err
		}
		*d = parsed
	case []byte:
		parsed, err := ParseDate(string(v))
		if err != nil {
			return err
		}
		*d = parsed
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
	return nil
}
