package service

import (
	"context"
	"database/sql"
	"fmt"
	"mime/multipart"

	"go.uber.org/zap"

	"task-manager/internal/apperror"
	"task-manager/internal/cache"
	"task-manager/internal/models"
	"task-manager/internal/permission"
	"task-manager/internal/repository"
	"task-manager/internal/storage"
	"task-manager/internal/view"
	"task-manager/pkg/logger"
)

// UserInput is a user write body: JSON, or a multipart form when it carries an avatar.
type UserInput struct {
	Body []byte
	Form *multipart.Form
}

func (in UserInput) fields() (permission.FieldSet, error) {
	if in.Form != nil {
		return view.FormFields(in.Form), nil
	}
	return view.PayloadFields(in.Body)
}

func (in UserInput) decode() (*view.UserPayload, error) {
	if in.Form != nil {
		return view.UserPayloadFromForm(in.Form)
	}
	return view.DecodeUserPayload(in.Body)
}

type UserService struct {
	store         repository.Store
	cache         cache.Users
	files         storage.Storage
	maxAvatarSize int64
}

func NewUserService(store repository.Store, users cache.Users, files storage.Storage, maxAvatarSize int64) *UserService {
	if users == nil {
		users = cache.Nop{}
	}
	return &UserService{store: store, cache: users, files: files, maxAvatarSize: maxAvatarSize}
}

// Lookup resolves an authenticated user id, consulting the cache first.
func (s *UserService) Lookup(ctx context.Context, id int64) (*models.User, error) {
	if u, ok := s.cache.Get(ctx, id); ok {
		return u, nil
	}
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, u)
	return u, nil
}

func (s *UserService) List(ctx context.Context, actor *models.User) ([]view.Object, error) {
	if err := authorize(ctx, permission.AuthorizeUser(actor, permission.VerbRead, nil, nil), "user", permission.VerbRead); err != nil {
		return nil, err
	}
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, translate(err, "User")
	}
	return view.RenderUsers(users, view.ResolveUserContract(actor, permission.VerbRead, nil)), nil
}

func (s *UserService) Get(ctx context.Context, actor *models.User, id int64) (view.Object, error) {
	if err := authorize(ctx, permission.AuthorizeUser(actor, permission.VerbRead, nil, nil), "user", permission.VerbRead); err != nil {
		return nil, err
	}
	u, err := s.Lookup(ctx, id)
	if err != nil {
		return nil, translate(err, "User")
	}
	return view.RenderUser(u, view.ResolveUserContract(actor, permission.VerbRead, u)), nil
}

// Create always fails: accounts are provisioned outside the API.
func (s *UserService) Create(ctx context.Context, actor *models.User) error {
	return authorize(ctx, permission.AuthorizeUser(actor, permission.VerbCreate, nil, nil), "user", permission.VerbCreate)
}

// Update applies a PUT (full) or PATCH to user id. Setting role admin also
// grants the staff flag in the same write.
func (s *UserService) Update(ctx context.Context, actor *models.User, id int64, in UserInput, full bool) (view.Object, error) {
	fields, err := in.fields()
	if err != nil {
		return nil, err
	}

	var (
		user      *models.User
		contract  view.Contract
		newAvatar string
		oldAvatar string
	)
	err = s.store.InTx(ctx, func(q repository.Querier) error {
		current, err := q.LockUser(ctx, id)
		if err != nil {
			return err
		}
		if err := authorize(ctx, permission.AuthorizeUser(actor, permission.VerbUpdate, current, fields), "user", permission.VerbUpdate); err != nil {
			return err
		}
		contract = view.ResolveUserContract(actor, permission.VerbUpdate, current)

		payload, err := in.decode()
		if err != nil {
			return err
		}
		if err := view.CheckRequired(payload.Present, contract.RequiredFor(full)); err != nil {
			return err
		}
		if payload.Avatar != nil {
			if err := view.ValidateAvatar(payload.Avatar.Filename, payload.Avatar.Size, s.maxAvatarSize); err != nil {
				return err
			}
		}

		updated := *current
		applyUser(&updated, payload, contract)

		writes := func(field string) bool {
			return payload.Present.Has(field) && contract.Writable.Has(field)
		}
		replaceAvatar := writes("avatar_picture") && payload.Avatar != nil
		clearAvatar := writes("delete_avatar") && payload.DeleteAvatar != nil && *payload.DeleteAvatar
		if writes("avatar_picture") && payload.Avatar == nil {
			clearAvatar = true
		}
		if (replaceAvatar || clearAvatar) && current.Avatar.Valid {
			oldAvatar = current.Avatar.String
		}
		if clearAvatar && !replaceAvatar {
			updated.Avatar = sql.NullString{}
		}
		if replaceAvatar {
			url, name, err := s.saveAvatar(ctx, payload.Avatar)
			if err != nil {
				return err
			}
			newAvatar = name
			updated.Avatar = sql.NullString{String: url, Valid: true}
		}

		if err := q.UpdateUser(ctx, &updated); err != nil {
			return err
		}
		user = &updated
		return nil
	})
	if err != nil {
		if newAvatar != "" {
			s.removeFile(ctx, newAvatar)
		}
		return nil, translate(err, "User")
	}

	s.cache.Invalidate(ctx, id)
	if oldAvatar != "" {
		s.removeFile(ctx, storage.NameFromURL(oldAvatar))
	}
	logger.AuditLogger.Info("User updated", append(logger.Fields(ctx),
		zap.Int64("target_id", id), zap.String("variant", string(contract.Variant)))...)
	return view.RenderUser(user, contract), nil
}

func applyUser(u *models.User, p *view.UserPayload, c view.Contract) {
	set := func(field string) bool {
		return p.Present.Has(field) && c.Writable.Has(field)
	}
	if set("username") {
		u.Username = *p.Username
	}
	if set("name") {
		u.Name = *p.Name
	}
	if set("surname") {
		u.Surname = *p.Surname
	}
	if set("email") {
		u.Email = *p.Email
	}
	if set("role") {
		u.Role = models.Role(*p.Role)
		if u.Role == models.RoleAdmin {
			u.IsStaff = true
		}
	}
}

func (s *UserService) saveAvatar(ctx context.Context, fh *multipart.FileHeader) (url, name string, err error) {
	if s.files == nil {
		return "", "", apperror.Internal("File storage is not configured", nil)
	}
	f, err := fh.Open()
	if err != nil {
		return "", "", fmt.Errorf("opening avatar upload: %w", err)
	}
	defer f.Close()

	name = storage.AvatarName(fh.Filename)
	url, err = s.files.Save(ctx, name, f)
	if err != nil {
		return "", "", err
	}
	return url, name, nil
}

func (s *UserService) removeFile(ctx context.Context, name string) {
	if s.files == nil || name == "" {
		return
	}
	if err := s.files.Delete(ctx, name); err != nil {
		logger.ErrorLogger.Error("Deleting avatar failed", append(logger.Fields(ctx), zap.String("filename", name), zap.Error(err))...)
	}
}

// Delete removes a user; tasks referencing it keep existing with the reference cleared.
func (s *UserService) Delete(ctx context.Context, actor *models.User, id int64) error {
	if err := authorize(ctx, permission.AuthorizeUser(actor, permission.VerbDelete, nil, nil), "user", permission.VerbDelete); err != nil {
		return err
	}
	var avatar string
	err := s.store.InTx(ctx, func(q repository.Querier) error {
		u, err := q.LockUser(ctx, id)
		if err != nil {
			return err
		}
		if u.Avatar.Valid {
			avatar = u.Avatar.String
		}
		return q.DeleteUser(ctx, id)
	})
	if err != nil {
		return translate(err, "User")
	}
	s.cache.Invalidate(ctx, id)
	s.removeFile(ctx, storage.NameFromURL(avatar))
	logger.AuditLogger.Info("User deleted", append(logger.Fields(ctx), zap.Int64("target_id", id))...)
	return nil
}
