package view

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"task-manager/internal/apperror"
	"task-manager/internal/config"
	"task-manager/internal/models"
	"task-manager/internal/permission"
)

// TaskPayload is the decoded body of a task write. Present holds every
// top-level key of the request body, including unknown ones.
type TaskPayload struct {
	Title       *string      `json:"title" validate:"omitnil,min=1,max=255"`
	Description *string      `json:"description" validate:"omitnil,min=1,max=255"`
	Deadline    *models.Date `json:"deadline"`
	Priority    *string      `json:"priority" validate:"omitnil,oneof=high middle low"`
	State       *string      `json:"state" validate:"omitnil,task_state"`
	Executor    *int64       `json:"executor"`
	Tags        []string     `json:"tags" validate:"dive,min=1,max=255"`

	Present permission.FieldSet `json:"-"`
}

type UserPayload struct {
	Username     *string `json:"username" validate:"omitnil,min=1,max=150"`
	Name         *string `json:"name" validate:"omitnil,max=255"`
	Surname      *string `json:"surname" validate:"omitnil,max=255"`
	Email        *string `json:"email" validate:"omitnil,email,max=254"`
	Role         *string `json:"role" validate:"omitnil,oneof=developer manager admin"`
	DeleteAvatar *bool   `json:"delete_avatar"`

	// Avatar is set only for multipart requests carrying a file.
	Avatar  *multipart.FileHeader `json:"-"`
	Present permission.FieldSet   `json:"-"`
}

type TagPayload struct {
	Title   *string             `json:"title" validate:"omitnil,min=1,max=255"`
	Present permission.FieldSet `json:"-"`
}

type CountdownPayload struct {
	Seconds *int `json:"seconds" validate:"required,min=0,max=86400"`
}

// Fields that accept an explicit null.
var nullable = permission.NewFieldSet("executor", "tags", "avatar_picture")

// decodeObject decodes body into dst and returns the set of top-level keys.
func decodeObject(body []byte, dst any) (permission.FieldSet, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return permission.FieldSet{}, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, apperror.ValidationField(apperror.NonField, "Request body must be a JSON object")
	}

	present := permission.FieldSet{}
	errs := apperror.FieldErrors{}
	for k, v := range raw {
		present[k] = struct{}{}
		if string(bytes.TrimSpace(v)) == "null" && !nullable.Has(k) {
			errs.Add(k, "This field may not be null.")
		}
	}
	if len(errs) > 0 {
		return nil, apperror.Validation(errs)
	}

	if err := json.Unmarshal(body, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return nil, apperror.ValidationField(typeErr.Field, fmt.Sprintf("Incorrect type. Expected %s.", typeErr.Type))
		}
		if errors.Is(err, models.ErrDateFormat) {
			return nil, apperror.ValidationField("deadline", models.ErrDateFormat.Error())
		}
		return nil, apperror.ValidationField(apperror.NonField, err.Error())
	}
	return present, nil
}

// PayloadFields returns the top-level keys of a JSON object body without
// validating values, so authorization can run before value validation.
func PayloadFields(body []byte) (permission.FieldSet, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return permission.FieldSet{}, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, apperror.ValidationField(apperror.NonField, "Request body must be a JSON object")
	}
	fields := make(permission.FieldSet, len(raw))
	for k := range raw {
		fields[k] = struct{}{}
	}
	return fields, nil
}

// FormFields returns the keys of a multipart form, files included.
func FormFields(form *multipart.Form) permission.FieldSet {
	fields := permission.FieldSet{}
	if form == nil {
		return fields
	}
	for k, v := range form.Value {
		if len(v) > 0 {
			fields[k] = struct{}{}
		}
	}
	for k, v := range form.File {
		if len(v) > 0 {
			fields[k] = struct{}{}
		}
	}
	return fields
}

func DecodeTaskPayload(body []byte) (*TaskPayload, error) {
	var p TaskPayload
	present, err := decodeObject(body, &p)
	if err != nil {
		return nil, err
	}
	p.Present = present
	if err := validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func DecodeUserPayload(body []byte) (*UserPayload, error) {
	var p struct {
		UserPayload
		AvatarPicture *string `json:"avatar_picture"`
	}
	present, err := decodeObject(body, &p)
	if err != nil {
		return nil, err
	}
	// JSON can only clear the avatar ("" / null); uploads need multipart.
	if p.AvatarPicture != nil && *p.AvatarPicture != "" {
		return nil, apperror.ValidationField("avatar_picture", "The submitted data was not a file.")
	}
	out := p.UserPayload
	out.Present = present
	if err := validate(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UserPayloadFromForm builds a payload from a multipart form.
func UserPayloadFromForm(form *multipart.Form) (*UserPayload, error) {
	p := &UserPayload{Present: permission.FieldSet{}}
	if form == nil {
		return p, nil
	}

	str := func(key string) *string {
		v := form.Value[key][0]
		return &v
	}
	for key, values := range form.Value {
		if len(values) == 0 {
			continue
		}
		p.Present[key] = struct{}{}
		switch key {
		case "username":
			p.Username = str(key)
		case "name":
			p.Name = str(key)
		case "surname":
			p.Surname = str(key)
		case "email":
			p.Email = str(key)
		case "role":
			p.Role = str(key)
		case "delete_avatar":
			b, err := strconv.ParseBool(strings.TrimSpace(values[0]))
			if err != nil {
				return nil, apperror.ValidationField(key, "Must be a valid boolean.")
			}
			p.DeleteAvatar = &b
		case "avatar_picture":
			if values[0] != "" {
				return nil, apperror.ValidationField(key, "The submitted data was not a file.")
			}
		}
	}
	for key, files := range form.File {
		if len(files) == 0 {
			continue
		}
		p.Present[key] = struct{}{}
		if key == "avatar_picture" {
			p.Avatar = files[0]
		}
	}

	if err := validate(p); err != nil {
		return nil, err
	}
	return p, nil
}

func DecodeTagPayload(body []byte) (*TagPayload, error) {
	var p TagPayload
	present, err := decodeObject(body, &p)
	if err != nil {
		return nil, err
	}
	p.Present = present
	if err := validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func DecodeCountdownPayload(body []byte) (*CountdownPayload, error) {
	var p CountdownPayload
	if _, err := decodeObject(body, &p); err != nil {
		return nil, err
	}
	if err := validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CheckRequired reports missing required fields.
func CheckRequired(present, required permission.FieldSet) error {
	errs := apperror.FieldErrors{}
	for _, f := range required.Names() {
		if !present.Has(f) {
			errs.Add(f, "This field is required.")
		}
	}
	if len(errs) > 0 {
		return apperror.Validation(errs)
	}
	return nil
}

func validate(v any) error {
	err := config.Validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.ValidationField(apperror.NonField, err.Error())
	}
	errs := apperror.FieldErrors{}
	for _, fe := range verrs {
		field := fe.Field()
		if i := strings.Index(field, "["); i > 0 {
			field = field[:i]
		}
		errs.Add(field, describe(fe))
	}
	return apperror.Validation(errs)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "min":
		if isNumber(fe.Kind()) {
			return fmt.Sprintf("Ensure this value is greater than or equal to %s.", fe.Param())
		}
		return fmt.Sprintf("Ensure this field has at least %s characters.", fe.Param())
	case "max":
		if isNumber(fe.Kind()) {
			return fmt.Sprintf("Ensure this value is less than or equal to %s.", fe.Param())
		}
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "oneof", "task_state":
		return fmt.Sprintf("%q is not a valid choice.", fmt.Sprint(fe.Value()))
	case "email":
		return "Enter a valid email address."
	default:
		return fmt.Sprintf("Failed on the %q rule.", fe.Tag())
	}
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
