package view

import (
	"fmt"
	"path/filepath"
	"strings"

	"task-manager/internal/apperror"
)

var avatarExtensions = map[string]bool{".jpeg": true, ".jpg": true, ".png": true}

// ValidateAvatar checks an uploaded avatar's size and extension.
func ValidateAvatar(filename string, size, maxSize int64) error {
	errs := apperror.FieldErrors{}
	if maxSize > 0 && size > maxSize {
		errs.Add("avatar_picture", fmt.Sprintf("File size exceeds the limit of %d bytes.", maxSize))
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !avatarExtensions[ext] {
		errs.Add("avatar_picture", fmt.Sprintf("File extension %q is not allowed. Allowed extensions are: jpeg, jpg, png.", strings.TrimPrefix(ext, ".")))
	}
	if len(errs) > 0 {
		return apperror.Validation(errs)
	}
	return nil
}
