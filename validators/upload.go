// Package validators checks user-supplied values before they reach the
// upload pipeline.
package validators

import (
	"errors"
	"slices"
	"strings"

	"github.com/spf13/viper"
)

var (
	ErrNoFileName          = errors.New("no file name provided")
	ErrFileNameTooLong     = errors.New("file name is too long")
	ErrFileTypeUnsupported = errors.New("unsupported file type")
	ErrFileSizeInvalid     = errors.New("invalid file size")
	ErrFileTooLarge        = errors.New("file too large")
)

// UploadValidator validates the declared file attributes of a new upload.
// The bytes themselves never pass through this server, clients push them
// straight to object storage, so declared metadata is all there is to check.
func UploadValidator(fileName, fileExt string, fileSize int64) error {
	if strings.TrimSpace(fileName) == "" {
		return ErrNoFileName
	}

	if len(fileName) > viper.GetInt("upload.max_name_length") {
		return ErrFileNameTooLong
	}

	ext := strings.ToLower(strings.TrimPrefix(fileExt, "."))
	if !slices.Contains(viper.GetStringSlice("upload.allowed_exts"), ext) {
		return ErrFileTypeUnsupported
	}

	if fileSize <= 0 {
		return ErrFileSizeInvalid
	}

	if fileSize > viper.GetInt64("upload.max_size") {
		return ErrFileTooLarge
	}

	return nil
}
