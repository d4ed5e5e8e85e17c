package store

import (
	"errors"

	"spinarchive/archive-api/model"

	"gorm.io/gorm"
)

// UserByID fetches the uploader for notification and policy decisions.
func (s *UploadStore) UserByID(id uint) (*model.User, error) {
	var u model.User

	err := s.DB.First(&u, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &u, nil
}
