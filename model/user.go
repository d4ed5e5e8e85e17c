package model

import "time"

// Role is an ordered privilege level. Comparisons rely on the ordering,
// so keep new roles in rank order.
type Role int16

const (
	RoleLimited Role = iota
	RoleMember
	RoleContributor
	RoleModerator
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleLimited:
		return "limited"
	case RoleMember:
		return "member"
	case RoleContributor:
		return "contributor"
	case RoleModerator:
		return "moderator"
	case RoleAdmin:
		return "admin"
	}

	return "unknown"
}

type User struct {
	ID       uint   `gorm:"primaryKey;autoIncrement"`
	Username string `gorm:"uniqueIndex;not null"`
	Role     Role   `gorm:"index"`

	// Uploads allowed per trailing 24 hours. Contributors and up
	// bypass this entirely
	DailyUploadLimit int `gorm:"default:5"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsContributor reports whether the user is exempt from upload quotas.
func (u *User) IsContributor() bool {
	return u.Role >= RoleContributor
}

// IsModerator reports whether the user can delete and approve uploads.
func (u *User) IsModerator() bool {
	return u.Role >= RoleModerator
}

// NeedsApproval reports whether this user's uploads require moderator
// review before publication.
func (u *User) NeedsApproval() bool {
	return u.Role == RoleLimited
}
