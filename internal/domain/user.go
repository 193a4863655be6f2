// Package domain contains persistent entities and shared value types.
package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	MinPasswordLen = 6
	MaxFullNameLen = 72
)

var (
	ErrFullNameEmpty   = errors.New("full name empty")
	ErrFullNameTooLong = errors.New("full name too long")
)

type User struct {
	ID         string    `gorm:"primarykey;size:36" json:"id"`
	Email      string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	FullName   string    `gorm:"size:72;not null" json:"fullName"`
	Password   string    `gorm:"size:60;not null" json:"-"`
	ProfilePic string    `json:"profilePic"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (User) TableName() string { return "users" }

// NewUser validates profile fields and assigns an ID. The password must
// already be hashed by the caller.
func NewUser(email, fullName, passwordHash string) (*User, error) {
	if fullName == "" {
		return nil, ErrFullNameEmpty
	}
	if len(fullName) > MaxFullNameLen {
		return nil, ErrFullNameTooLong
	}
	return &User{
		ID:       uuid.NewString(),
		Email:    email,
		FullName: fullName,
		Password: passwordHash,
	}, nil
}
