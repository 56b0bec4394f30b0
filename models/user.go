package models

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const bcryptCost = 12

// User is the back-office operator account. Its Id is the actor identity
// stamped onto audit records for every manual action (sends, voids, manual
// payments). Lives in the public schema; one user owns one tenant schema.
type User struct {
	Id          string     `json:"id" gorm:"primaryKey"`
	FirstName   string     `json:"first_name" gorm:"not null"`
	LastName    string     `json:"last_name" gorm:"not null"`
	Password    []byte     `json:"-" gorm:"not null"`
	Email       string     `json:"email" gorm:"unique;not null"`
	SchemaName  string     `json:"-" gorm:"unique;not null"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

func (user *User) BeforeCreate(tx *gorm.DB) (err error) {
	// UUID version 4
	user.Id = uuid.NewString()
	return
}

func (user *User) SetPassword(password string) {
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	user.Password = hashedPassword
}

func (user *User) ComparePassword(password string) error {
	return bcrypt.CompareHashAndPassword(user.Password, []byte(password))
}
