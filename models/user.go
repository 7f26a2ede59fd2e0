package models

import (
	"fmt"
	"strings"
	"time"
)

// Role ist die Rolle eines Benutzers.
type Role string

const (
	RoleFaculty Role = "Faculty"
	RoleAdmin   Role = "Admin"
	RoleChair   Role = "Chair"
	RoleDev     Role = "Dev"
)

// Roles listet alle gültigen Rollen.
var Roles = []Role{RoleFaculty, RoleAdmin, RoleChair, RoleDev}

// ParseRole akzeptiert eine Rolle ohne Rücksicht auf Groß-/Kleinschreibung.
func ParseRole(s string) (Role, error) {
	for _, r := range Roles {
		if strings.EqualFold(string(r), strings.TrimSpace(s)) {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// User ist ein Konto, das sich anmelden und Projekte anlegen kann.
type User struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	Username string `json:"username" gorm:"size:128;uniqueIndex;not null"`
	Email    string `json:"email" gorm:"size:64;uniqueIndex;not null"`
	Password string `json:"-" gorm:"size:64;not null"` // bcrypt-Hash
	Role     Role   `json:"role" gorm:"size:8;not null"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (User) TableName() string {
	return "users"
}
