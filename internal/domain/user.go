package domain

import (
	"strings"
	"time"
)

const (
	RoleAdmin = "Admin"
	RoleUser  = "User"
)

type User struct {
	ID           int64      `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	Email        string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash string     `gorm:"size:255;not null" json:"-"`
	FirstName    string     `gorm:"size:100" json:"first_name"`
	LastName     string     `gorm:"size:100" json:"last_name"`
	Roles        string     `gorm:"size:100;not null" json:"-"` // comma separated role names
	CreatedAt    time.Time  `json:"created_at"`
	LastLoginAt  *time.Time `json:"last_login_at"`
}

// TableName Specify table name
func (User) TableName() string {
	return "users"
}

func (u *User) RoleList() []string {
	var roles []string
	for _, r := range strings.Split(u.Roles, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}

func (u *User) HasRole(role string) bool {
	for _, r := range u.RoleList() {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

func (u *User) SetRoles(roles ...string) {
	u.Roles = strings.Join(roles, ",")
}
