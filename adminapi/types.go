package adminapi

import "time"

// Page is one page of an admin list.
type Page[T any] struct {
	Items []T `json:"items"`
	Page  int `json:"page"`
	Total int `json:"total"`
}

// User is a user as the admin screens see it.
type User struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name,omitempty"`
	LastName   string    `json:"last_name,omitempty"`
	DateJoined time.Time `json:"date_joined"`
	LastLogin  time.Time `json:"last_login"`
	Verified   bool      `json:"verified"`
	Blocked    bool      `json:"blocked"`
	IsAdmin    bool      `json:"is_admin"`
}

// NewUser is the create-user form.
type NewUser struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Verified  bool   `json:"verified"`
	IsAdmin   bool   `json:"is_admin"`
}

// UserPatch changes only the fields that are set.
type UserPatch struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Verified  *bool   `json:"verified,omitempty"`
	Blocked   *bool   `json:"blocked,omitempty"`
	IsAdmin   *bool   `json:"is_admin,omitempty"`
}

type University struct {
	ID       string `json:"id,omitempty"`
	NameFa   string `json:"name_fa"`
	NameEn   string `json:"name_en"`
	IsActive bool   `json:"is_active"`
}

type Faculty struct {
	ID           string `json:"id,omitempty"`
	UniversityID string `json:"university_id"`
	NameFa       string `json:"name_fa"`
	NameEn       string `json:"name_en"`
	ShortCode    string `json:"short_code"`
	IsActive     bool   `json:"is_active"`
}

type Professor struct {
	ID           string `json:"id,omitempty"`
	UniversityID string `json:"university_id"`
	Name         string `json:"name"`
}

type Semester struct {
	ID   string `json:"id,omitempty"`
	Year int    `json:"year"`
	Term string `json:"term"`
}
