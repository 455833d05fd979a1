package adminapi

import (
	"net/http"
	"strings"
)

// Client reaches the admin collections through an authenticated http.Client, normally one
// whose transport is the refresh interceptor.
type Client struct {
	Users        *Resource[User, NewUser]
	UserPatches  *Resource[User, UserPatch]
	Universities *Resource[University, University]
	Faculties    *Resource[Faculty, Faculty]
	Professors   *Resource[Professor, Professor]
	Semesters    *Resource[Semester, Semester]
}

func New(baseURL string, httpClient *http.Client) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	return &Client{
		Users:        newResource[User, NewUser](httpClient, baseURL, "users"),
		UserPatches:  newResource[User, UserPatch](httpClient, baseURL, "users"),
		Universities: newResource[University, University](httpClient, baseURL, "universities"),
		Faculties:    newResource[Faculty, Faculty](httpClient, baseURL, "faculties"),
		Professors:   newResource[Professor, Professor](httpClient, baseURL, "professors"),
		Semesters:    newResource[Semester, Semester](httpClient, baseURL, "semesters"),
	}
}
