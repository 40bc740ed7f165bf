package models

import "time"

// DefaultProjectName is used when a project has to be created implicitly.
const DefaultProjectName = "Default Project"

// Project groups terminal sessions and console logs.
type Project struct {
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
}
