package models

import "time"

// Cross links a local user to a Jira issue they created. One row is written
// per successful creation; rows are never updated or deleted, so "my
// tickets" can be answered without trusting the tracker's reporter field.
type Cross struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Code      string    `json:"code"` // issue key, e.g. "WEB-123"
	CreatedAt time.Time `json:"createdAt"`
}
