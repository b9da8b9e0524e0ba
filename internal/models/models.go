package models

import (
	"time"
)

// Repository represents a GitHub repository as returned by the API
type Repository struct {
	ID         int64
	Name       string
	FullName   string
	URL        string
	IsPrivate  bool
	IsArchived bool
}

// User represents a GitHub user referenced as an author
type User struct {
	ID    int64
	Login string
	URL   string
}

// PullRequestSummary is the subset of a pull request returned by list endpoints
type PullRequestSummary struct {
	ID     int64
	Number int
	Title  string
	State  string
}

// PullRequest represents the detail view of a pull request, including diff statistics
type PullRequest struct {
	ID           int64
	Number       int
	Title        string
	State        string
	UpdatedAt    *time.Time
	ClosedAt     *time.Time
	MergedAt     *time.Time
	Author       *User
	Additions    int
	Deletions    int
	ChangedFiles int
	Commits      int
}

// Review represents a pull request review
type Review struct {
	ID          int64
	State       string
	SubmittedAt *time.Time
	Author      *User
}

// RateLimitStatus reports when the current rate limit window resets
type RateLimitStatus struct {
	ResetsAt time.Time
}
