package db

import "time"

// Repository is the stored row for a GitHub repository
type Repository struct {
	ID         int64  `gorm:"primaryKey"`
	RemoteID   int64  `gorm:"not null;uniqueIndex"`
	Name       string `gorm:"not null"`
	FullName   string `gorm:"not null;uniqueIndex"`
	URL        string
	IsPrivate  bool `gorm:"not null;default:false"`
	IsArchived bool `gorm:"not null;default:false"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName specifies the table name for GORM
func (Repository) TableName() string { return "repositories" }

// User is the stored row for a GitHub user seen as an author
type User struct {
	ID        int64  `gorm:"primaryKey"`
	RemoteID  int64  `gorm:"not null;uniqueIndex"`
	Login     string `gorm:"not null;uniqueIndex"`
	URL       string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName specifies the table name for GORM
func (User) TableName() string { return "users" }

// PullRequest is the stored row for a pull request
type PullRequest struct {
	ID              int64       `gorm:"primaryKey"`
	RemoteID        int64       `gorm:"not null;uniqueIndex"`
	RepositoryID    int64       `gorm:"not null;uniqueIndex:idx_pull_requests_repository_number"`
	Repository      *Repository `gorm:"constraint:OnDelete:CASCADE"`
	Number          int         `gorm:"not null;uniqueIndex:idx_pull_requests_repository_number"`
	Title           string      `gorm:"not null"`
	State           string      `gorm:"not null"`
	UpdatedAtRemote *time.Time
	ClosedAt        *time.Time
	MergedAt        *time.Time
	AuthorID        *int64 `gorm:"index"`
	Author          *User  `gorm:"constraint:OnDelete:SET NULL"`
	Additions       int    `gorm:"not null;default:0"`
	Deletions       int    `gorm:"not null;default:0"`
	ChangedFiles    int    `gorm:"not null;default:0"`
	CommitsCount    int    `gorm:"not null;default:0"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName specifies the table name for GORM
func (PullRequest) TableName() string { return "pull_requests" }

// Review is the stored row for a pull request review
type Review struct {
	ID            int64        `gorm:"primaryKey"`
	RemoteID      int64        `gorm:"not null;uniqueIndex"`
	PullRequestID int64        `gorm:"not null;index"`
	PullRequest   *PullRequest `gorm:"constraint:OnDelete:CASCADE"`
	AuthorID      *int64       `gorm:"index"`
	Author        *User        `gorm:"constraint:OnDelete:SET NULL"`
	State         string       `gorm:"not null"`
	SubmittedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName specifies the table name for GORM
func (Review) TableName() string { return "reviews" }

// Counts holds the number of stored rows per table
type Counts struct {
	Repositories int64
	Users        int64
	PullRequests int64
	Reviews      int64
}
