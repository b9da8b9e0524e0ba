package db

import (
	"context"
	"fmt"

	"github.com/wesm/github-review-sync/internal/models"
)

// PersistenceError is returned when a row cannot be written. It is never retried:
// it points at a modelling problem such as a duplicate full name, not a transient fault.
type PersistenceError struct {
	Entity   string
	RemoteID int64
	Err      error
}

func (e *PersistenceError) Error() string {
	kind := "failed to save"
	if IsConstraintViolation(e.Err) {
		kind = "constraint violation saving"
	}
	return fmt.Sprintf("%s %s %d: %v", kind, e.Entity, e.RemoteID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// UpsertRepository finds the repository by remote id (or starts a new row),
// overwrites its fields from the remote record and saves it.
func (db *DB) UpsertRepository(ctx context.Context, remote *models.Repository) (*Repository, error) {
	var row Repository
	if err := db.findByRemoteID(ctx, &row, remote.ID); err != nil {
		return nil, fmt.Errorf("failed to look up repository %d: %w", remote.ID, err)
	}

	row.RemoteID = remote.ID
	row.Name = remote.Name
	row.FullName = remote.FullName
	row.URL = remote.URL
	row.IsPrivate = remote.IsPrivate
	row.IsArchived = remote.IsArchived

	if err := db.WithContext(ctx).Save(&row).Error; err != nil {
		return nil, &PersistenceError{Entity: "repository", RemoteID: remote.ID, Err: err}
	}
	return &row, nil
}

// UpsertUser finds the user by remote id (or starts a new row), overwrites its
// fields and saves it.
func (db *DB) UpsertUser(ctx context.Context, remote *models.User) (*User, error) {
	var row User
	if err := db.findByRemoteID(ctx, &row, remote.ID); err != nil {
		return nil, fmt.Errorf("failed to look up user %d: %w", remote.ID, err)
	}

	row.RemoteID = remote.ID
	row.Login = remote.Login
	row.URL = remote.URL

	if err := db.WithContext(ctx).Save(&row).Error; err != nil {
		return nil, &PersistenceError{Entity: "user", RemoteID: remote.ID, Err: err}
	}
	return &row, nil
}

// UpsertPullRequest saves a pull request under the repository with local id repositoryID.
// The author is upserted first; a nil author leaves author_id NULL.
func (db *DB) UpsertPullRequest(ctx context.Context, repositoryID int64, remote *models.PullRequest) (*PullRequest, error) {
	authorID, err := db.upsertAuthor(ctx, remote.Author)
	if err != nil {
		return nil, err
	}

	var row PullRequest
	if err := db.findByRemoteID(ctx, &row, remote.ID); err != nil {
		return nil, fmt.Errorf("failed to look up pull request %d: %w", remote.ID, err)
	}

	row.RemoteID = remote.ID
	row.RepositoryID = repositoryID
	row.Number = remote.Number
	row.Title = remote.Title
	row.State = remote.State
	row.UpdatedAtRemote = remote.UpdatedAt
	row.ClosedAt = remote.ClosedAt
	row.MergedAt = remote.MergedAt
	row.AuthorID = authorID
	row.Additions = remote.Additions
	row.Deletions = remote.Deletions
	row.ChangedFiles = remote.ChangedFiles
	row.CommitsCount = remote.Commits

	if err := db.WithContext(ctx).Save(&row).Error; err != nil {
		return nil, &PersistenceError{Entity: "pull request", RemoteID: remote.ID, Err: err}
	}
	return &row, nil
}

// UpsertReview saves a review under the pull request with local id pullRequestID.
func (db *DB) UpsertReview(ctx context.Context, pullRequestID int64, remote *models.Review) (*Review, error) {
	authorID, err := db.upsertAuthor(ctx, remote.Author)
	if err != nil {
		return nil, err
	}

	var row Review
	if err := db.findByRemoteID(ctx, &row, remote.ID); err != nil {
		return nil, fmt.Errorf("failed to look up review %d: %w", remote.ID, err)
	}

	row.RemoteID = remote.ID
	row.PullRequestID = pullRequestID
	row.AuthorID = authorID
	row.State = remote.State
	row.SubmittedAt = remote.SubmittedAt

	if err := db.WithContext(ctx).Save(&row).Error; err != nil {
		return nil, &PersistenceError{Entity: "review", RemoteID: remote.ID, Err: err}
	}
	return &row, nil
}

// GetPullRequestByRemoteID reads a pull request back from the store.
// It returns nil without error when no row exists.
func (db *DB) GetPullRequestByRemoteID(ctx context.Context, remoteID int64) (*PullRequest, error) {
	var row PullRequest
	if err := db.findByRemoteID(ctx, &row, remoteID); err != nil {
		return nil, fmt.Errorf("failed to get pull request %d: %w", remoteID, err)
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (db *DB) upsertAuthor(ctx context.Context, remote *models.User) (*int64, error) {
	if remote == nil {
		return nil, nil
	}

	user, err := db.UpsertUser(ctx, remote)
	if err != nil {
		return nil, err
	}
	return &user.ID, nil
}

// findByRemoteID loads the row with the given remote id into dest, leaving dest
// untouched when there is none.
func (db *DB) findByRemoteID(ctx context.Context, dest any, remoteID int64) error {
	return db.WithContext(ctx).Where("remote_id = ?", remoteID).Limit(1).Find(dest).Error
}
