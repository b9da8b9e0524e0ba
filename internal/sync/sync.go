package sync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wesm/github-review-sync/internal/api"
	"github.com/wesm/github-review-sync/internal/db"
	"github.com/wesm/github-review-sync/internal/models"
)

const (
	// DefaultPageSize is the page size used for repository and pull request listings
	DefaultPageSize = 100
	// DefaultReviewPageSize is large enough that reviews of almost every pull request fit in one page
	DefaultReviewPageSize = 100

	visibilityPublic = "public"
	stateAll         = "all"
)

// Source is the remote API capability the syncer consumes
type Source interface {
	ListOrganizationRepositories(ctx context.Context, org, visibility string, perPage, page int) ([]*models.Repository, error)
	GetRepository(ctx context.Context, fullName string) (*models.Repository, error)
	ListPullRequests(ctx context.Context, fullName, state string, perPage, page int) ([]*models.PullRequestSummary, error)
	GetPullRequest(ctx context.Context, fullName string, number int) (*models.PullRequest, error)
	ListPullRequestReviews(ctx context.Context, fullName string, number, perPage int) ([]*models.Review, error)
}

// Store persists remote records, keyed by remote id
type Store interface {
	UpsertRepository(ctx context.Context, remote *models.Repository) (*db.Repository, error)
	UpsertPullRequest(ctx context.Context, repositoryID int64, remote *models.PullRequest) (*db.PullRequest, error)
	UpsertReview(ctx context.Context, pullRequestID int64, remote *models.Review) (*db.Review, error)
	GetPullRequestByRemoteID(ctx context.Context, remoteID int64) (*db.PullRequest, error)
}

// Options controls what a run traverses
type Options struct {
	// Organization whose public repositories are synced
	Organization string
	// Repository, when set as owner/name, restricts the run to that repository
	Repository string

	PageSize       int
	ReviewPageSize int
}

// Result summarises a run
type Result struct {
	Repositories   int
	SkippedPrivate int
	PullRequests   int
	Reviews        int
}

// Syncer handles syncing GitHub pull requests and reviews to the local database
type Syncer struct {
	store   Store
	source  Source
	limiter *api.RateLimiter
	logger  *slog.Logger
	opts    Options
}

// New creates a new syncer. Every call to source goes through limiter.
func New(store Store, source Source, limiter *api.RateLimiter, logger *slog.Logger, opts Options) *Syncer {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.ReviewPageSize <= 0 {
		opts.ReviewPageSize = DefaultReviewPageSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		store:   store,
		source:  source,
		limiter: limiter,
		logger:  logger,
		opts:    opts,
	}
}

// Run syncs either the configured repository or every public repository of the organization
func (s *Syncer) Run(ctx context.Context) (*Result, error) {
	result := &Result{}

	if s.opts.Repository != "" {
		if err := s.SyncRepository(ctx, s.opts.Repository, result); err != nil {
			return result, err
		}
		return result, nil
	}

	if err := s.SyncOrganization(ctx, s.opts.Organization, result); err != nil {
		return result, err
	}
	return result, nil
}

// SyncRepository fetches a single repository and syncs its pull requests and reviews
func (s *Syncer) SyncRepository(ctx context.Context, fullName string, result *Result) error {
	var remote *models.Repository
	err := s.limiter.Do(ctx, func(ctx context.Context) error {
		var err error
		remote, err = s.source.GetRepository(ctx, fullName)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to get repository %s: %w", fullName, err)
	}

	repo, err := s.store.UpsertRepository(ctx, remote)
	if err != nil {
		return fmt.Errorf("failed to save repository %s: %w", fullName, err)
	}
	result.Repositories++

	return s.syncPullRequests(ctx, repo, result)
}

// SyncOrganization pages through the organization's public repositories until an
// empty page is returned, syncing each non-private repository in listing order.
func (s *Syncer) SyncOrganization(ctx context.Context, org string, result *Result) error {
	s.logger.Info("Syncing organization", "org", org)

	for page := 1; ; page++ {
		var repos []*models.Repository
		err := s.limiter.Do(ctx, func(ctx context.Context) error {
			var err error
			repos, err = s.source.ListOrganizationRepositories(ctx, org, visibilityPublic, s.opts.PageSize, page)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to list repositories for %s (page %d): %w", org, page, err)
		}

		if len(repos) == 0 {
			s.logger.Debug("No more repositories", "org", org, "page", page)
			return nil
		}

		for _, remote := range repos {
			repo, err := s.store.UpsertRepository(ctx, remote)
			if err != nil {
				return fmt.Errorf("failed to save repository %s: %w", remote.FullName, err)
			}
			result.Repositories++

			// The listing asks for public repositories only; check again anyway.
			if repo.IsPrivate {
				s.logger.Info("Skipping private repository", "repo", repo.FullName)
				result.SkippedPrivate++
				continue
			}

			if err := s.syncPullRequests(ctx, repo, result); err != nil {
				return err
			}
		}
	}
}

// syncPullRequests pages through all pull requests of a repository (open, closed and merged)
func (s *Syncer) syncPullRequests(ctx context.Context, repo *db.Repository, result *Result) error {
	s.logger.Info("Syncing repository", "repo", repo.FullName)

	for page := 1; ; page++ {
		var summaries []*models.PullRequestSummary
		err := s.limiter.Do(ctx, func(ctx context.Context) error {
			var err error
			summaries, err = s.source.ListPullRequests(ctx, repo.FullName, stateAll, s.opts.PageSize, page)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to list pull requests for %s (page %d): %w", repo.FullName, page, err)
		}

		if len(summaries) == 0 {
			return nil
		}

		s.logger.Debug("Fetched pull request page", "repo", repo.FullName, "page", page, "count", len(summaries))

		for _, summary := range summaries {
			if err := s.syncPullRequest(ctx, repo, summary, result); err != nil {
				return err
			}
		}
	}
}

// syncPullRequest fetches the detail view of one pull request, stores it and syncs its reviews
func (s *Syncer) syncPullRequest(ctx context.Context, repo *db.Repository, summary *models.PullRequestSummary, result *Result) error {
	// List responses omit diff statistics, so each pull request is fetched again.
	var detail *models.PullRequest
	err := s.limiter.Do(ctx, func(ctx context.Context) error {
		var err error
		detail, err = s.source.GetPullRequest(ctx, repo.FullName, summary.Number)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to get pull request %s#%d: %w", repo.FullName, summary.Number, err)
	}

	if _, err := s.store.UpsertPullRequest(ctx, repo.ID, detail); err != nil {
		return fmt.Errorf("failed to save pull request %s#%d: %w", repo.FullName, detail.Number, err)
	}
	result.PullRequests++

	pr, err := s.store.GetPullRequestByRemoteID(ctx, detail.ID)
	if err != nil {
		return err
	}
	if pr == nil {
		return fmt.Errorf("pull request %s#%d missing after save", repo.FullName, detail.Number)
	}

	return s.syncReviews(ctx, repo, pr, result)
}

// syncReviews stores the reviews of a pull request. A single page is requested.
func (s *Syncer) syncReviews(ctx context.Context, repo *db.Repository, pr *db.PullRequest, result *Result) error {
	var reviews []*models.Review
	err := s.limiter.Do(ctx, func(ctx context.Context) error {
		var err error
		reviews, err = s.source.ListPullRequestReviews(ctx, repo.FullName, pr.Number, s.opts.ReviewPageSize)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to list reviews for %s#%d: %w", repo.FullName, pr.Number, err)
	}

	for _, review := range reviews {
		if _, err := s.store.UpsertReview(ctx, pr.ID, review); err != nil {
			return fmt.Errorf("failed to save review %d on %s#%d: %w", review.ID, repo.FullName, pr.Number, err)
		}
		result.Reviews++
	}
	return nil
}
