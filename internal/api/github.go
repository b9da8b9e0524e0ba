package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/wesm/github-review-sync/internal/models"
	"golang.org/x/oauth2"
)

// ErrMissingToken is returned when no GitHub token is configured
var ErrMissingToken = errors.New("GitHub token is required (set GITHUB_TOKEN)")

// GitHubClient represents a client for the GitHub REST API
type GitHubClient struct {
	client *github.Client
}

// NewGitHubClient creates a new authenticated GitHub API client.
// The token is checked here so a missing credential fails before any request is made.
func NewGitHubClient(token string) (*GitHubClient, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(context.Background(), ts)

	return &GitHubClient{client: github.NewClient(tc)}, nil
}

// ListOrganizationRepositories returns one page of an organization's repositories
func (c *GitHubClient) ListOrganizationRepositories(ctx context.Context, org, visibility string, perPage, page int) ([]*models.Repository, error) {
	opts := &github.RepositoryListByOrgOptions{
		Type: visibility,
		ListOptions: github.ListOptions{
			PerPage: perPage,
			Page:    page,
		},
	}

	repos, _, err := c.client.Repositories.ListByOrg(ctx, org, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories for %s: %w", org, err)
	}

	result := make([]*models.Repository, 0, len(repos))
	for _, repo := range repos {
		result = append(result, ConvertGitHubRepository(repo))
	}
	return result, nil
}

// GetRepository gets a repository by its full name (owner/name)
func (c *GitHubClient) GetRepository(ctx context.Context, fullName string) (*models.Repository, error) {
	owner, name, err := ParseRepositoryString(fullName)
	if err != nil {
		return nil, err
	}

	repo, _, err := c.client.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get repository: %w", err)
	}

	return ConvertGitHubRepository(repo), nil
}

// ListPullRequests returns one page of a repository's pull requests in the given state
func (c *GitHubClient) ListPullRequests(ctx context.Context, fullName, state string, perPage, page int) ([]*models.PullRequestSummary, error) {
	owner, name, err := ParseRepositoryString(fullName)
	if err != nil {
		return nil, err
	}

	opts := &github.PullRequestListOptions{
		State: state,
		ListOptions: github.ListOptions{
			PerPage: perPage,
			Page:    page,
		},
	}

	prs, _, err := c.client.PullRequests.List(ctx, owner, name, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list pull requests: %w", err)
	}

	result := make([]*models.PullRequestSummary, 0, len(prs))
	for _, pr := range prs {
		result = append(result, &models.PullRequestSummary{
			ID:     pr.GetID(),
			Number: pr.GetNumber(),
			Title:  pr.GetTitle(),
			State:  pr.GetState(),
		})
	}
	return result, nil
}

// GetPullRequest gets the detail view of a pull request, which carries diff statistics
func (c *GitHubClient) GetPullRequest(ctx context.Context, fullName string, number int) (*models.PullRequest, error) {
	owner, name, err := ParseRepositoryString(fullName)
	if err != nil {
		return nil, err
	}

	pr, _, err := c.client.PullRequests.Get(ctx, owner, name, number)
	if err != nil {
		return nil, fmt.Errorf("failed to get pull request #%d: %w", number, err)
	}

	return ConvertGitHubPullRequest(pr), nil
}

// ListPullRequestReviews returns the first page of reviews for a pull request
func (c *GitHubClient) ListPullRequestReviews(ctx context.Context, fullName string, number, perPage int) ([]*models.Review, error) {
	owner, name, err := ParseRepositoryString(fullName)
	if err != nil {
		return nil, err
	}

	reviews, _, err := c.client.PullRequests.ListReviews(ctx, owner, name, number, &github.ListOptions{PerPage: perPage})
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews for pull request #%d: %w", number, err)
	}

	result := make([]*models.Review, 0, len(reviews))
	for _, review := range reviews {
		result = append(result, ConvertGitHubReview(review))
	}
	return result, nil
}

// RateLimitStatus reports when the core REST rate limit resets
func (c *GitHubClient) RateLimitStatus(ctx context.Context) (*models.RateLimitStatus, error) {
	limits, _, err := c.client.RateLimit.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get rate limit status: %w", err)
	}

	status := &models.RateLimitStatus{}
	if core := limits.GetCore(); core != nil {
		status.ResetsAt = core.Reset.Time
	}
	return status, nil
}

// ParseRepositoryString parses a repository string in the format "owner/name"
func ParseRepositoryString(repoStr string) (string, string, error) {
	parts := strings.Split(repoStr, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository format, expected 'owner/name', got '%s'", repoStr)
	}
	return parts[0], parts[1], nil
}

// ConvertGitHubRepository converts a GitHub repository to our model
func ConvertGitHubRepository(repo *github.Repository) *models.Repository {
	return &models.Repository{
		ID:         repo.GetID(),
		Name:       repo.GetName(),
		FullName:   repo.GetFullName(),
		URL:        repo.GetHTMLURL(),
		IsPrivate:  repo.GetPrivate(),
		IsArchived: repo.GetArchived(),
	}
}

// ConvertGitHubUser converts a GitHub user to our model
func ConvertGitHubUser(user *github.User) *models.User {
	if user == nil {
		return nil
	}

	return &models.User{
		ID:    user.GetID(),
		Login: user.GetLogin(),
		URL:   user.GetHTMLURL(),
	}
}

// ConvertGitHubPullRequest converts a GitHub pull request to our model
func ConvertGitHubPullRequest(pr *github.PullRequest) *models.PullRequest {
	return &models.PullRequest{
		ID:           pr.GetID(),
		Number:       pr.GetNumber(),
		Title:        pr.GetTitle(),
		State:        pr.GetState(),
		UpdatedAt:    timestampPtr(pr.UpdatedAt),
		ClosedAt:     timestampPtr(pr.ClosedAt),
		MergedAt:     timestampPtr(pr.MergedAt),
		Author:       ConvertGitHubUser(pr.User),
		Additions:    pr.GetAdditions(),
		Deletions:    pr.GetDeletions(),
		ChangedFiles: pr.GetChangedFiles(),
		Commits:      pr.GetCommits(),
	}
}

// ConvertGitHubReview converts a GitHub pull request review to our model
func ConvertGitHubReview(review *github.PullRequestReview) *models.Review {
	return &models.Review{
		ID:          review.GetID(),
		State:       review.GetState(),
		SubmittedAt: timestampPtr(review.SubmittedAt),
		Author:      ConvertGitHubUser(review.User),
	}
}

func timestampPtr(ts *github.Timestamp) *time.Time {
	if ts == nil {
		return nil
	}
	t := ts.Time
	return &t
}
