// Package github fetches repository trees, file content, and commit history
// from the GitHub API.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	gh "github.com/google/go-github/v68/github"
	"go.uber.org/zap"

	"github.com/reposage-ai/reposage-engine/pkg/apperrors"
	"github.com/reposage-ai/reposage-engine/pkg/retry"
)

// blobRetryConfig bounds retries of individual blob downloads. One flaky
// response must not abort a whole tree fetch.
var blobRetryConfig = &retry.Config{
	MaxRetries:   2,
	InitialDelay: 200 * time.Millisecond,
	MaxDelay:     2 * time.Second,
	Multiplier:   2.0,
	JitterFactor: 0.1,
}

// RepoFile is one qualifying file from a repository tree.
type RepoFile struct {
	Path    string
	Content string
}

// CommitInfo is one commit from the repository history.
type CommitInfo struct {
	Hash         string
	Message      string
	AuthorName   string
	AuthorAvatar string
	CommittedAt  time.Time
}

// Config holds settings for the GitHub client.
type Config struct {
	// Token is the server default. A non-empty per-call token always wins;
	// anonymous access has a strict low rate limit.
	Token string

	// Branch is the branch whose tree is fetched.
	Branch string

	// MaxFileSize caps fetched blob size in bytes. Zero means 256 KiB.
	MaxFileSize int

	// BaseURL points the client at a GitHub Enterprise instance.
	// Empty means github.com.
	BaseURL string
}

// Client wraps the GitHub API for repository ingestion.
type Client struct {
	cfg    Config
	logger *zap.Logger
}

// NewClient creates a GitHub client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	if cfg.MaxFileSize == 0 {
		cfg.MaxFileSize = 256 * 1024
	}
	return &Client{
		cfg:    cfg,
		logger: logger.Named("github"),
	}
}

// ParseRepoURL resolves a repository URL to (owner, repo).
// Accepts https://github.com/owner/repo with an optional .git suffix.
func ParseRepoURL(repoURL string) (owner, repo string, err error) {
	u, err := url.Parse(strings.TrimSuffix(repoURL, "/"))
	if err != nil {
		return "", "", fmt.Errorf("%w: %q", apperrors.ErrInvalidRepoURL, repoURL)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[len(parts)-2] == "" || parts[len(parts)-1] == "" {
		return "", "", fmt.Errorf("%w: %q", apperrors.ErrInvalidRepoURL, repoURL)
	}

	owner = parts[len(parts)-2]
	repo = strings.TrimSuffix(parts[len(parts)-1], ".git")
	if repo == "" {
		return "", "", fmt.Errorf("%w: %q", apperrors.ErrInvalidRepoURL, repoURL)
	}
	return owner, repo, nil
}

// api returns a REST client authenticated with the per-call token when
// provided, falling back to the server default, then anonymous.
func (c *Client) api(token string) *gh.Client {
	client := gh.NewClient(nil)
	if token == "" {
		token = c.cfg.Token
	}
	if token != "" {
		client = client.WithAuthToken(token)
	}
	if c.cfg.BaseURL != "" {
		enterprise, err := client.WithEnterpriseURLs(c.cfg.BaseURL, c.cfg.BaseURL)
		if err != nil {
			c.logger.Warn("Invalid GitHub base URL, using github.com",
				zap.String("base_url", c.cfg.BaseURL),
				zap.Error(err))
		} else {
			client = enterprise
		}
	}
	return client
}

// FetchRepositoryFiles enumerates the branch tree and downloads the content
// of every qualifying file. Lockfiles, dependency directories, VCS metadata,
// build output, and binary content are excluded.
func (c *Client) FetchRepositoryFiles(ctx context.Context, repoURL, token string) ([]RepoFile, error) {
	owner, repo, err := ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}

	api := c.api(token)

	tree, _, err := api.Git.GetTree(ctx, owner, repo, c.cfg.Branch, true)
	if err != nil {
		return nil, c.mapError(err, repoURL)
	}

	var files []RepoFile
	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" {
			continue
		}
		if IsExcludedPath(entry.GetPath()) {
			continue
		}
		if entry.GetSize() > c.cfg.MaxFileSize {
			c.logger.Debug("Skipping oversized file",
				zap.String("path", entry.GetPath()),
				zap.Int("size", entry.GetSize()))
			continue
		}

		var content []byte
		err := retry.DoIfRetryable(ctx, blobRetryConfig, func() error {
			var blobErr error
			content, _, blobErr = api.Git.GetBlobRaw(ctx, owner, repo, entry.GetSHA())
			return blobErr
		})
		if err != nil {
			return nil, c.mapError(err, repoURL)
		}
		if isBinary(content) {
			continue
		}

		files = append(files, RepoFile{
			Path:    entry.GetPath(),
			Content: string(content),
		})
	}

	c.logger.Info("Fetched repository files",
		zap.String("repo", owner+"/"+repo),
		zap.Int("files", len(files)))

	return files, nil
}

// CountRepositoryFiles counts qualifying files without downloading blobs.
// This is the lightweight enumeration behind the quota pre-flight check.
func (c *Client) CountRepositoryFiles(ctx context.Context, repoURL, token string) (int, error) {
	owner, repo, err := ParseRepoURL(repoURL)
	if err != nil {
		return 0, err
	}

	tree, _, err := c.api(token).Git.GetTree(ctx, owner, repo, c.cfg.Branch, true)
	if err != nil {
		return 0, c.mapError(err, repoURL)
	}

	count := 0
	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" || IsExcludedPath(entry.GetPath()) {
			continue
		}
		if entry.GetSize() > c.cfg.MaxFileSize {
			continue
		}
		count++
	}
	return count, nil
}

// ListRecentCommits returns the most recent commits on the branch, newest
// first by author date, capped at limit.
func (c *Client) ListRecentCommits(ctx context.Context, repoURL, token string, limit int) ([]CommitInfo, error) {
	owner, repo, err := ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}

	commits, _, err := c.api(token).Repositories.ListCommits(ctx, owner, repo, &gh.CommitsListOptions{
		SHA:         c.cfg.Branch,
		ListOptions: gh.ListOptions{PerPage: 30},
	})
	if err != nil {
		return nil, c.mapError(err, repoURL)
	}

	infos := make([]CommitInfo, 0, len(commits))
	for _, commit := range commits {
		infos = append(infos, CommitInfo{
			Hash:         commit.GetSHA(),
			Message:      commit.GetCommit().GetMessage(),
			AuthorName:   commit.GetCommit().GetAuthor().GetName(),
			AuthorAvatar: commit.GetAuthor().GetAvatarURL(),
			CommittedAt:  commit.GetCommit().GetAuthor().GetDate().Time,
		})
	}

	sortCommitsByDateDesc(infos)
	if len(infos) > limit {
		infos = infos[:limit]
	}
	return infos, nil
}

// GetCommitDiff retrieves the raw diff for one commit, content-negotiated
// as application/vnd.github.diff.
func (c *Client) GetCommitDiff(ctx context.Context, repoURL, token, commitHash string) (string, error) {
	owner, repo, err := ParseRepoURL(repoURL)
	if err != nil {
		return "", err
	}

	diff, _, err := c.api(token).Repositories.GetCommitRaw(ctx, owner, repo, commitHash, gh.RawOptions{Type: gh.Diff})
	if err != nil {
		return "", c.mapError(err, repoURL)
	}
	return diff, nil
}

// mapError converts GitHub client failures into the domain error taxonomy.
// Rate-limit exhaustion stays distinguishable so callers can surface the
// "provide a token" remediation instead of a generic failure.
func (c *Client) mapError(err error, repoURL string) error {
	var rateErr *gh.RateLimitError
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return fmt.Errorf("%w: GitHub API limit reached for %s, provide an access token for a higher limit", apperrors.ErrRateLimited, repoURL)
	}

	var respErr *gh.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch respErr.Response.StatusCode {
		case 404:
			return fmt.Errorf("%w: %s", apperrors.ErrRepoNotFound, repoURL)
		case 401, 403:
			return fmt.Errorf("%w: %s (check the access token)", apperrors.ErrRepoNotFound, repoURL)
		}
	}

	return fmt.Errorf("github request failed: %w", err)
}

func sortCommitsByDateDesc(commits []CommitInfo) {
	sort.Slice(commits, func(i, j int) bool {
		return commits[i].CommittedAt.After(commits[j].CommittedAt)
	})
}

func isBinary(content []byte) bool {
	// Null byte in the first KiB is a strong binary signal.
	probe := content
	if len(probe) > 1024 {
		probe = probe[:1024]
	}
	for _, b := range probe {
		if b == 0 {
			return true
		}
	}
	return false
}
