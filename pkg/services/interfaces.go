// Package services contains the ingestion pipeline, commit sync engine,
// quota ledger, and project operations for reposage-engine.
package services

import (
	"context"

	"github.com/reposage-ai/reposage-engine/pkg/github"
)

// RepoFetcher is the slice of the GitHub client the pipeline consumes.
// Defined here so services can be tested against fakes.
type RepoFetcher interface {
	FetchRepositoryFiles(ctx context.Context, repoURL, token string) ([]github.RepoFile, error)
	CountRepositoryFiles(ctx context.Context, repoURL, token string) (int, error)
	ListRecentCommits(ctx context.Context, repoURL, token string, limit int) ([]github.CommitInfo, error)
	GetCommitDiff(ctx context.Context, repoURL, token, commitHash string) (string, error)
}

// Summarizer produces natural-language synopses of file content and diffs.
type Summarizer interface {
	SummarizeFile(ctx context.Context, fileName, content string) (string, error)
	SummarizeDiff(ctx context.Context, diff string) (string, error)
}
