package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// MaxSummaryInput caps the characters sent to a summarization provider.
// Oversized files are truncated rather than rejected, keeping cost and
// latency bounded.
const MaxSummaryInput = 10_000

const summaryTemperature = 0.3

// SummarizerChain turns file content or commit diffs into short synopses.
// It tries the primary provider first and falls back to the secondary on
// permanent failures. Rate-limit and transient errors are never absorbed by
// the chain; they propagate so the caller can back off and retry.
type SummarizerChain struct {
	primary  Generator
	fallback Generator // may be nil
	logger   *zap.Logger
}

// NewSummarizerChain creates a summarizer over the given providers.
// fallback may be nil, in which case only the primary is tried.
func NewSummarizerChain(primary Generator, fallback Generator, logger *zap.Logger) *SummarizerChain {
	return &SummarizerChain{
		primary:  primary,
		fallback: fallback,
		logger:   logger.Named("summarizer"),
	}
}

// PlaceholderSummary is the deterministic summary recorded when every
// provider has failed on a file. Indexing one file must never abort the
// rest of the batch, and a placeholder row is still retrievable by name.
func PlaceholderSummary(fileName string) string {
	return fmt.Sprintf("Source code from %s", fileName)
}

// SummarizeFile produces a synopsis of one repository file. On a permanent
// failure of every provider it degrades to a deterministic placeholder
// instead of returning an error. Retryable errors propagate so the caller
// can wait out the blip before settling for a placeholder.
func (s *SummarizerChain) SummarizeFile(ctx context.Context, fileName, content string) (string, error) {
	prompt := fileSummaryPrompt(fileName, truncate(content, MaxSummaryInput))

	summary, err := s.generate(ctx, prompt)
	if err != nil {
		if IsRateLimited(err) || IsRetryable(err) {
			return "", err
		}
		s.logger.Warn("All providers failed, using placeholder summary",
			zap.String("file", fileName),
			zap.Error(err))
		return PlaceholderSummary(fileName), nil
	}
	return summary, nil
}

// SummarizeDiff produces a synopsis of a commit diff. Unlike SummarizeFile
// there is no placeholder: the commit sync engine substitutes an empty
// summary for failed commits on its own.
func (s *SummarizerChain) SummarizeDiff(ctx context.Context, diff string) (string, error) {
	prompt := diffSummaryPrompt(truncate(diff, MaxSummaryInput))
	return s.generate(ctx, prompt)
}

func (s *SummarizerChain) generate(ctx context.Context, prompt string) (string, error) {
	summary, err := s.primary.GenerateResponse(ctx, prompt, summarySystemMessage, summaryTemperature)
	if err == nil {
		return summary, nil
	}
	if IsRateLimited(err) || s.fallback == nil {
		return "", err
	}

	s.logger.Warn("Primary provider failed, trying fallback",
		zap.String("primary_model", s.primary.GetModel()),
		zap.String("fallback_model", s.fallback.GetModel()),
		zap.Error(err))

	summary, fbErr := s.fallback.GenerateResponse(ctx, prompt, summarySystemMessage, summaryTemperature)
	if fbErr == nil {
		return summary, nil
	}
	if IsRateLimited(fbErr) || IsRetryable(fbErr) {
		return "", fbErr
	}
	return "", fmt.Errorf("all providers failed: primary: %w", err)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
