package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reposage-ai/reposage-engine/pkg/apperrors"
	"github.com/reposage-ai/reposage-engine/pkg/llm"
	"github.com/reposage-ai/reposage-engine/pkg/models"
)

func newQuestionFixture(t *testing.T, embedder *llm.MockEmbedder, generator *llm.MockGenerator) (QuestionService, *memQuestionRepo, *models.Project) {
	t.Helper()

	projects := newMemProjectRepo()
	project := testProject()
	project.EmbeddingModel = "text-embedding-ada-002"
	if err := projects.Create(context.Background(), project); err != nil {
		t.Fatalf("create project: %v", err)
	}

	files := newMemFileRepo()
	files.matches = []*models.FileMatch{
		{FileEmbedding: models.FileEmbedding{FileName: "main.go", Summary: "entry point", SourceCode: "package main"}, Similarity: 0.91},
		{FileEmbedding: models.FileEmbedding{FileName: "pkg/server.go", Summary: "http server", SourceCode: "package server"}, Similarity: 0.85},
	}

	questions := &memQuestionRepo{}
	svc := NewQuestionService(projects, files, questions, embedder, generator, zap.NewNop())
	return svc, questions, project
}

func TestAskUsesPinnedEmbeddingModel(t *testing.T) {
	embedder := &llm.MockEmbedder{}
	generator := &llm.MockGenerator{Response: "it starts the server"}
	svc, questions, project := newQuestionFixture(t, embedder, generator)

	answer, err := svc.Ask(context.Background(), project.ID, uuid.New(), "where does startup happen?")
	if err != nil {
		t.Fatalf("Ask returned error: %v", err)
	}

	if len(embedder.Models) != 1 || embedder.Models[0] != "text-embedding-ada-002" {
		t.Errorf("embedding models used = %v, want the project's pinned model", embedder.Models)
	}
	if answer.Answer != "it starts the server" {
		t.Errorf("answer = %q", answer.Answer)
	}
	if len(answer.ReferencedFiles) != 2 || answer.ReferencedFiles[0] != "main.go" {
		t.Errorf("referenced files = %v", answer.ReferencedFiles)
	}
	if len(questions.inserted) != 1 {
		t.Errorf("saved questions = %d, want 1", len(questions.inserted))
	}
}

func TestAskBuildsPromptFromMatches(t *testing.T) {
	embedder := &llm.MockEmbedder{}
	generator := &llm.MockGenerator{Response: "answer"}
	svc, _, project := newQuestionFixture(t, embedder, generator)

	if _, err := svc.Ask(context.Background(), project.ID, uuid.New(), "how is the server wired?"); err != nil {
		t.Fatalf("Ask returned error: %v", err)
	}

	if generator.CallCount() != 1 {
		t.Fatalf("generator calls = %d, want 1", generator.CallCount())
	}
	prompt := generator.Calls[0]
	for _, fragment := range []string{"main.go", "entry point", "pkg/server.go", "how is the server wired?"} {
		if !strings.Contains(prompt, fragment) {
			t.Errorf("prompt missing %q", fragment)
		}
	}
}

func TestAskProjectNotFound(t *testing.T) {
	svc := NewQuestionService(newMemProjectRepo(), newMemFileRepo(), &memQuestionRepo{}, &llm.MockEmbedder{}, &llm.MockGenerator{}, zap.NewNop())

	if _, err := svc.Ask(context.Background(), uuid.New(), uuid.New(), "anything"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestAskEmbeddingFailurePropagates(t *testing.T) {
	embedder := &llm.MockEmbedder{Err: llm.NewError(llm.ErrorTypeRateLimit, "rate limited", true, nil)}
	generator := &llm.MockGenerator{Response: "unused"}
	svc, questions, project := newQuestionFixture(t, embedder, generator)

	if _, err := svc.Ask(context.Background(), project.ID, uuid.New(), "anything"); err == nil {
		t.Fatal("expected error when embedding fails")
	}
	if generator.CallCount() != 0 {
		t.Error("generator must not run when embedding fails")
	}
	if len(questions.inserted) != 0 {
		t.Error("no question may be saved on failure")
	}
}
