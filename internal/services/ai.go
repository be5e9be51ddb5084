package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mlukic/sprintsync-api/internal/config"
	"github.com/mlukic/sprintsync-api/internal/models"
	"github.com/mlukic/sprintsync-api/pkg/logger"
	openai "github.com/sashabaranov/go-openai"
)

// ErrAIUnavailable is returned when no provider credential is configured.
var ErrAIUnavailable = errors.New("ai service not configured")

// AIService generates task text suggestions. The provider credential is
// held on the backend only. The service is a read-only consumer: it sees
// project data exclusively through visibility-gated reads and has no path
// to mutate membership or task state.
type AIService struct {
	client   *openai.Client
	model    string
	projects *ProjectService
}

func NewAIService(cfg config.OpenAIConfig, projects *ProjectService) *AIService {
	s := &AIService{
		model:    cfg.Model,
		projects: projects,
	}
	if cfg.APIKey != "" {
		clientConfig := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientConfig.BaseURL = cfg.BaseURL
		}
		s.client = openai.NewClientWithConfig(clientConfig)
	}
	return s
}

func (s *AIService) Available() bool {
	return s.client != nil
}

// SuggestDescription expands a task title (plus optional context) into a
// full description.
func (s *AIService) SuggestDescription(ctx context.Context, title, extra string) (string, error) {
	prompt := fmt.Sprintf(
		"Write a concise, actionable description for the software task titled %q. "+
			"Include a short goal statement and 3-5 acceptance criteria as bullet points.", title)
	if extra != "" {
		prompt += "\nAdditional context: " + extra
	}

	content, err := s.complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	return content, nil
}

// SuggestTitles proposes up to five task titles for a description.
func (s *AIService) SuggestTitles(ctx context.Context, description string) ([]string, error) {
	prompt := fmt.Sprintf(
		"Suggest up to 5 short task titles (max 8 words each) for this work, one per line, "+
			"no numbering:\n%s", description)

	content, err := s.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var titles []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-*0123456789. "))
		if line != "" {
			titles = append(titles, line)
		}
	}
	if len(titles) > 5 {
		titles = titles[:5]
	}
	return titles, nil
}

// SuggestAssignee picks the most suitable current member of a project for
// the given task text. The member list is fetched through the visibility
// predicate, so a principal who cannot see the project gets NotFound here
// exactly as everywhere else.
func (s *AIService) SuggestAssignee(ctx context.Context, p models.Principal, projectID uuid.UUID, taskText string) (string, error) {
	members, err := s.projects.ListMembers(ctx, p, projectID)
	if err != nil {
		return "", err
	}

	var emails []string
	for _, m := range members {
		if m.User != nil {
			emails = append(emails, m.User.Email)
		}
	}

	prompt := fmt.Sprintf(
		"Given the task below and this list of team member emails, answer with exactly one "+
			"email from the list that seems the best fit.\nMembers: %s\nTask: %s",
		strings.Join(emails, ", "), taskText)

	content, err := s.complete(ctx, prompt)
	if err != nil {
		return "", err
	}

	answer := strings.TrimSpace(content)
	for _, email := range emails {
		if strings.Contains(answer, email) {
			return email, nil
		}
	}
	return "", fmt.Errorf("no usable suggestion in model response")
}

func (s *AIService) complete(ctx context.Context, prompt string) (string, error) {
	if s.client == nil {
		return "", ErrAIUnavailable
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		logger.Error().Err(err).Msg("ai completion failed")
		return "", fmt.Errorf("ai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("ai completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
