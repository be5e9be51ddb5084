package dto

import "github.com/google/uuid"

type SuggestDescriptionRequest struct {
	Title   string `json:"title"`
	Context string `json:"context,omitempty"`
}

type SuggestDescriptionResponse struct {
	Description string `json:"description"`
}

type SuggestTitlesRequest struct {
	Description string `json:"description"`
}

type SuggestTitlesResponse struct {
	Titles []string `json:"titles"`
}

type SuggestAssigneeRequest struct {
	ProjectID uuid.UUID `json:"project_id"`
	TaskText  string    `json:"task_text"`
}

type SuggestAssigneeResponse struct {
	Email string `json:"email"`
}

type AIStatusResponse struct {
	Available bool `json:"available"`
}
