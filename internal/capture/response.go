// Package capture persists generated responses. Sinks only ever insert.
package capture

import (
	"time"

	"github.com/google/uuid"
)

// CapturedResponse is a model reply paired with the template that produced it.
type CapturedResponse struct {
	ID               string    `json:"id"`
	TemplateID       string    `json:"templateId"`
	DatasetReference string    `json:"datasetRef"`
	Text             string    `json:"text"`
	Provider         string    `json:"provider"`
	CapturedAt       time.Time `json:"capturedAt"`
}

// NewCapturedResponse stamps text with a fresh ID and the current UTC time.
func NewCapturedResponse(templateID, datasetRef, text, provider string) *CapturedResponse {
	return &CapturedResponse{
		ID:               uuid.NewString(),
		TemplateID:       templateID,
		DatasetReference: datasetRef,
		Text:             text,
		Provider:         provider,
		CapturedAt:       time.Now().UTC(),
	}
}
