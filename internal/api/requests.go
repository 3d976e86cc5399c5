package api

// Request bodies for the branding endpoints. Validation runs through
// go-playground/validator before any credits are spent.

type GenerateNameRequest struct {
	Vibe      string `json:"vibe"`
	ContextID string `json:"context_id" validate:"omitempty,uuid4"`
}

type GenerateContentRequest struct {
	ContentType string `json:"content_type" validate:"required,oneof=tagline mission social"`
	ContextID   string `json:"context_id" validate:"omitempty,uuid4"`
}

type GenerateLogoRequest struct {
	Prompt    string `json:"prompt" validate:"required,min=3,max=2000"`
	ContextID string `json:"context_id" validate:"omitempty,uuid4"`
}

type SentimentRequest struct {
	Text string `json:"text" validate:"required,min=1,max=10000"`
}

type AssistantRequest struct {
	Message   string `json:"message" validate:"required,min=1,max=4000"`
	ContextID string `json:"context_id" validate:"omitempty,uuid4"`
}

type BrandContextRequest struct {
	Industry       string   `json:"industry" validate:"required,max=200"`
	Tone           string   `json:"tone" validate:"max=200"`
	TargetAudience string   `json:"target_audience" validate:"max=500"`
	Personality    string   `json:"brand_personality" validate:"max=500"`
	Keywords       []string `json:"keywords" validate:"max=20,dive,max=50"`
}

type CreateJobRequest struct {
	Prompt    string `json:"prompt" validate:"required,min=3,max=2000"`
	ContextID string `json:"context_id" validate:"omitempty,uuid4"`
}
