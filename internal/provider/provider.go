package provider

import (
	"context"
	"strings"
)

// Usage is the token accounting reported by a provider. Providers that do
// not report usage leave the counts at zero rather than failing.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Normalized fills TotalTokens from the component counts when the upstream
// API omits it.
func (u Usage) Normalized() Usage {
	if u.TotalTokens == 0 {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
	return u
}

// Generation is the normalized outcome of a text-generation call.
type Generation struct {
	Text  string
	Usage Usage
}

// Image is the normalized outcome of an image-generation call. Ref is a
// stable reference to the persisted asset (e.g. /static/logo_<id>.png),
// never raw bytes.
type Image struct {
	Ref   string
	Usage Usage
}

// Label is the closed sentiment label set.
type Label string

const (
	LabelPositive Label = "positive"
	LabelNegative Label = "negative"
	LabelNeutral  Label = "neutral"
)

// NormalizeLabel maps provider-specific or mixed-case labels onto the
// closed enum. Anything unrecognized becomes neutral.
func NormalizeLabel(s string) Label {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive", "pos", "label_1":
		return LabelPositive
	case "negative", "neg", "label_0":
		return LabelNegative
	}
	return LabelNeutral
}

// Sentiment is the outcome of a sentiment classification. Classification
// never fails outright: on transport errors the classifier degrades to
// {neutral, 0.0} and records the cause in Err.
type Sentiment struct {
	Label      Label   `json:"label"`
	Confidence float64 `json:"confidence"`
	Err        string  `json:"error,omitempty"`
}

// TextGenerator is a provider capable of text generation. Implementations
// are stateless, safe for concurrent use, and exhaust their own retry
// policy before returning an error.
type TextGenerator interface {
	Name() string
	Model() string
	GenerateText(ctx context.Context, prompt string) (*Generation, error)
}

// ImageGenerator is a provider capable of image generation. The adapter
// persists the binary payload to an asset store and returns a reference.
type ImageGenerator interface {
	Name() string
	Model() string
	GenerateImage(ctx context.Context, prompt string) (*Image, error)
}

// SentimentClassifier is a provider capable of sentiment classification.
type SentimentClassifier interface {
	Name() string
	Model() string
	ClassifySentiment(ctx context.Context, text string) Sentiment
}
