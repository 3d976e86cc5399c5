package brand

import (
	"fmt"
	"strings"
)

// Prompt construction happens before the payload reaches the router; the
// router treats the result as an opaque string.

var contentPrompts = map[string]string{
	"tagline": "Craft 3 punchy taglines.",
	"mission": "Write a 2-sentence mission statement.",
	"social":  "Draft 2 engaging Instagram captions.",
}

func injectContext(base string, bc *Context) string {
	if bc == nil {
		return base
	}
	var b strings.Builder
	b.WriteString("BRAND CONTEXT:\n")
	fmt.Fprintf(&b, "- Industry: %s\n", bc.Industry)
	fmt.Fprintf(&b, "- Tone: %s\n", bc.Tone)
	fmt.Fprintf(&b, "- Audience: %s\n", bc.TargetAudience)
	fmt.Fprintf(&b, "- Personality: %s\n", bc.Personality)
	fmt.Fprintf(&b, "- Keywords: %s\n\n", strings.Join(bc.Keywords, ", "))
	b.WriteString(base)
	return b.String()
}

// BrandNamePrompt asks for name candidates in the requested vibe,
// defaulting to the context's tone.
func BrandNamePrompt(vibe string, bc *Context) string {
	if vibe == "" && bc != nil {
		vibe = bc.Tone
	}
	base := fmt.Sprintf("Generate 5 unique brand names. Focus on the %s vibe.", vibe)
	return injectContext(base, bc)
}

// ContentPrompt builds a prompt for one of the known content types.
func ContentPrompt(contentType string, bc *Context) (string, error) {
	base, ok := contentPrompts[contentType]
	if !ok {
		return "", fmt.Errorf("unknown content type %q", contentType)
	}
	return injectContext(base, bc), nil
}

// LogoPrompt styles a raw logo request with the brand personality.
func LogoPrompt(prompt string, bc *Context) string {
	if bc == nil {
		return prompt
	}
	base := fmt.Sprintf("Create a professional logo: %s. Style should be %s.", prompt, bc.Personality)
	return injectContext(base, bc)
}

// AssistantPrompt prefixes the user's message with brand context for the
// advisory chat.
func AssistantPrompt(message string, bc *Context) string {
	if bc == nil {
		return "User says: " + message
	}
	return fmt.Sprintf("User Industry: %s. User says: %s", bc.Industry, message)
}
