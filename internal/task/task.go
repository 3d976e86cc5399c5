package task

// Task identifies a requested AI capability. The set is fixed at build time;
// each task maps to a static, ordered chain of providers.
type Task string

const (
	BrandNames Task = "brand-names"
	Content    Task = "content"
	Sentiment  Task = "sentiment"
	Logo       Task = "logo"
	Assistant  Task = "assistant"
)

// Parse maps the task names accepted on the wire (including the legacy
// aliases "branding_names" and "name") onto the closed enum.
func Parse(s string) (Task, bool) {
	switch s {
	case "branding_names", "name", string(BrandNames):
		return BrandNames, true
	case string(Content):
		return Content, true
	case string(Sentiment):
		return Sentiment, true
	case string(Logo):
		return Logo, true
	case string(Assistant):
		return Assistant, true
	}
	return "", false
}

// Cacheable reports whether results for this task may be memoized.
// Logo results reference stored assets that can be deleted out from under
// the cache, and sentiment calls are re-executed on every request.
func (t Task) Cacheable() bool {
	switch t {
	case BrandNames, Content, Assistant:
		return true
	}
	return false
}

func (t Task) String() string {
	return string(t)
}
