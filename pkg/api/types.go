package api

// Title is an optional honorific placed before the first name.
type Title string

const (
	TitleMr   Title = "Mr"
	TitleMrs  Title = "Mrs"
	TitleMs   Title = "Ms"
	TitleDr   Title = "Dr"
	TitleSir  Title = "Sir"
	TitleJedi Title = "Jedi"
)

// Titles lists every valid title in declaration order.
var Titles = []Title{TitleMr, TitleMrs, TitleMs, TitleDr, TitleSir, TitleJedi}

// ParseTitle returns the Title for one of the six literal labels.
// Matching is case-sensitive.
func ParseTitle(label string) (Title, bool) {
	switch Title(label) {
	case TitleMr, TitleMrs, TitleMs, TitleDr, TitleSir, TitleJedi:
		return Title(label), true
	}
	return "", false
}

// Display returns the text shown in a greeting for this title.
func (t Title) Display() string {
	switch t {
	case TitleMr:
		return "Mr."
	case TitleMrs:
		return "Mrs."
	case TitleMs:
		return "Ms."
	case TitleDr:
		return "Dr."
	case TitleSir:
		return "Sir"
	case TitleJedi:
		return "Jedi"
	default:
		return string(t)
	}
}

// GreetingRequest is the decoded input for a single greeting stream.
// It is owned by one stream and discarded when the stream ends.
type GreetingRequest struct {
	// ID is the stream ID assigned by the transport. It is never decoded
	// from client input.
	ID string `json:"-"`

	Delay      uint64  `json:"delay"` // milliseconds between emissions
	Title      *Title  `json:"title,omitempty"`
	FirstName  string  `json:"first_name"`
	MiddleName *string `json:"middle_name,omitempty"`
	LastName   string  `json:"last_name"`
	Suffix     *string `json:"suffix,omitempty"`
}

// GreetingStatus is the terminal outcome of a greeting stream.
type GreetingStatus string

const (
	GreetingStatusCompleted GreetingStatus = "completed"
	GreetingStatusCancelled GreetingStatus = "cancelled"
)

// GreetingRecord is the history entry written after a stream ends.
type GreetingRecord struct {
	ID          string         `json:"id"`
	Object      string         `json:"object"`
	Status      GreetingStatus `json:"status"`
	Message     string         `json:"message"`
	Emissions   int            `json:"emissions"`
	DelayMS     uint64         `json:"delay_ms"`
	CreatedAt   int64          `json:"created_at"`
	CompletedAt int64          `json:"completed_at"`
}
