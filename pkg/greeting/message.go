package greeting

import (
	"strings"

	"github.com/rhuss/greetings/pkg/api"
)

const salutation = "Greetings, "

// Fragments returns the ordered pieces of the greeting for req. Their
// concatenation is the full greeting.
func Fragments(req *api.GreetingRequest) []string {
	fragments := make([]string, 0, 6)
	fragments = append(fragments, salutation)
	if req.Title != nil {
		fragments = append(fragments, req.Title.Display()+" ")
	}
	fragments = append(fragments, req.FirstName+" ")
	if req.MiddleName != nil {
		fragments = append(fragments, *req.MiddleName+" ")
	}
	fragments = append(fragments, req.LastName)
	if req.Suffix != nil {
		fragments = append(fragments, " "+*req.Suffix+"!")
	} else {
		fragments = append(fragments, "!")
	}
	return fragments
}

// Message concatenates fragments.
func Message(fragments []string) string {
	return strings.Join(fragments, "")
}
