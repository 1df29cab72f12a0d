package query

import "fmt"

// GrammarError reports a filter fragment that could not be parsed.
// Parse returns it unwrapped so callers can show Error() next to the input.
type GrammarError struct {
	Fragment string
	Reason   string
}

func (e *GrammarError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid filter condition: %s", e.Fragment)
	}
	return fmt.Sprintf("invalid filter condition: %s: %s", e.Fragment, e.Reason)
}
