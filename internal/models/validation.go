package models

import "strings"

// ValidationErrors collects every problem found in a request
type ValidationErrors []string

func (v ValidationErrors) Error() string {
	return "validation failed: " + strings.Join(v, "; ")
}
