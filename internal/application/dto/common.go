package dto

// ErrorResponse is the body of every HTTP error.
type ErrorResponse struct {
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Messages []string `json:"messages,omitempty"` // one per failed Schematron assertion
}
