package models

import "time"

// ===== API RESPONSE SHAPES =====

// RegistrationGroup is the group block of a registration response. It is
// emitted only when at least one assignment is set; removing the last
// assignment collapses the block entirely rather than leaving an empty
// structure.
type RegistrationGroup struct {
	Teaching *int `json:"teaching,omitempty"`
	Working  *int `json:"working,omitempty"`
}

type ValidationErrorResponse struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
	Rule    string      `json:"rule,omitempty"`
}

type ErrorResponse struct {
	Error            string                    `json:"error"`
	Message          string                    `json:"message"`
	Code             string                    `json:"code,omitempty"`
	Details          interface{}               `json:"details,omitempty"`
	Timestamp        time.Time                 `json:"timestamp"`
	Path             string                    `json:"path,omitempty"`
	ValidationErrors []ValidationErrorResponse `json:"validation_errors,omitempty"`
}

type SuccessResponse struct {
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}
