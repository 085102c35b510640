package dto

import "time"

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error     string    `json:"error" example:"Demand not found"`
	Message   string    `json:"message" example:"No demand found with ID: 3f1c2b7e"`
	Timestamp time.Time `json:"timestamp" example:"2026-01-18T12:34:56Z"`
}

// NewError builds an ErrorResponse stamped with the current time
func NewError(title, message string) ErrorResponse {
	return ErrorResponse{Error: title, Message: message, Timestamp: time.Now()}
}
