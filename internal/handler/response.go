// Package handler holds the shared HTTP response envelope.
package handler

// Response is the envelope every endpoint returns: a status discriminator,
// an error message when status is "error", and the payload otherwise.
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{Status: "success", Data: data}
}

func NewErrorResponse(message string) *Response {
	return &Response{Status: "error", Message: message}
}
