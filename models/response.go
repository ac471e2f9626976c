package models

// Response is the envelope returned by every API endpoint. ErrorCode carries
// the machine-readable error kind (see internal/family errors) so clients can
// render an actionable message.
type Response struct {
	Success      int         `json:"success"`
	ErrorCode    string      `json:"error_code,omitempty"`
	ErrorDetails string      `json:"error_details,omitempty"`
	Data         interface{} `json:"data,omitempty"`
}
