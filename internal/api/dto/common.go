package dto

// SuccessResponse is returned by endpoints that have nothing else to say
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
