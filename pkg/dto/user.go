package dto

// UserResponse describes one enrolled user.
type UserResponse struct {
	UserID     string `json:"user_id"`
	Name       string `json:"name"`
	EnrolledAt string `json:"enrolled_at"`
}

// EnrollResponse is returned after successful enrollment.
type EnrollResponse struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}
