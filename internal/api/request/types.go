package request

// CreateGuestRequest is the request body for creating a guest account
type CreateGuestRequest struct {
	DisplayName string `json:"display_name"`
}

// RegisterRequest is the request body for registering an account
type RegisterRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// LoginRequest is the request body for logging in
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// InitializeRequest is the request body for creating a progress record.
// Owner defaults to the caller.
type InitializeRequest struct {
	Owner string `json:"owner,omitempty"`
}

// CompleteLessonRequest is the request body for completing a lesson
type CompleteLessonRequest struct {
	LessonID string `json:"lesson_id"`
	Points   uint32 `json:"points"`
	Reward   uint64 `json:"reward,omitempty"`
}
