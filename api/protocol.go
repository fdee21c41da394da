package api

const postCommandMaxSize = 64 * 1024 // 64 KiB

// POST /api/commands response body
type postCommandResponse struct {
	IdempotencyKeys []string `json:"idempotencyKeys,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// POST /api/applications/:id/move request and response bodies
type moveRequest struct {
	Target string `json:"target"`
}

type moveResponse struct {
	Moved          bool   `json:"moved"`
	Status         string `json:"status,omitempty"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}
