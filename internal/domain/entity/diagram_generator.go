package entity

type GenerateRequest struct {
	Prompt      string `json:"prompt"`
	DiagramType string `json:"diagram_type,omitempty"`
}

type GenerateResponse struct {
	ID           int64  `json:"id"`
	DiagramCode  string `json:"diagram_code"`
	DiagramImage string `json:"diagram_image"`
}

// StatusEvent is published whenever a request row changes status.
type StatusEvent struct {
	ID           int64         `json:"id"`
	Prompt       string        `json:"prompt"`
	Status       RequestStatus `json:"status"`
	ErrorMessage string        `json:"error_message,omitempty"`
}
