package model

import "time"

// WizardState is the onboarding wizard progress for one user. It is owned by
// the caller and persisted explicitly; nothing keeps it in process memory.
type WizardState struct {
	UserID         string            `json:"user_id"`
	Step           int               `json:"step"`
	ResumeMD       string            `json:"resume_md,omitempty"`
	JobDescription string            `json:"job_description,omitempty"`
	Fields         map[string]string `json:"fields,omitempty"`
	UpdatedAt      time.Time         `json:"updated_at"`
}
