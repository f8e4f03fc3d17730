package models

// UnselectedWorker is a worker intentionally left out of a batch
type UnselectedWorker struct {
	WorkerID string           `json:"worker_id"`
	Reason   UnselectedReason `json:"reason"`
	Notes    string           `json:"notes,omitempty"`
}

// CreateAssignmentsInput is the body of a batch creation request
type CreateAssignmentsInput struct {
	WorkerIDs    []string `json:"worker_ids"`
	AssignedDate string   `json:"assigned_date"`
	Team         string   `json:"team"`
	DueTime      string   `json:"due_time,omitempty"`
	Notes        string   `json:"notes,omitempty"`
	// SupervisorID lets an administrator create a batch on a team leader's behalf
	SupervisorID      string             `json:"supervisor_id,omitempty"`
	UnselectedWorkers []UnselectedWorker `json:"unselected_workers,omitempty"`
}

// UpdateAssignmentInput is the body of a PATCH request
type UpdateAssignmentInput struct {
	Status       *Status `json:"status,omitempty"`
	Notes        *string `json:"notes,omitempty"`
	SubmissionID *string `json:"submission_id,omitempty"`
}

// AssignmentFilter narrows assignment listings
type AssignmentFilter struct {
	SupervisorID string
	WorkerID     string
	Team         string
	Date         string
	From         string
	To           string
	Status       Status
}

// CreateUserInput bootstraps an account
type CreateUserInput struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	Role        Role   `json:"role"`
	Team        string `json:"team"`
	DisplayName string `json:"display_name"`
}
