package dto

type CreateRepairRequest struct {
	DeviceModel string `json:"device_model" binding:"required"`
	IssueID     string `json:"issue_id" binding:"required"`
	Description string `json:"description"`
	Address     string `json:"address" binding:"required"`
}

type CompleteStepRequest struct {
	Notes    string `json:"notes"`
	PhotoURL string `json:"photo_url"`
}

type SubmitPaymentRequest struct {
	Method string  `json:"method" binding:"required"`
	Amount float64 `json:"amount" binding:"required"`
}

type SubmitRatingRequest struct {
	Rating int    `json:"rating" binding:"required"`
	Note   string `json:"note"`
}

type ListRepairsRequest struct {
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListRepairsResponse struct {
	Repairs    []RepairDTO `json:"repairs"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

type StepDTO struct {
	StepID      string `json:"step_id"`
	Label       string `json:"label"`
	EstMinutes  int    `json:"est_minutes"`
	Completed   bool   `json:"completed"`
	CompletedAt string `json:"completed_at,omitempty"`
	Notes       string `json:"notes,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

type RepairDTO struct {
	RepairID                    string    `json:"repair_id"`
	CustomerID                  string    `json:"customer_id"`
	TechnicianID                string    `json:"technician_id,omitempty"`
	DeviceModel                 string    `json:"device_model"`
	IssueID                     string    `json:"issue_id"`
	Description                 string    `json:"description"`
	Address                     string    `json:"address"`
	Status                      string    `json:"status"`
	Steps                       []StepDTO `json:"steps_progress"`
	CustomerConfirmedHandover   bool      `json:"customer_confirmed_handover"`
	TechnicianConfirmedHandover bool      `json:"technician_confirmed_handover"`
	PaymentMethod               string    `json:"payment_method,omitempty"`
	PaymentStatus               string    `json:"payment_status"`
	Amount                      float64   `json:"amount"`
	PaidAt                      string    `json:"paid_at,omitempty"`
	Rating                      int       `json:"rating,omitempty"`
	RatingNote                  string    `json:"rating_note,omitempty"`
	CreatedAt                   string    `json:"created_at"`
	UpdatedAt                   string    `json:"updated_at"`
}
