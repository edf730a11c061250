package repair

// Event names published after a committed mutation. Each mutating
// operation publishes exactly one of these, after its store write
// succeeded, never before.
const (
	EventIncomingRepair    = "incoming_repair"
	EventRepairAccepted    = "repair_accepted"
	EventStepUpdated       = "step_updated"
	EventHandoverConfirmed = "handover_confirmed"
	EventRepairUpdated     = "repair_updated"
)

// IncomingRepairPayload announces a new PENDING repair to technicians.
type IncomingRepairPayload struct {
	RepairID    string `json:"repair_id"`
	DeviceModel string `json:"device_model"`
	Issue       string `json:"issue"`
	Description string `json:"description"`
	CustomerID  string `json:"customer_id"`
}

// RepairAcceptedPayload tells the customer who claimed their repair.
type RepairAcceptedPayload struct {
	RepairID       string `json:"repair_id"`
	TechnicianID   string `json:"technician_id"`
	TechnicianName string `json:"technician_name"`
}

// StepUpdatedPayload reports a completed checklist step.
type StepUpdatedPayload struct {
	RepairID  string `json:"repair_id"`
	StepID    string `json:"step_id"`
	Completed bool   `json:"completed"`
	Notes     string `json:"notes,omitempty"`
	PhotoURL  string `json:"photo_url,omitempty"`
}

// HandoverConfirmedPayload reports which party acknowledged handover.
type HandoverConfirmedPayload struct {
	RepairID string `json:"repair_id"`
	By       string `json:"by"`
}

// repair_updated carries the full repair snapshot (domain.Repair).
