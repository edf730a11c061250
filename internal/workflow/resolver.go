// Package workflow resolves a (device model, issue) pair to the ordered
// checklist template a repair is created with. The table is consulted
// exactly once, at creation; the resulting snapshot never changes shape.
package workflow

import "strings"

// StepTemplate is one entry of a workflow template.
type StepTemplate struct {
	StepID     string
	Label      string
	EstMinutes int
}

// ResolverFunc maps a device model and issue id to an ordered step
// template. An unknown combination yields nil.
type ResolverFunc func(deviceModel, issueID string) []StepTemplate

// templates is keyed by normalized "<device>|<issue>".
var templates = map[string][]StepTemplate{
	key("iPhone 13", "cracked_screen"): {
		{StepID: "diagnose", Label: "Diagnose display and digitizer", EstMinutes: 10},
		{StepID: "power_down", Label: "Power down and discharge", EstMinutes: 5},
		{StepID: "open_housing", Label: "Open housing and disconnect battery", EstMinutes: 15},
		{StepID: "replace_screen", Label: "Replace screen assembly", EstMinutes: 30},
		{StepID: "reassemble", Label: "Reassemble and seal housing", EstMinutes: 15},
		{StepID: "function_test", Label: "Run touch and display tests", EstMinutes: 10},
		{StepID: "customer_signoff", Label: "Demonstrate to customer", EstMinutes: 5},
	},
	key("iPhone 13", "battery_drain"): {
		{StepID: "diagnose", Label: "Run battery health diagnostics", EstMinutes: 10},
		{StepID: "open_housing", Label: "Open housing and disconnect battery", EstMinutes: 15},
		{StepID: "replace_battery", Label: "Replace battery", EstMinutes: 20},
		{StepID: "reassemble", Label: "Reassemble and seal housing", EstMinutes: 15},
		{StepID: "function_test", Label: "Verify charge cycle", EstMinutes: 10},
	},
	key("Galaxy S22", "cracked_screen"): {
		{StepID: "diagnose", Label: "Diagnose display and digitizer", EstMinutes: 10},
		{StepID: "heat_separate", Label: "Heat and separate back glass", EstMinutes: 20},
		{StepID: "replace_screen", Label: "Replace AMOLED assembly", EstMinutes: 35},
		{StepID: "reglue", Label: "Re-glue and clamp housing", EstMinutes: 20},
		{StepID: "function_test", Label: "Run touch and display tests", EstMinutes: 10},
		{StepID: "customer_signoff", Label: "Demonstrate to customer", EstMinutes: 5},
	},
	key("Galaxy S22", "charging_port"): {
		{StepID: "diagnose", Label: "Inspect charging port and cable", EstMinutes: 10},
		{StepID: "open_housing", Label: "Open housing", EstMinutes: 15},
		{StepID: "replace_port", Label: "Replace charging sub-board", EstMinutes: 25},
		{StepID: "reassemble", Label: "Reassemble housing", EstMinutes: 15},
		{StepID: "function_test", Label: "Verify fast charge", EstMinutes: 5},
	},
	key("MacBook Air M2", "battery_drain"): {
		{StepID: "diagnose", Label: "Run battery diagnostics", EstMinutes: 15},
		{StepID: "open_bottom", Label: "Remove bottom case", EstMinutes: 10},
		{StepID: "replace_battery", Label: "Replace battery pack", EstMinutes: 30},
		{StepID: "reassemble", Label: "Refit bottom case", EstMinutes: 10},
		{StepID: "calibrate", Label: "Calibrate and verify", EstMinutes: 20},
	},
}

// Resolve returns the ordered step template for the given device model
// and issue, or nil when the combination is unknown. Matching is
// case-insensitive and whitespace-tolerant.
func Resolve(deviceModel, issueID string) []StepTemplate {
	tmpl, ok := templates[key(deviceModel, issueID)]
	if !ok {
		return nil
	}
	// Callers own their copy; the table itself never mutates.
	out := make([]StepTemplate, len(tmpl))
	copy(out, tmpl)
	return out
}

func key(deviceModel, issueID string) string {
	return strings.ToLower(strings.TrimSpace(deviceModel)) + "|" + strings.ToLower(strings.TrimSpace(issueID))
}
