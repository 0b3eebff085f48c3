package errors

import "sort"

// Template defines a registered error type.
type Template struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]Template{
	// Configuration (R100-R149)
	"R100": {
		Category: CategoryConfig,
		Message:  "Config file not found",
	},
	"R101": {
		Category: CategoryConfig,
		Message:  "Invalid config file",
	},
	"R102": {
		Category: CategoryConfig,
		Message:  "Invalid config value",
	},
	"R103": {
		Category: CategoryConfig,
		Message:  "Invalid environment override",
	},

	// State files (R200-R249)
	"R200": {
		Category: CategoryState,
		Message:  "State file not found",
	},
	"R201": {
		Category: CategoryState,
		Message:  "Invalid state file",
	},
	"R202": {
		Category: CategoryState,
		Message:  "Unsupported state file format",
		Detail:   "State files must end in .json or .hcl",
	},

	// Snapshots (R300-R349)
	"R300": {
		Category: CategorySnapshot,
		Message:  "Snapshot not found",
	},
	"R301": {
		Category: CategorySnapshot,
		Message:  "Snapshot backend failed",
	},

	// Server (R400-R449)
	"R400": {
		Category: CategoryServer,
		Message:  "Server failed",
	},

	// CLI (R500-R549)
	"R500": {
		Category: CategoryCLI,
		Message:  "Invalid assignment",
	},
	"R501": {
		Category: CategoryCLI,
		Message:  "Invalid route",
	},
	"R502": {
		Category: CategoryCLI,
		Message:  "State update failed",
	},
	"R503": {
		Category: CategoryCLI,
		Message:  "Invalid command line",
	},
	"R504": {
		Category: CategoryCLI,
		Message:  "Unknown error code",
	},
}

// Codes returns all registered error codes, sorted.
func Codes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}
