package diag

import "fmt"

// Warning codes for non-fatal model diagnostics.
const (
	CodeSingleItem       = "W_SINGLE_ITEM"
	CodeAllItems         = "W_ALL_ITEMS"
	CodeUncompensable    = "W_UNCOMPENSABLE"
	CodeNegativeOrigin   = "W_NEGATIVE_ORIGIN"
	CodeNegativeDest     = "W_NEGATIVE_DESTINATION"
	CodeDegenerate       = "W_DEGENERATE"
	CodeMissingLandClass = "W_MISSING_LAND_CLASS"
)

type Warning struct {
	Code    string `json:"code"`
	Step    string `json:"step,omitempty"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	if w.Step == "" {
		return w.Code + ": " + w.Message
	}
	return w.Step + ": " + w.Code + ": " + w.Message
}

func New(code, format string, args ...any) Warning {
	return Warning{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Tag sets the step name on warnings that do not carry one yet.
func Tag(ws []Warning, step string) []Warning {
	for i := range ws {
		if ws[i].Step == "" {
			ws[i].Step = step
		}
	}
	return ws
}

// Has reports whether any warning carries code.
func Has(ws []Warning, code string) bool {
	for _, w := range ws {
		if w.Code == code {
			return true
		}
	}
	return false
}
