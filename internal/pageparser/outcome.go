package pageparser

import "github.com/lingyjava/page-parser/internal/extracthtml"

// Outcome is the result of one ParsePage call. Exactly one of Data and
// Error is set.
type Outcome struct {
	Success bool                `json:"success"`
	Data    *extracthtml.Result `json:"data,omitempty"`
	Error   string              `json:"error,omitempty"`
}

func Succeeded(r *extracthtml.Result) Outcome {
	return Outcome{Success: true, Data: r}
}

func Failed(reason string) Outcome {
	return Outcome{Error: reason}
}
