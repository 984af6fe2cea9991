package common

import (
	"encoding/json"
	"os"
	"time"
)

// CIResult is the machine-readable report the admin tools print in --ci
// mode, one JSON document per invocation.
type CIResult struct {
	OK         bool      `json:"ok"`
	Task       string    `json:"task"`
	Details    []string  `json:"details,omitempty"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

func PrintCIResult(ok bool, task string, details []string, err error) {
	result := CIResult{OK: ok, Task: task, Details: details, FinishedAt: time.Now().UTC()}
	if err != nil {
		result.Error = err.Error()
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
}
