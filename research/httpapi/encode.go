package httpapi

import (
	"encoding/json"

	"github.com/opencode-ai/orchestrator/research"
)

func stepJSON(s research.Step) string {
	b, err := json.Marshal(s)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func taskJSON(t research.Task) string {
	b, err := json.Marshal(t)
	if err != nil {
		return "{}"
	}
	return string(b)
}
