package stream

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/RishiKendai/plagscan/internal/models"
)

// StreamMessage is one entry read from the request stream.
type StreamMessage struct {
	ID     string
	Fields map[string]string
}

// ParseRequest builds a compare request from the fields of a stream entry.
// corpusPath is required; graphThreshold, when present, must lie in [0, 1].
func ParseRequest(msg *StreamMessage) (models.CompareRequest, error) {
	req := models.CompareRequest{
		RunID:         strings.TrimSpace(msg.Fields["runId"]),
		CorpusPath:    strings.TrimSpace(msg.Fields["corpusPath"]),
		TemplatePath:  strings.TrimSpace(msg.Fields["templatePath"]),
		RemovePattern: msg.Fields["removePattern"],
	}

	if req.CorpusPath == "" {
		return req, fmt.Errorf("message %s: corpusPath is required", msg.ID)
	}
	if req.RunID == "" {
		// Redeliveries of the same entry keep the same run.
		req.RunID = msg.ID
	}

	if raw := strings.TrimSpace(msg.Fields["graphThreshold"]); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return req, fmt.Errorf("message %s: invalid graphThreshold %q: %w", msg.ID, raw, err)
		}
		if v < 0 || v > 1 {
			return req, fmt.Errorf("message %s: graphThreshold %v outside [0, 1]", msg.ID, v)
		}
		req.GraphThreshold = &v
	}

	return req, nil
}
