package models

// CompareRequest asks for a comparison run over a corpus directory. It is
// accepted both by the HTTP API and from the job stream.
type CompareRequest struct {
	RunID          string   `json:"runId,omitempty"`
	CorpusPath     string   `json:"corpusPath" binding:"required"`
	TemplatePath   string   `json:"templatePath,omitempty"`
	RemovePattern  string   `json:"removePattern,omitempty"`
	GraphThreshold *float64 `json:"graphThreshold,omitempty"`
}

// CompareResponse represents the response from compare endpoint
type CompareResponse struct {
	RunID string `json:"runId"`
	Step  Step   `json:"step"`
}

// StatusResponse reports the current step of a run.
type StatusResponse struct {
	RunID string `json:"runId"`
	Step  Step   `json:"step"`
}
