package plagiarism

import (
	"context"
	"fmt"

	"github.com/RishiKendai/plagscan/internal/corpus"
	"github.com/RishiKendai/plagscan/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Outputs names the files a run writes. Each one is kept out of the corpus
// only when the run actually produces it.
type Outputs struct {
	ResultFile  string
	SummaryFile string
	// FailedFile is written or, after a clean run, removed on every run.
	FailedFile string
	// GraphFile is only written when the request sets a graph threshold.
	GraphFile string
}

func (o Outputs) exclusions(req models.CompareRequest) []string {
	paths := []string{o.ResultFile, o.SummaryFile, o.FailedFile}
	if req.GraphThreshold != nil {
		paths = append(paths, o.GraphFile)
	}
	return paths
}

// Service prepares a run from a request: it compiles the removal pattern,
// loads the template once, lists the corpus and hands the documents to the
// engine.
type Service struct {
	engine         *Engine
	defaultPattern string
	outputs        Outputs
	logger         zerolog.Logger
}

// NewService creates a Service. A zero Outputs means the caller writes no
// files, so every file in the corpus directory is a document.
func NewService(engine *Engine, defaultPattern string, logger zerolog.Logger, outputs Outputs) *Service {
	return &Service{
		engine:         engine,
		defaultPattern: defaultPattern,
		outputs:        outputs,
		logger:         logger,
	}
}

// Compute runs one comparison. Configuration problems are returned as
// *ConfigError before any document is read.
func (s *Service) Compute(ctx context.Context, req models.CompareRequest) (*models.Report, error) {
	if req.CorpusPath == "" {
		return nil, &ConfigError{Field: "corpus path", Err: fmt.Errorf("empty path")}
	}

	pattern := req.RemovePattern
	if pattern == "" {
		pattern = s.defaultPattern
	}
	removePattern, err := CompilePattern(pattern)
	if err != nil {
		return nil, err
	}

	var template Template
	if req.TemplatePath != "" {
		template, err = LoadTemplate(req.TemplatePath, removePattern)
		if err != nil {
			return nil, err
		}
		s.logger.Info().Str("template", req.TemplatePath).Int("lines", len(template)).Msg("Template loaded")
	}

	exclude := append([]string{req.TemplatePath}, s.outputs.exclusions(req)...)
	paths, err := corpus.List(req.CorpusPath, exclude...)
	if err != nil {
		return nil, &ConfigError{Field: "corpus path", Err: err}
	}

	docs := make([]Document, len(paths))
	for i, p := range paths {
		docs[i] = NewDocument(p)
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	s.logger.Info().
		Str("runId", runID).
		Str("corpus", req.CorpusPath).
		Int("documents", len(docs)).
		Msg("Compare files start")

	report, err := s.engine.Run(ctx, runID, NewCanonicalizer(removePattern, template), docs)
	if err != nil {
		return nil, err
	}
	report.CorpusPath = req.CorpusPath
	report.GraphThreshold = req.GraphThreshold

	return report, nil
}
