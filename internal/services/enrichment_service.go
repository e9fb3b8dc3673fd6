package services

import (
	"context"
	"fmt"

	"galamsey-report-backend/internal/ai"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ReportClassifier is satisfied by *ai.Classifier.
type ReportClassifier interface {
	Classify(ctx context.Context, description string) (ai.Classification, error)
}

// EnrichmentStore writes the AI field group of a report and nothing else.
type EnrichmentStore interface {
	UpdateEnrichment(ctx context.Context, id uuid.UUID, summary, category string) error
}

// EnrichmentService attaches an AI summary and category to a persisted report.
type EnrichmentService struct {
	classifier ReportClassifier
	store      EnrichmentStore
	logger     zerolog.Logger
}

func NewEnrichmentService(classifier ReportClassifier, store EnrichmentStore, logger zerolog.Logger) *EnrichmentService {
	return &EnrichmentService{
		classifier: classifier,
		store:      store,
		logger:     logger.With().Str("component", "enrichment").Logger(),
	}
}

// Enrich classifies description and stores the result on reportID. When the
// model cannot be reached nothing is written and the AI fields stay null.
func (s *EnrichmentService) Enrich(ctx context.Context, reportID uuid.UUID, description string) error {
	result, err := s.classifier.Classify(ctx, description)
	if err != nil {
		return fmt.Errorf("failed to classify report %s: %w", reportID, err)
	}

	if err := s.store.UpdateEnrichment(ctx, reportID, result.Summary, result.Category); err != nil {
		return fmt.Errorf("failed to store classification for %s: %w", reportID, err)
	}

	s.logger.Info().
		Str("report_id", reportID.String()).
		Str("category", result.Category).
		Msg("report enriched")
	return nil
}
