package workflow

import (
	"context"

	"go.uber.org/zap"

	"github.com/fabrica-labs/fabrica/internal/metrics"
)

// GenerateStage requests one batch of records per invocation and accumulates
// them on the state. It is idempotent with respect to already-generated
// records: retries never regenerate or discard prior batches.
type GenerateStage struct {
	generator Generator
	batchSize int
	logger    *zap.Logger
}

// NewGenerateStage wires the batch generation stage.
func NewGenerateStage(generator Generator, batchSize int, logger *zap.Logger) *GenerateStage {
	return &GenerateStage{
		generator: generator,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Run generates the next batch.
//
// The clamp keeps the final batch at exactly the remaining quota; an empty
// batch is terminal so a stalled generation service cannot spin the loop.
func (g *GenerateStage) Run(ctx context.Context, s *GenerationState) {
	if s.TotalBatches == 0 {
		s.TotalBatches = totalBatches(s.NumRecords, g.batchSize)
		s.CurrentBatch = 0
		g.logger.Info("Initialized generation",
			zap.String("run_id", s.RunID),
			zap.Int("total_batches", s.TotalBatches),
		)
	}

	remaining := s.NumRecords - len(s.GeneratedData)
	if remaining <= 0 {
		// Guard against an extra invocation after the quota is already met.
		s.Status = StatusGenerationCompleted
		return
	}

	batchSize := g.batchSize
	if remaining < batchSize {
		batchSize = remaining
	}

	g.logger.Info("Generating batch",
		zap.String("run_id", s.RunID),
		zap.Int("batch", s.CurrentBatch+1),
		zap.Int("total_batches", s.TotalBatches),
		zap.Int("batch_size", batchSize),
	)

	records, err := g.generator.Generate(ctx, GenerateRequest{
		Domain:   s.Domain,
		Format:   s.DataFormat,
		Count:    batchSize,
		Research: parseResearch(s.DomainResearch),
		Context:  s.Context,
	})
	if err != nil || len(records) == 0 {
		if err != nil {
			g.logger.Error("Batch generation failed",
				zap.String("run_id", s.RunID),
				zap.Int("batch", s.CurrentBatch+1),
				zap.Error(err),
			)
		} else {
			g.logger.Warn("Generation service returned no records",
				zap.String("run_id", s.RunID),
				zap.Int("batch", s.CurrentBatch+1),
			)
		}
		s.fail(StatusGenerationFailed, "Failed to generate data batch")
		return
	}

	s.GeneratedData = append(s.GeneratedData, records...)
	s.CurrentBatch++
	metrics.BatchesGenerated.Inc()
	metrics.RecordsGenerated.Add(float64(len(records)))

	if len(s.GeneratedData) >= s.NumRecords {
		s.Status = StatusGenerationCompleted
		g.logger.Info("Data generation completed",
			zap.String("run_id", s.RunID),
			zap.Int("records", len(s.GeneratedData)),
		)
	} else {
		s.Status = StatusGenerating
		g.logger.Info("Generation progress",
			zap.String("run_id", s.RunID),
			zap.Int("generated", len(s.GeneratedData)),
			zap.Int("target", s.NumRecords),
		)
	}
}

// totalBatches is ceil(numRecords / batchSize).
func totalBatches(numRecords, batchSize int) int {
	return (numRecords + batchSize - 1) / batchSize
}
