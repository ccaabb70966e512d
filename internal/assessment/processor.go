package assessment

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/cuongbtq/phantom-risk/internal/anonymization"
	"github.com/cuongbtq/phantom-risk/internal/assessment/domain"
	"github.com/cuongbtq/phantom-risk/internal/checkpoint"
	"github.com/cuongbtq/phantom-risk/internal/classifier"
	"github.com/cuongbtq/phantom-risk/internal/dataset"
	"github.com/cuongbtq/phantom-risk/internal/features"
	"github.com/cuongbtq/phantom-risk/internal/metrics"
	"github.com/cuongbtq/phantom-risk/internal/sampling"
	"github.com/cuongbtq/phantom-risk/internal/statistics"
)

// processor runs the train, test and predict pipeline for the jobs of one worker.
// Its population copy and random source are never shared.
type processor struct {
	worker        int
	shared        *jobContext
	population    *dataset.Dataset
	rng           *rand.Rand
	store         *checkpoint.Store
	anonymizer    anonymization.Anonymizer
	newClassifier ClassifierFactory
	aggregator    *Aggregator
	tracker       *tracker
	logger        *slog.Logger
	metrics       *metrics.Metrics
}

// testPoint is one held-out anonymized test sample
type testPoint struct {
	iteration int
	label     bool
	feature   features.Feature
	stats     statistics.Snapshot
}

// Process executes job to completion and records its results
func (p *processor) Process(ctx context.Context, job *domain.Job) error {
	p.logger.Debug("Processing job",
		slog.Int("worker", p.worker),
		slog.Int("run", job.Run),
		slog.Int("target", job.Target),
	)

	// Step 1: Private dictionary and classifier for this job
	dict := p.shared.dictionary.Clone()
	model, err := p.newClassifier(p.shared.classifierType)
	if err != nil {
		return fmt.Errorf("failed to create classifier: %w", err)
	}

	// Step 2: Train on background samples without and with the target
	for k := 0; k < p.shared.trainingCount; k++ {
		out, in, err := p.trainingPair(ctx, job, k)
		if err != nil {
			return err
		}
		if err := p.train(model, dict, out, false); err != nil {
			return err
		}
		if err := p.train(model, dict, in, true); err != nil {
			return err
		}
	}

	// Step 3: Hold out cohort samples without and with the target
	points := make([]testPoint, 0, 2*p.shared.testCount)
	for k := 0; k < p.shared.testCount; k++ {
		pair, err := p.testPair(ctx, job, k, dict)
		if err != nil {
			return err
		}
		points = append(points, pair[0], pair[1])
	}

	// Step 4: Close training
	if err := model.Compile(); err != nil {
		return fmt.Errorf("failed to compile classifier: %w", err)
	}

	// Step 5: Predict every held-out sample in one batch
	samples := make([]classifier.Sample, len(points))
	for i, pt := range points {
		samples[i] = pt.feature
	}
	predictions, err := model.Predict(samples...)
	if err != nil {
		return fmt.Errorf("failed to predict test samples: %w", err)
	}
	if len(predictions) != len(points) {
		return fmt.Errorf("classifier returned %d predictions for %d samples", len(predictions), len(points))
	}

	// Step 6: Record results
	for i, pt := range points {
		job.AddResult(domain.ResultRecord{
			Iteration:      pt.iteration,
			TrueLabel:      pt.label,
			PredictedLabel: predictions[i].Label,
			Confidence:     predictions[i].Confidence,
			Statistics:     pt.stats,
		})
	}
	p.aggregator.Record(job)
	p.tracker.advance(int64(2 * (p.shared.trainingCount + p.shared.testCount)))

	return nil
}

func (p *processor) train(model Classifier, dict *features.Dictionary, d *dataset.Dataset, label bool) error {
	f, err := p.shared.extractor.Extract(d, p.shared.attributes, dict)
	if err != nil {
		return fmt.Errorf("failed to extract training features: %w", err)
	}
	if err := model.Train(f, label); err != nil {
		return fmt.Errorf("failed to train classifier: %w", err)
	}
	return nil
}

// trainingPair loads or generates the anonymized training datasets of iteration k
func (p *processor) trainingPair(ctx context.Context, job *domain.Job, k int) (*dataset.Dataset, *dataset.Dataset, error) {
	outKey := checkpoint.IterationKey(checkpoint.TrainOut, job.Target, job.Run, k)
	inKey := checkpoint.IterationKey(checkpoint.TrainIn, job.Target, job.Run, k)

	if p.store.Exists(outKey) && p.store.Exists(inKey) {
		out, err := p.store.LoadDataset(outKey, p.shared.definition)
		if err != nil {
			return nil, nil, err
		}
		in, err := p.store.LoadDataset(inKey, p.shared.definition)
		if err != nil {
			return nil, nil, err
		}
		return out, in, nil
	}

	outIDs := sampling.SubSample(p.rng, job.Background, p.shared.trainingSize)
	inIDs, err := sampling.WithTarget(p.rng, outIDs, job.Target)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to insert target into training sample: %w", err)
	}

	_, out, err := p.anonymize(ctx, outIDs)
	if err != nil {
		return nil, nil, err
	}
	_, in, err := p.anonymize(ctx, inIDs)
	if err != nil {
		return nil, nil, err
	}

	p.store.SaveDataset(outKey, out, nil)
	p.store.SaveDataset(inKey, in, nil)
	return out, in, nil
}

// testPair loads or generates the anonymized test datasets of iteration k,
// with their quality statistics, and extracts their features
func (p *processor) testPair(ctx context.Context, job *domain.Job, k int, dict *features.Dictionary) ([2]testPoint, error) {
	var pair [2]testPoint
	keys := [2]checkpoint.Key{
		checkpoint.IterationKey(checkpoint.TestOut, job.Target, job.Run, k),
		checkpoint.IterationKey(checkpoint.TestIn, job.Target, job.Run, k),
	}

	var anonymized [2]*dataset.Dataset
	if p.store.Exists(keys[0]) && p.store.Exists(keys[1]) {
		for i, key := range keys {
			d, err := p.store.LoadDataset(key, p.shared.definition)
			if err != nil {
				return pair, err
			}
			stats, err := p.store.LoadStatistics(key)
			if err != nil {
				return pair, err
			}
			anonymized[i] = d
			pair[i].stats = stats
		}
	} else {
		outIDs := sampling.SubSample(p.rng, job.Cohort, p.shared.testSize)
		inIDs, err := sampling.WithTarget(p.rng, outIDs, job.Target)
		if err != nil {
			return pair, fmt.Errorf("failed to insert target into test sample: %w", err)
		}

		for i, ids := range [2]sampling.IDSet{outIDs, inIDs} {
			raw, anon, err := p.anonymize(ctx, ids)
			if err != nil {
				return pair, err
			}
			stats, err := statistics.Compute(p.shared.statistics, raw, anon)
			if err != nil {
				return pair, fmt.Errorf("failed to compute statistics: %w", err)
			}
			p.store.SaveDataset(keys[i], anon, &stats)
			anonymized[i] = anon
			pair[i].stats = stats
		}
	}

	for i := range pair {
		f, err := p.shared.extractor.Extract(anonymized[i], p.shared.attributes, dict)
		if err != nil {
			return pair, fmt.Errorf("failed to extract test features: %w", err)
		}
		pair[i].iteration = k
		pair[i].label = i == 1
		pair[i].feature = f
	}
	return pair, nil
}

// anonymize copies ids out of the worker's population and anonymizes the copy
func (p *processor) anonymize(ctx context.Context, ids sampling.IDSet) (*dataset.Dataset, *dataset.Dataset, error) {
	raw, err := p.population.Subset(ids)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to copy sample: %w", err)
	}
	anon, err := p.anonymizer.Anonymize(ctx, raw, p.shared.method)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to anonymize sample: %w", err)
	}
	p.metrics.Anonymization()
	return raw, anon, nil
}
