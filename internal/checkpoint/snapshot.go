package checkpoint

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cuongbtq/phantom-risk/internal/config"
)

// Snapshot file names, one per directory layer
const (
	DataConfigFile          = "DataConfig.yml"
	AnonymizationConfigFile = "AnonymizationConfig.yml"
	RiskConfigFile          = "RiskAssessmentConfig.yml"
)

// Layer names a level of the checkpoint directory tree
type Layer string

const (
	LayerData           Layer = "data"
	LayerAnonymization  Layer = "anonymization"
	LayerRiskAssessment Layer = "risk assessment"
)

var (
	// ErrConfigIncompatible is returned when a saved snapshot contradicts the requested configuration
	ErrConfigIncompatible = errors.New("configuration incompatible with checkpoint data")

	// ErrCheckpointLoad is returned when a checkpoint artifact cannot be read back
	ErrCheckpointLoad = errors.New("failed to load checkpoint")
)

// IncompatibleConfigError lists the fields that differ at one layer
type IncompatibleConfigError struct {
	Layer  Layer
	Dir    string
	Fields []string
}

func (e *IncompatibleConfigError) Error() string {
	return fmt.Sprintf("%s config in %s does not match saved checkpoint config: %s",
		e.Layer, e.Dir, strings.Join(e.Fields, ", "))
}

func (e *IncompatibleConfigError) Unwrap() error {
	return ErrConfigIncompatible
}

// Snapshot is the configuration triple checkpoint data was generated under
type Snapshot struct {
	Data          *config.DataConfig
	Anonymization *config.AnonymizationConfig
	Risk          *config.RiskAssessmentConfig
}

// Dirs returns the data, anonymization and risk assessment layer directories under root
func (s Snapshot) Dirs(root string) (string, string, string) {
	data := filepath.Join(root, s.Data.DataSetName)
	anon := filepath.Join(data, s.Anonymization.Name)
	return data, anon, filepath.Join(anon, s.Risk.Name)
}

// ValidateCompatibility compares every field that changes the meaning of
// saved data. Layers missing from saved are skipped.
func ValidateCompatibility(saved, requested Snapshot) error {
	if saved.Data != nil {
		if fields := CompareData(saved.Data, requested.Data); len(fields) > 0 {
			return &IncompatibleConfigError{Layer: LayerData, Fields: fields}
		}
	}
	if saved.Anonymization != nil {
		if fields := CompareAnonymization(saved.Anonymization, requested.Anonymization); len(fields) > 0 {
			return &IncompatibleConfigError{Layer: LayerAnonymization, Fields: fields}
		}
	}
	if saved.Risk != nil {
		if fields := CompareRisk(saved.Risk, requested.Risk); len(fields) > 0 {
			return &IncompatibleConfigError{Layer: LayerRiskAssessment, Fields: fields}
		}
	}
	return nil
}

// CompareData returns the names of mismatching data config fields
func CompareData(saved, requested *config.DataConfig) []string {
	var fields []string
	if !strings.EqualFold(saved.DataSetName, requested.DataSetName) {
		fields = append(fields, "dataSetName")
	}
	if !strings.EqualFold(saved.DataCsvFile, requested.DataCsvFile) {
		fields = append(fields, "dataCsvFile")
	}
	if len(saved.AttributeConfigs) != len(requested.AttributeConfigs) {
		fields = append(fields, "attributeConfigs")
	}
	return fields
}

// CompareAnonymization returns the names of mismatching anonymization config fields
func CompareAnonymization(saved, requested *config.AnonymizationConfig) []string {
	var fields []string
	if !strings.EqualFold(saved.Name, requested.Name) {
		fields = append(fields, "name")
	}
	if saved.Suppression() != requested.Suppression() {
		fields = append(fields, "suppressionLimit")
	}
	if saved.HeuristicSearchStepLimit != requested.HeuristicSearchStepLimit {
		fields = append(fields, "heuristicSearchStepLimit")
	}
	if saved.HeuristicSearchTimeLimit != requested.HeuristicSearchTimeLimit {
		fields = append(fields, "heuristicSearchTimeLimit")
	}
	if algorithm(saved) != algorithm(requested) {
		fields = append(fields, "anonymizationAlgorithm")
	}
	if saved.LocalGeneralization != requested.LocalGeneralization {
		fields = append(fields, "localGeneralization")
	}
	if saved.LocalGeneralizationIterations != requested.LocalGeneralizationIterations {
		fields = append(fields, "localGeneralizationIterations")
	}
	return fields
}

func algorithm(c *config.AnonymizationConfig) string {
	if c.AnonymizationAlgorithm == "" {
		return config.AlgorithmOptimal
	}
	return c.AnonymizationAlgorithm
}

// CompareRisk returns the names of mismatching risk assessment config fields
func CompareRisk(saved, requested *config.RiskAssessmentConfig) []string {
	var fields []string
	if saved.SizeCohortFraction != requested.SizeCohortFraction {
		fields = append(fields, "sizeCohortFraction")
	}
	if saved.SizeCohort != requested.SizeCohort {
		fields = append(fields, "sizeCohort")
	}
	if saved.SizeBackgroundFraction != requested.SizeBackgroundFraction {
		fields = append(fields, "sizeBackgroundFraction")
	}
	if saved.SizeBackground != requested.SizeBackground {
		fields = append(fields, "sizeBackground")
	}
	if saved.Overlap != requested.Overlap {
		fields = append(fields, "overlap")
	}
	if saved.SizeSampleTraining != requested.SizeSampleTraining {
		fields = append(fields, "sizeSampleTraining")
	}
	if saved.SizeSampleTest != requested.SizeSampleTest {
		fields = append(fields, "sizeSampleTest")
	}
	if saved.TargetType != requested.TargetType {
		fields = append(fields, "targetType")
	}
	return fields
}

// initLayers validates every layer against its saved snapshot. A layer
// without a snapshot gets the requested config written as its baseline and
// disables reuse of saved data for this run.
func initLayers(root string, requested Snapshot, logger *slog.Logger) (bool, error) {
	dataDir, anonDir, riskDir := requested.Dirs(root)
	useSaved := true

	layers := []struct {
		layer   Layer
		dir     string
		file    string
		current any
		compare func(saved []byte) ([]string, error)
	}{
		{
			layer: LayerData, dir: dataDir, file: DataConfigFile, current: requested.Data,
			compare: func(raw []byte) ([]string, error) {
				var saved config.DataConfig
				err := yaml.Unmarshal(raw, &saved)
				return CompareData(&saved, requested.Data), err
			},
		},
		{
			layer: LayerAnonymization, dir: anonDir, file: AnonymizationConfigFile, current: requested.Anonymization,
			compare: func(raw []byte) ([]string, error) {
				var saved config.AnonymizationConfig
				err := yaml.Unmarshal(raw, &saved)
				return CompareAnonymization(&saved, requested.Anonymization), err
			},
		},
		{
			layer: LayerRiskAssessment, dir: riskDir, file: RiskConfigFile, current: requested.Risk,
			compare: func(raw []byte) ([]string, error) {
				var saved config.RiskAssessmentConfig
				err := yaml.Unmarshal(raw, &saved)
				return CompareRisk(&saved, requested.Risk), err
			},
		},
	}

	var missing []int
	for i, l := range layers {
		path := filepath.Join(l.dir, l.file)
		raw, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			missing = append(missing, i)
			continue
		}
		if err != nil {
			return false, fmt.Errorf("failed to read %s snapshot: %w", l.layer, err)
		}

		fields, err := l.compare(raw)
		if err != nil {
			return false, fmt.Errorf("failed to parse %s snapshot %s: %w", l.layer, path, err)
		}
		if len(fields) > 0 {
			return false, &IncompatibleConfigError{Layer: l.layer, Dir: l.dir, Fields: fields}
		}
	}

	// baselines are written only once every existing layer is known to be compatible
	for _, i := range missing {
		l := layers[i]
		path := filepath.Join(l.dir, l.file)
		logger.Warn("No checkpoint snapshot found, writing baseline",
			slog.String("layer", string(l.layer)),
			slog.String("path", path))
		if err := config.WriteYAML(path, l.current); err != nil {
			return false, fmt.Errorf("failed to write %s snapshot: %w", l.layer, err)
		}
		useSaved = false
	}

	return useSaved, nil
}
