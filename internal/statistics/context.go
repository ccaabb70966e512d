package statistics

import (
	"fmt"

	"github.com/cuongbtq/phantom-risk/internal/config"
	"github.com/cuongbtq/phantom-risk/internal/dataset"
)

// Context is the read-only information every worker needs to compute statistics.
// It is built once per assessment and shared by reference.
type Context struct {
	qis         []*dataset.Attribute
	categorical []*dataset.Attribute
	continuous  []*dataset.Attribute
	sensitive   []*dataset.Attribute
	features    []string
	target      string
}

// NewContext classifies the quasi-identifiers of def by data type. Any data type
// other than categorical, continuous or date is rejected.
func NewContext(def *dataset.Definition, cfg *config.StatisticsConfig) (*Context, error) {
	ctx := &Context{
		qis:       def.QuasiIdentifiers(),
		sensitive: def.Sensitive(),
	}

	for _, attr := range ctx.qis {
		switch attr.DataType {
		case config.DataTypeCategorical:
			ctx.categorical = append(ctx.categorical, attr)
		case config.DataTypeContinuous, config.DataTypeDate:
			ctx.continuous = append(ctx.continuous, attr)
		default:
			return nil, fmt.Errorf("%w: %q for attribute %s", dataset.ErrUnsupportedAttributeType, attr.DataType, attr.Name)
		}
	}

	if cfg != nil {
		for _, name := range append([]string{cfg.TargetAttribute}, cfg.FeatureAttributes...) {
			if _, ok := def.Attribute(name); !ok {
				return nil, fmt.Errorf("statistics attribute %s is not part of the dataset", name)
			}
		}
		ctx.features = cfg.FeatureAttributes
		ctx.target = cfg.TargetAttribute
	}

	return ctx, nil
}

// QuasiIdentifiers returns the attributes equivalence classes are formed over
func (c *Context) QuasiIdentifiers() []*dataset.Attribute {
	return c.qis
}

// HasClassification reports whether a statistics config was supplied
func (c *Context) HasClassification() bool {
	return c.target != ""
}
