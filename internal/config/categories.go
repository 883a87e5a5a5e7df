package config

import (
	"os"

	"gopkg.in/yaml.v3"

	apperrors "github.com/GriffinCanCode/adscan/internal/errors"
	"github.com/GriffinCanCode/adscan/internal/similarity"
)

// CategoriesFile is the YAML form of CATEGORIES_FILE:
//
//	default_threshold: 0.25
//	normal_threshold: 0.25
//	weights: {pixel: 0.4, structural: 0.4, color: 0.2}
//	categories:
//	  - name: stake
//	    threshold: 0.35
//	  - name: acme
//
// Categories are scanned in file order. A category without a threshold uses
// the default.
type CategoriesFile struct {
	DefaultThreshold *float64           `yaml:"default_threshold"`
	NormalThreshold  *float64           `yaml:"normal_threshold"`
	Weights          *similarity.Weights `yaml:"weights"`
	Categories       []struct {
		Name      string   `yaml:"name"`
		Threshold *float64 `yaml:"threshold"`
	} `yaml:"categories"`
}

// applyCategoriesFile replaces the advertiser list with the file's categories
// and overrides any thresholds or weights it sets.
func (c *Config) applyCategoriesFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ConfigInvalid, "read categories file").WithMetadata("path", path)
	}
	var f CategoriesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return apperrors.Wrap(err, apperrors.ConfigInvalid, "parse categories file").WithMetadata("path", path)
	}

	if f.DefaultThreshold != nil {
		c.DefaultThreshold = *f.DefaultThreshold
	}
	if f.NormalThreshold != nil {
		c.NormalThreshold = *f.NormalThreshold
	}
	if f.Weights != nil {
		c.Weights = *f.Weights
	}
	if len(f.Categories) == 0 {
		return nil
	}

	c.Advertisers = make([]string, 0, len(f.Categories))
	c.Thresholds = make(map[string]float64)
	for _, cat := range f.Categories {
		c.Advertisers = append(c.Advertisers, cat.Name)
		if cat.Threshold != nil {
			c.Thresholds[cat.Name] = *cat.Threshold
		}
	}
	return nil
}
