package policies

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/benchguard/benchguard/internal/models"
	"github.com/benchguard/benchguard/internal/utils"
)

// Seed is one threshold entry of the seed file.
type Seed struct {
	ID            string   `yaml:"id"`
	Branch        string   `yaml:"branch"`
	Testbed       string   `yaml:"testbed"`
	Kind          string   `yaml:"kind"`
	Test          string   `yaml:"test"`
	MinSampleSize uint32   `yaml:"minSampleSize"`
	MaxSampleSize uint32   `yaml:"maxSampleSize"`
	Window        string   `yaml:"window"`
	LeftSide      *float64 `yaml:"leftSide"`
	RightSide     *float64 `yaml:"rightSide"`
}

// SeedFile is the YAML root structure.
type SeedFile struct {
	Thresholds []Seed `yaml:"thresholds"`
}

// Writer stores thresholds.
type Writer interface {
	PutPolicy(ctx context.Context, policy models.ThresholdPolicy) (models.ThresholdPolicy, error)
}

// LoadFile reads threshold seeds from path. An empty path or a missing file
// yields no seeds.
func LoadFile(path string) ([]models.ThresholdPolicy, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return Parse(data)
}

// Parse decodes and validates a seed document.
func Parse(data []byte) ([]models.ThresholdPolicy, error) {
	var file SeedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, utils.ConfigError("policies.Parse", "decode threshold seeds", err)
	}

	out := make([]models.ThresholdPolicy, 0, len(file.Thresholds))
	for i, seed := range file.Thresholds {
		policy, err := seed.Policy()
		if err != nil {
			return nil, utils.ConfigError("policies.Parse", fmt.Sprintf("threshold #%d (%s/%s/%s)", i+1, seed.Branch, seed.Testbed, seed.Kind), err)
		}
		out = append(out, policy)
	}
	return out, nil
}

// Policy converts the seed into a validated ThresholdPolicy.
func (s Seed) Policy() (models.ThresholdPolicy, error) {
	kind, err := models.ParseMetricKind(s.Kind)
	if err != nil {
		return models.ThresholdPolicy{}, err
	}
	test, err := models.ParseTestKind(s.Test)
	if err != nil {
		return models.ThresholdPolicy{}, err
	}
	window, err := utils.ParseWindow(s.Window)
	if err != nil {
		return models.ThresholdPolicy{}, err
	}

	policy := models.ThresholdPolicy{
		ID:            s.ID,
		Branch:        s.Branch,
		Testbed:       s.Testbed,
		Kind:          kind,
		Test:          test,
		MinSampleSize: s.MinSampleSize,
		MaxSampleSize: s.MaxSampleSize,
		Window:        window,
		LeftSide:      s.LeftSide,
		RightSide:     s.RightSide,
	}
	if err := policy.Validate(); err != nil {
		return models.ThresholdPolicy{}, err
	}
	return policy, nil
}

// Apply puts every policy into w. It stops at the first failure and
// returns how many were stored.
func Apply(ctx context.Context, logger *slog.Logger, w Writer, policies []models.ThresholdPolicy) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	for i, policy := range policies {
		stored, err := w.PutPolicy(ctx, policy)
		if err != nil {
			return i, fmt.Errorf("seed threshold %s/%s/%s: %w", policy.Branch, policy.Testbed, policy.Kind, err)
		}
		logger.Info("threshold seeded",
			slog.String("threshold", stored.ID),
			slog.String("branch", stored.Branch),
			slog.String("testbed", stored.Testbed),
			slog.String("kind", string(stored.Kind)),
			slog.String("test", string(stored.Test)),
		)
	}
	return len(policies), nil
}
