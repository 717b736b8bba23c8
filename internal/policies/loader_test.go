package policies

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benchguard/benchguard/internal/models"
	"github.com/benchguard/benchguard/internal/utils"
)

const seedYAML = `
thresholds:
  - branch: main
    testbed: ci-linux
    kind: latency
    test: t_test
    minSampleSize: 2
    maxSampleSize: 64
    window: 720h
    rightSide: 0.05
  - branch: main
    testbed: ci-linux
    kind: Throughput
    test: z
    minSampleSize: 5
    maxSampleSize: 30
    window: "604800"
    leftSide: 0.01
`

type recordingWriter struct {
	put []models.ThresholdPolicy
	err error
}

func (w *recordingWriter) PutPolicy(ctx context.Context, policy models.ThresholdPolicy) (models.ThresholdPolicy, error) {
	if w.err != nil {
		return models.ThresholdPolicy{}, w.err
	}
	policy.ID = "stored"
	w.put = append(w.put, policy)
	return policy, nil
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.yaml")
	if err := os.WriteFile(path, []byte(seedYAML), 0o600); err != nil {
		t.Fatalf("write seed file: %v", err)
	}

	policies, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(policies) != 2 {
		t.Fatalf("expected 2 policies, got %d", len(policies))
	}

	latency := policies[0]
	if latency.Kind != models.KindLatency || latency.Test != models.TestTTest || latency.Window != 720*time.Hour {
		t.Fatalf("unexpected latency policy: %+v", latency)
	}
	if latency.LeftSide != nil || latency.RightSide == nil || *latency.RightSide != 0.05 {
		t.Fatalf("unexpected sides: %+v", latency)
	}

	throughput := policies[1]
	if throughput.Kind != models.KindThroughput || throughput.Window != 7*24*time.Hour || *throughput.LeftSide != 0.01 {
		t.Fatalf("unexpected throughput policy: %+v", throughput)
	}
}

func TestLoadFileMissing(t *testing.T) {
	policies, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil || policies != nil {
		t.Fatalf("expected no seeds for missing file, got %v err=%v", policies, err)
	}
	policies, err = LoadFile("")
	if err != nil || policies != nil {
		t.Fatalf("expected no seeds for empty path")
	}
}

func TestParseRejectsInvalidSeeds(t *testing.T) {
	cases := map[string]string{
		"unknown kind": `
thresholds:
  - {branch: main, testbed: ci, kind: energy, test: z, minSampleSize: 1, maxSampleSize: 2, window: 1h, rightSide: 0.1}`,
		"no sides": `
thresholds:
  - {branch: main, testbed: ci, kind: latency, test: z, minSampleSize: 1, maxSampleSize: 2, window: 1h}`,
		"min above max": `
thresholds:
  - {branch: main, testbed: ci, kind: latency, test: z, minSampleSize: 3, maxSampleSize: 2, window: 1h, rightSide: 0.1}`,
		"bad window": `
thresholds:
  - {branch: main, testbed: ci, kind: latency, test: z, minSampleSize: 1, maxSampleSize: 2, window: soon, rightSide: 0.1}`,
		"malformed": `thresholds: [`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); utils.KindOf(err) != utils.KindConfig {
				t.Fatalf("expected config error, got %v", err)
			}
		})
	}
}

func TestApply(t *testing.T) {
	policies, err := Parse([]byte(seedYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	w := &recordingWriter{}
	n, err := Apply(context.Background(), nil, w, policies)
	if err != nil || n != 2 || len(w.put) != 2 {
		t.Fatalf("Apply: n=%d err=%v put=%d", n, err, len(w.put))
	}

	failing := &recordingWriter{err: errors.New("read-only")}
	if n, err := Apply(context.Background(), nil, failing, policies); err == nil || n != 0 {
		t.Fatalf("expected failure on first put, got n=%d err=%v", n, err)
	}
}
