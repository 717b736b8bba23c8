package main

import (
	"context"
	"flag"
	"log"
	"math/rand/v2"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/benchguard/benchguard/internal/api"
	"github.com/benchguard/benchguard/internal/grpc/enginev1"
	"github.com/benchguard/benchguard/internal/models"
)

// report-generator seeds a local benchguard with a threshold and a run of
// synthetic reports whose last one regresses.
func main() {
	var (
		addr      = flag.String("addr", "localhost:50051", "benchguard gRPC address")
		branch    = flag.String("branch", "main", "branch name")
		testbed   = flag.String("testbed", "localdev", "testbed name")
		benchmark = flag.String("benchmark", "bench/encode_json", "benchmark name")
		reports   = flag.Int("reports", 10, "number of baseline reports")
		spike     = flag.Float64("spike", 1.5, "latency multiplier of the final report")
	)
	flag.Parse()

	conn, err := grpc.NewClient(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("dial %s: %v", *addr, err)
	}
	defer conn.Close()
	client := enginev1.NewRegressionEngineClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	threshold, err := api.ToStruct(map[string]any{
		"branch":          *branch,
		"testbed":         *testbed,
		"kind":            string(models.KindLatency),
		"test":            "t_test",
		"min_sample_size": 2,
		"window":          "168h",
		"right_side":      0.05,
	})
	if err != nil {
		log.Fatalf("encode threshold: %v", err)
	}
	if _, err := client.PutThreshold(ctx, threshold); err != nil {
		log.Fatalf("put threshold: %v", err)
	}

	start := time.Now().Add(-time.Duration(*reports+1) * time.Hour)
	for i := 0; i <= *reports; i++ {
		duration := 1_000_000 + rand.Float64()*20_000
		if i == *reports {
			duration *= *spike
		}
		report := models.Report{
			Branch:        *branch,
			Testbed:       *testbed,
			VersionNumber: uint32(i + 1),
			StartTime:     start.Add(time.Duration(i) * time.Hour),
			EndTime:       start.Add(time.Duration(i)*time.Hour + time.Minute),
			Results: []models.BenchmarkResult{{
				Benchmark: *benchmark,
				Metrics:   models.BenchmarkMetrics{Latency: &models.Latency{Duration: uint64(duration)}},
			}},
		}
		req, err := api.ToStruct(report)
		if err != nil {
			log.Fatalf("encode report: %v", err)
		}
		resp, err := client.SubmitReport(ctx, req)
		if err != nil {
			log.Fatalf("submit report %d: %v", i+1, err)
		}
		var result models.ReportResult
		if err := api.FromStruct(resp, &result); err != nil {
			log.Fatalf("decode result: %v", err)
		}
		for _, sample := range result.Samples {
			log.Printf("version=%d benchmark=%s kind=%s outcome=%s alert=%s",
				report.VersionNumber, sample.Benchmark, sample.Kind, sample.Verdict.Outcome, sample.AlertID)
		}
	}
}
