// Command planrun executes a single plan document to completion (or resumes
// a prior run) and prints its summary as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"goa.design/clue/log"

	"goa.design/goa-ai/engine"
	"goa.design/goa-ai/telemetry"
)

func main() {
	var (
		planF        = flag.String("plan", "", "path to the plan document (JSON or YAML)")
		registryF    = flag.String("registry", "", "path to the tool manifest registry directory")
		runsF        = flag.String("runs", "./runs", "root directory for run artifacts")
		runIDF       = flag.String("run-id", "", "run id (a uuid is generated when empty)")
		resumeF      = flag.Bool("resume", false, "resume an existing, hash-compatible run")
		maxParallelF = flag.Int("max-parallel", 0, "override plan.execution.max_parallel")
		cacheRootF   = flag.String("cache", "", "content-addressed cache directory (disabled when empty)")
		warmupF      = flag.Bool("warmup", false, "warm up every tool before running the plan")
		dbgF         = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if *dbgF {
		ctx = log.Context(ctx, log.WithDebug())
	}

	if *planF == "" || *registryF == "" {
		log.Error(ctx, fmt.Errorf("-plan and -registry are required"))
		flag.Usage()
		os.Exit(15)
	}

	planSrc, err := os.ReadFile(*planF)
	if err != nil {
		log.Error(ctx, err, log.KV{K: "plan", V: *planF})
		os.Exit(15)
	}

	summary, err := engine.Run(ctx, engine.RunRequest{
		PlanSource:    planSrc,
		RegistryRoot:  *registryF,
		RunsDir:       *runsF,
		RunID:         *runIDF,
		Resume:        *resumeF,
		MaxParallel:   *maxParallelF,
		Warmup:        *warmupF,
		CacheRoot:     *cacheRootF,
		CacheRead:     *cacheRootF != "",
		CacheWrite:    *cacheRootF != "",
		Logger:        telemetry.NewClueLogger(),
		Metrics:       telemetry.NewNoopMetrics(),
		Tracer:        telemetry.NewNoopTracer(),
	})
	if err != nil {
		log.Error(ctx, err)
		os.Exit(engine.ExitCode(err))
	}

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		log.Error(ctx, err)
		os.Exit(15)
	}
	fmt.Println(string(out))
	os.Exit(engine.SummaryExitCode(summary))
}
