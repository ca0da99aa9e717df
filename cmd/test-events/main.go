package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/levelup/internal/testevents"
)

// Default configuration constants.
const (
	defaultNumEvents     = 1000
	defaultActivities    = 8
	defaultDuplicateRate = 5
	defaultWorkers       = 2 // multiplier for runtime.NumCPU()
	defaultTimeout       = 30 * time.Second
	defaultWait          = 2 * time.Minute
	defaultTestTimeout   = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		numEvents  = flag.Int("events", defaultNumEvents, "Number of events to generate and submit")
		activities = flag.Int("activities", defaultActivities, "Number of distinct activity ids")
		duplicates = flag.Int("duplicates", defaultDuplicateRate, "Percent of events re-sent with an earlier event id")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		wait       = flag.Duration("wait", defaultWait, "How long to wait for queued events to be applied")
		outputFile = flag.String("output", "", "Output file for generated events")
		logFile    = flag.String("log", "", "Log file for test output (default: test_log_TIMESTAMP.log)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		testevents.ShowHelp()
		return
	}

	if err := testevents.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	config := &testevents.Config{
		BaseURL:       *baseURL,
		NumEvents:     *numEvents,
		Activities:    *activities,
		DuplicateRate: *duplicates,
		Workers:       *workers,
		Timeout:       *timeout,
		WaitTimeout:   *wait,
		OutputFile:    *outputFile,
		LogFile:       *logFile,
		Verbose:       *verbose,
	}

	if err := testevents.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Test failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1) //nolint:gocritic // cancel already called
	}
}
