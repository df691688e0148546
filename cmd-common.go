package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rpcpool/hashdb/internal/changelog"
	"github.com/rpcpool/hashdb/internal/hashdb"
	"github.com/rpcpool/hashdb/internal/settings"
	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"
)

// withCommandMetrics wraps a *cli.Command's Action with the process-level
// command metrics from root metrics.go, the pattern every database command
// in this tree (all cmd-*.go files except cmd-version.go) uses instead of
// hand-rolling timing at each call site.
func withCommandMetrics(name string, action cli.ActionFunc) cli.ActionFunc {
	return func(c *cli.Context) error {
		metricsCommandsRun.WithLabelValues(name).Inc()
		start := time.Now()
		err := action(c)
		metricsCommandDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		if err != nil {
			metricsCommandErrors.WithLabelValues(name).Inc()
		}
		return err
	}
}

// openForWrite opens dir as an existing database and, on return, appends a
// history.xml entry recording the command line, run duration, and the
// change-log counters accumulated during the call, per spec.md §4.8. The
// caller's body runs with the opened manager; finish must be deferred
// immediately.
func openForWrite(c *cli.Context, dir string) (m *hashdb.Manager, finish func(*error), err error) {
	start := time.Now()
	m, err = hashdb.Open(dir)
	if err != nil {
		return nil, nil, err
	}
	cmdline := strings.Join(os.Args, " ")
	finish = func(outerErr *error) {
		snap := m.Counters()
		entry := settings.HistoryEntry{
			CommandLine:     cmdline,
			DurationSeconds: time.Since(start).Seconds(),
		}
		for _, f := range snap.AsFields() {
			entry.Counters = append(entry.Counters, settings.CounterField{Name: f.Name, Value: f.Value})
		}
		if err := settings.AppendHistory(dir, entry); err != nil {
			klog.Warningf("append history: %v", err)
		}
		if closeErr := m.Close(); closeErr != nil && *outerErr == nil {
			*outerErr = closeErr
		}
		printCounterSummary(snap)
	}
	return m, finish, nil
}

// printCounterSummary prints every nonzero change-log counter to stderr at
// command end, matching spec.md §7's "summarized at command end".
func printCounterSummary(snap changelog.Snapshot) {
	for _, f := range snap.AsFields() {
		if f.Value != 0 {
			fmt.Fprintf(os.Stderr, "%s: %d\n", f.Name, f.Value)
		}
	}
}

// requireArgs validates that c has exactly n positional arguments, per
// spec.md §6's CLI surface table.
func requireArgs(c *cli.Context, n int, usage string) ([]string, error) {
	if c.NArg() != n {
		return nil, fmt.Errorf("usage: %s", usage)
	}
	args := make([]string, n)
	for i := 0; i < n; i++ {
		args[i] = c.Args().Get(i)
	}
	return args, nil
}
