package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fluxfuzzer/fluxscan/internal/config"
	"github.com/fluxfuzzer/fluxscan/internal/issues"
	"github.com/fluxfuzzer/fluxscan/internal/queue"
	"github.com/fluxfuzzer/fluxscan/internal/rawreq"
	"github.com/fluxfuzzer/fluxscan/internal/report"
	"github.com/fluxfuzzer/fluxscan/internal/ui"
	"github.com/fluxfuzzer/fluxscan/pkg/types"
)

type scanFlags struct {
	url         string
	method      string
	data        string
	headers     []string
	rawFile     string
	scheme      string
	tui         bool
	output      string
	format      string
	concurrency int
	throttle    time.Duration
	rps         int
	timeout     time.Duration
	payloads    string
}

func newScanCmd() *cobra.Command {
	var f scanFlags

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Actively scan a single request",
		Long: `Send the base request once for passive checks, then mutate each
query and body parameter with the payload catalog.

Examples:
  fluxscan scan -u "https://example.com/search?q=test"
  fluxscan scan -u https://example.com/login -X POST -d "user=a&pass=b"
  fluxscan scan -r request.txt --scheme http -o report.html --format html`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			f.apply(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			base, err := f.baseRequest(cfg)
			if err != nil {
				return err
			}
			return runScan(cmd.Context(), cmd.OutOrStdout(), cfg, base)
		},
	}

	cmd.Flags().StringVarP(&f.url, "url", "u", "", "Target URL including query string")
	cmd.Flags().StringVarP(&f.method, "method", "X", "", "HTTP method")
	cmd.Flags().StringVarP(&f.data, "data", "d", "", "Request body")
	cmd.Flags().StringArrayVarP(&f.headers, "header", "H", nil, `Request header ("Name: value"), repeatable`)
	cmd.Flags().StringVarP(&f.rawFile, "request", "r", "", "Read the base request from a raw HTTP file")
	cmd.Flags().StringVar(&f.scheme, "scheme", "https", "Scheme used with --request")
	cmd.Flags().BoolVar(&f.tui, "tui", false, "Show the interactive dashboard")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Write a report to this file")
	cmd.Flags().StringVar(&f.format, "format", "", "Report format (json, jsonl, html)")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 0, "Maximum concurrent scans")
	cmd.Flags().DurationVar(&f.throttle, "throttle", 0, "Pause between mutated requests")
	cmd.Flags().IntVar(&f.rps, "rps", 0, "Requests per second limit (0 = unlimited)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Per-request timeout")
	cmd.Flags().StringVar(&f.payloads, "payloads", "", "YAML payload catalog replacing the built-in one")

	return cmd
}

// apply overrides cfg with the flags set on the command line
func (f *scanFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("url") {
		cfg.Target.URL = f.url
	}
	if flags.Changed("method") {
		cfg.Target.Method = f.method
	}
	if flags.Changed("data") {
		cfg.Target.Body = f.data
	}
	if flags.Changed("tui") {
		cfg.Output.EnableTUI = f.tui
	}
	if flags.Changed("output") {
		cfg.Output.OutputFile = f.output
	}
	if flags.Changed("format") {
		cfg.Output.Format = f.format
	}
	if flags.Changed("concurrency") {
		cfg.Scanner.MaxConcurrentScans = f.concurrency
	}
	if flags.Changed("throttle") {
		cfg.Scanner.Throttle = f.throttle
	}
	if flags.Changed("rps") {
		cfg.Engine.RPS = f.rps
	}
	if flags.Changed("timeout") {
		cfg.Engine.Timeout = f.timeout
	}
	if flags.Changed("payloads") {
		cfg.Scanner.PayloadsFile = f.payloads
	}
	if verbose {
		cfg.Output.Verbose = true
	}
}

// baseRequest builds the request to scan from --request or the target config
func (f *scanFlags) baseRequest(cfg *config.Config) (*types.BaseRequest, error) {
	if f.rawFile != "" {
		return rawreq.ReadFile(f.rawFile, f.scheme)
	}
	if cfg.Target.URL == "" {
		return nil, errors.New("a target is required: use --url or --request")
	}

	names := make([]string, 0, len(cfg.Target.Headers))
	for name := range cfg.Target.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	headers := make(types.Headers, 0, len(names)+len(f.headers))
	for _, name := range names {
		headers = append(headers, types.Param{Name: name, Value: cfg.Target.Headers[name]})
	}
	for _, h := range f.headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			return nil, fmt.Errorf("invalid header %q: expected \"Name: value\"", h)
		}
		headers = append(headers, types.Param{Name: strings.TrimSpace(name), Value: strings.TrimSpace(value)})
	}

	var body []byte
	if cfg.Target.Body != "" {
		body = []byte(cfg.Target.Body)
		if _, ok := headers.Get("Content-Type"); !ok {
			headers = append(headers, types.Param{Name: "Content-Type", Value: "application/x-www-form-urlencoded"})
		}
	}
	return types.NewBaseRequest(cfg.Target.Method, cfg.Target.URL, headers, body)
}

func runScan(parent context.Context, out io.Writer, cfg *config.Config, base *types.BaseRequest) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logOut := io.Writer(os.Stderr)
	if cfg.Output.EnableTUI {
		logOut = io.Discard
	}
	logger := newLogger(logOut, cfg.Output.Verbose)

	collector := report.NewCollector()
	var sink issues.Sink = collector
	var notifier queue.Notifier = collector

	var bridge *ui.Bridge
	tuiDone := make(chan error, 1)
	if cfg.Output.EnableTUI {
		program := ui.NewProgram(ui.NewDashboard(base.FullURL()))
		bridge = ui.NewBridge(program)
		sink = issues.Fanout(collector, bridge)
		notifier = queue.Fanout(collector, bridge)

		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(ctx)
		defer cancel()
		go func() {
			_, err := program.Run()
			cancel()
			tuiDone <- err
		}()
	}

	a, err := newApp(cfg, logger, sink, notifier)
	if err != nil {
		return err
	}
	a.manager.Start(ctx)

	logger.Info("scan started", slog.String("method", base.Method), slog.String("url", base.FullURL()))
	started := time.Now()
	scanErr := scan(ctx, a, base)
	a.Close()

	if bridge != nil {
		bridge.Close()
		if err := <-tuiDone; err != nil {
			logger.Error("dashboard failed", slog.Any("error", err))
		}
	}
	if scanErr != nil && !errors.Is(scanErr, context.Canceled) {
		return scanErr
	}

	rep := collector.Report("FluxScan Report", base.FullURL())
	rep.Statistics.Duration = time.Since(started)
	stats := a.client.Stats()
	rep.Statistics.TotalRequests = stats.TotalRequests
	rep.Statistics.FailedRequests = stats.FailedRequests
	logger.Info("scan finished",
		slog.Int("issues", len(rep.Issues)),
		slog.Duration("duration", rep.Statistics.Duration),
	)

	if cfg.Output.OutputFile != "" {
		path, err := report.NewManager().WriteFile(rep, cfg.Output.Format, cfg.Output.OutputFile)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Report written to %s\n", path)
		return nil
	}
	printSummary(out, rep)
	return nil
}

// scan records base, runs the passive checks and waits for the active scan
func scan(ctx context.Context, a *app, base *types.BaseRequest) error {
	id, err := a.observe(ctx, base)
	if err != nil {
		// The active scan still runs when the baseline probe fails.
		a.logger.Warn("passive checks skipped", slog.Any("error", err))
	}
	if _, err := a.manager.OnScanRequested(ctx, id); err != nil {
		return err
	}
	return a.manager.Wait(ctx)
}

func printSummary(w io.Writer, rep *report.Report) {
	fmt.Fprintf(w, "\n%s\n", rep.TargetURL)
	for _, s := range rep.Scans {
		fmt.Fprintf(w, "  %s  %s\n", s.ScanID, s.Status)
	}
	if len(rep.Issues) == 0 {
		fmt.Fprintln(w, "\nNo issues found.")
		return
	}
	fmt.Fprintf(w, "\n%d issue(s):\n", len(rep.Issues))
	for _, issue := range rep.Issues {
		fmt.Fprintf(w, "  [%s/%s] %s\n", issue.Severity, issue.Confidence, issue.Title)
	}
}
