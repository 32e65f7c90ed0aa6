package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/nao1215/linkcrawl/internal/config"
	"github.com/nao1215/linkcrawl/internal/crawler"
	"github.com/nao1215/linkcrawl/internal/httpclient"
	applog "github.com/nao1215/linkcrawl/internal/log"
	"github.com/nao1215/linkcrawl/internal/model"
	"github.com/nao1215/linkcrawl/internal/report"
	"github.com/spf13/cobra"
)

// errCrawlFailed marks a seed whose crawl ended with an error.
var errCrawlFailed = errors.New("crawl failed")

// errInvalidHeader is returned for a -H value that is not "Name: value".
var errInvalidHeader = errors.New("invalid header: expected \"Name: value\"")

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <url>...",
		Short: "Discover the URLs reachable from seed pages",
		Long: `Crawl fetches each seed URL and follows the links on its pages breadth first.

The depth budget counts fetched pages: with --depth N at most N+1 pages are
fetched per seed, and every link found on them is reported. With --parallel
the crawl instead proceeds layer by layer and --depth counts layers.

Links are resolved as follows:
- "/path" is joined with the page URL
- "#fragment" and "" stand for the page itself
- anything else is kept verbatim

By default the first error aborts the crawl of a seed. Use
--continue-on-error to record failing pages and keep going.

Examples:
  # Crawl a site three pages deep
  linkcrawl crawl https://example.com/

  # Crawl several seeds, two at a time, with a JSON report
  linkcrawl crawl -b 2 --json https://a.example/ https://b.example/

  # Send a header and retry server errors three times
  linkcrawl crawl -H "Authorization: Bearer TOKEN" -r 3 https://example.com/

  # Fetch up to 8 pages of a layer in parallel
  linkcrawl crawl --parallel 8 -d 2 https://example.com/`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	cmd.Flags().IntP("depth", "d", config.DefaultDepth,
		"Depth budget")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().IntP("max-retry", "r", config.DefaultMaxRetry,
		"Attempts per request when the server answers 5xx")
	cmd.Flags().Duration("retry-delay", config.DefaultRetryDelay,
		"Delay between attempts")
	cmd.Flags().Int("max-connections", config.DefaultMaxConnections,
		"Maximum concurrent connections per origin")
	cmd.Flags().Bool("verify-tls", false,
		"Verify TLS certificates")
	cmd.Flags().StringArrayP("header", "H", nil,
		`Header sent with every request, "Name: value" (repeatable)`)
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header")
	cmd.Flags().String("socks5", "",
		"Route connections through a SOCKS5 proxy (host:port)")
	cmd.Flags().Bool("continue-on-error", false,
		"Record failing pages and keep crawling")
	cmd.Flags().Int("parallel", 0,
		"Fetch up to N pages of a layer in parallel (0 = sequential)")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of seeds crawled concurrently")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum bytes read from one page")

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .linkcrawl in current or home directory)")

	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().BoolP("urls-only", "u", false,
		"Print only the discovered URLs, one per line")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().Bool("tee", false,
		"With --output, also print the report to stdout")
	cmd.Flags().Bool("log-json", false,
		"Write logs to stderr as JSON")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	opts, err := buildOptions(cmd, args)
	if err != nil {
		return err
	}
	if err := opts.cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := applog.NewSecureLogger(cmd.ErrOrStderr(), opts.cfg.Verbose)
	if opts.logJSON {
		logger = applog.NewSecureJSONLogger(cmd.ErrOrStderr(), opts.cfg.Verbose)
	}
	slog.SetDefault(logger)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, opts, cmd.OutOrStdout(), logger)
}

// crawlOptions is the validated configuration plus which settings were
// given on the command line. Explicit flags win over the config file.
type crawlOptions struct {
	cfg *config.Config

	depthSet     bool
	verifyTLSSet bool
	userAgentSet bool
	urlsOnly     bool
	tee          bool
	logJSON      bool
}

// targetSettings are the effective settings for one seed.
type targetSettings struct {
	depth     int
	verifyTLS bool
	userAgent string
	headers   map[string]string
}

// settingsFor merges the config file entry for target under the flags.
func (o *crawlOptions) settingsFor(target string) (targetSettings, error) {
	site := o.cfg.SiteFor(target)

	s := targetSettings{
		depth:     o.cfg.Depth,
		verifyTLS: o.cfg.VerifyTLS,
		userAgent: o.cfg.UserAgent,
		headers:   make(map[string]string, len(site.Headers)+len(o.cfg.Headers)),
	}
	if !o.depthSet && site.Depth != nil {
		s.depth = *site.Depth
	}
	if s.depth < 0 {
		return targetSettings{}, fmt.Errorf("%w: %d for %s", config.ErrInvalidDepth, s.depth, target)
	}
	if !o.verifyTLSSet && site.VerifyTLS != nil {
		s.verifyTLS = *site.VerifyTLS
	}
	if !o.userAgentSet && site.UserAgent != "" {
		s.userAgent = site.UserAgent
	}
	maps.Copy(s.headers, site.Headers)
	maps.Copy(s.headers, o.cfg.Headers)

	return s, nil
}

// buildOptions creates the crawl options from cobra command flags.
func buildOptions(cmd *cobra.Command, args []string) (*crawlOptions, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()
	var err error

	if cfg.Depth, err = flags.GetInt("depth"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.MaxRetry, err = flags.GetInt("max-retry"); err != nil {
		return nil, err
	}
	if cfg.RetryDelay, err = flags.GetDuration("retry-delay"); err != nil {
		return nil, err
	}
	if cfg.MaxConnections, err = flags.GetInt("max-connections"); err != nil {
		return nil, err
	}
	if cfg.VerifyTLS, err = flags.GetBool("verify-tls"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.SOCKS5Proxy, err = flags.GetString("socks5"); err != nil {
		return nil, err
	}
	if cfg.ContinueOnError, err = flags.GetBool("continue-on-error"); err != nil {
		return nil, err
	}
	if cfg.Parallelism, err = flags.GetInt("parallel"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	urlsOnly, err := flags.GetBool("urls-only")
	if err != nil {
		return nil, err
	}
	tee, err := flags.GetBool("tee")
	if err != nil {
		return nil, err
	}
	logJSON, err := flags.GetBool("log-json")
	if err != nil {
		return nil, err
	}

	rawHeaders, err := flags.GetStringArray("header")
	if err != nil {
		return nil, err
	}
	if cfg.Headers, err = parseHeaders(rawHeaders); err != nil {
		return nil, err
	}

	cfg.Verbose = getVerboseFlag(cmd)

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	// An explicitly named config file must exist; a discovered one is optional.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	cfg.Targets = args

	return &crawlOptions{
		cfg:          cfg,
		depthSet:     flags.Changed("depth"),
		verifyTLSSet: flags.Changed("verify-tls"),
		userAgentSet: flags.Changed("user-agent"),
		urlsOnly:     urlsOnly,
		tee:          tee,
		logJSON:      logJSON,
	}, nil
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// parseHeaders turns "Name: value" strings into a header map.
func parseHeaders(raw []string) (map[string]string, error) {
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: %q", errInvalidHeader, h)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

// runCrawl crawls every target and writes the report. It returns an error
// when any target failed, after the report has been written.
func runCrawl(ctx context.Context, opts *crawlOptions, stdout io.Writer, logger *slog.Logger) error {
	cfg := opts.cfg

	targets := make([]crawler.Target, len(cfg.Targets))
	settings := make(map[string]targetSettings, len(cfg.Targets))
	for i, u := range cfg.Targets {
		s, err := opts.settingsFor(u)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		settings[u] = s
		targets[i] = crawler.Target{URL: u, MaxDepth: s.depth}
	}

	logger.Info("starting crawl",
		"targets", len(targets),
		"batch_size", cfg.BatchSize,
		"parallelism", cfg.Parallelism,
	)

	factory := func(target crawler.Target) (*crawler.Crawler, error) {
		return newCrawler(cfg, settings[target.URL], logger)
	}
	batch := crawler.NewBatchCrawler(factory,
		crawler.WithConcurrency(cfg.BatchSize),
		crawler.WithBatchLogger(logger),
	)

	reports, err := batch.ProcessBatch(ctx, targets)
	if err != nil {
		return err
	}

	if err := outputReports(opts, stdout, reports); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return crawlErrors(reports)
}

// newCrawler builds a crawler with its own connection pool.
func newCrawler(cfg *config.Config, s targetSettings, logger *slog.Logger) (*crawler.Crawler, error) {
	clientOpts := []httpclient.Option{
		httpclient.WithHeaders(s.headers),
		httpclient.WithUserAgent(s.userAgent),
		httpclient.WithVerifyTLS(s.verifyTLS),
		httpclient.WithTimeout(cfg.Timeout),
		httpclient.WithMaxRetry(cfg.MaxRetry),
		httpclient.WithRetryDelay(cfg.RetryDelay),
		httpclient.WithMaxConnections(cfg.MaxConnections),
		httpclient.WithLogger(logger),
	}
	if cfg.SOCKS5Proxy != "" {
		clientOpts = append(clientOpts, httpclient.WithSOCKS5Proxy(cfg.SOCKS5Proxy))
	}

	client, err := httpclient.New(clientOpts...)
	if err != nil {
		return nil, err
	}

	return crawler.New(client,
		crawler.WithLogger(logger),
		crawler.WithContinueOnError(cfg.ContinueOnError),
		crawler.WithMaxBodySize(cfg.MaxBodySize),
		crawler.WithLayered(cfg.Parallelism),
	), nil
}

// crawlErrors joins the errors of every failed report.
func crawlErrors(reports []*model.CrawlReport) error {
	var errs []error
	for _, r := range reports {
		if !r.Succeeded() {
			errs = append(errs, fmt.Errorf("%w: %s: %s", errCrawlFailed, r.BaseURL, r.Error))
		}
	}
	return errors.Join(errs...)
}

// outputReports writes the reports in the configured format, to the report
// file when one is set. With tee the file and stdout get the same report.
func outputReports(opts *crawlOptions, stdout io.Writer, reports []*model.CrawlReport) (err error) {
	cfg := opts.cfg
	writer := newReportWriter(opts, stdout)

	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create report directory: %w", err)
			}
		}

		f, openErr := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if openErr != nil {
			return fmt.Errorf("failed to create report file: %w", openErr)
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}()
		writer = newReportWriter(opts, f)
		if opts.tee {
			writer = report.NewMultiWriter(writer, newReportWriter(opts, stdout))
		}
	}

	if len(reports) == 1 {
		_, err = writer.Write(reports[0])
		return err
	}
	_, err = writer.WriteAll(reports)
	return err
}

// newReportWriter returns the writer for the configured report format.
func newReportWriter(opts *crawlOptions, output io.Writer) report.Writer {
	cfg := opts.cfg

	var writer report.Writer
	switch {
	case cfg.JSONReport:
		writer = report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		writer = report.NewMarkdownWriter(output)
	default:
		writer = report.NewSimpleWriter(output,
			report.WithVerbose(cfg.Verbose),
			report.WithURLsOnly(opts.urlsOnly),
		)
	}
	return writer
}
