package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/linkcrawl/internal/config"
	"github.com/nao1215/linkcrawl/internal/report"
)

// newSite serves a small linked site. "/" links to /p1 and to itself,
// /p1 links to /p2, /broken links to a relative page that cannot be
// fetched.
func newSite(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `<html><body><a href="/p1">one</a><a href="#top">top</a></body></html>`)
	})
	mux.HandleFunc("/p1", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<a href="/p2">two</a>`)
	})
	mux.HandleFunc("/p2", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<p>leaf</p>`)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<a href="about.html">about</a>`)
	})
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<a href="/%s">h</a>`, r.Header.Get("X-Token"))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// runRoot executes the root command with args and returns stdout.
func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), err
}

func decodeJSONReport(t *testing.T, out string) report.JSONReport {
	t.Helper()

	var got report.JSONReport
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	return got
}

// TestNewCrawlCmd tests the crawl command creation.
func TestNewCrawlCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCrawlCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "crawl <url>..." {
			t.Errorf("expected use 'crawl <url>...', got %q", cmd.Use)
		}
	})

	t.Run("has long description", func(t *testing.T) {
		t.Parallel()
		if cmd.Long == "" {
			t.Error("expected non-empty long description")
		}
	})

	flags := []struct {
		name      string
		shorthand string
		defValue  string
	}{
		{"depth", "d", "3"},
		{"timeout", "t", "5s"},
		{"max-retry", "r", "1"},
		{"retry-delay", "", "100ms"},
		{"max-connections", "", "10"},
		{"verify-tls", "", "false"},
		{"header", "H", "[]"},
		{"socks5", "", ""},
		{"continue-on-error", "", "false"},
		{"parallel", "", "0"},
		{"batch", "b", "1"},
		{"max-body-size", "", "10485760"},
		{"config", "c", ""},
		{"json", "j", "false"},
		{"markdown", "m", "false"},
		{"urls-only", "u", "false"},
		{"output", "o", ""},
		{"tee", "", "false"},
		{"log-json", "", "false"},
	}
	for _, tt := range flags {
		t.Run("has "+tt.name+" flag", func(t *testing.T) {
			t.Parallel()
			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Fatalf("expected %s flag", tt.name)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("expected shorthand %q, got %q", tt.shorthand, flag.Shorthand)
			}
			if flag.DefValue != tt.defValue {
				t.Errorf("expected default %q, got %q", tt.defValue, flag.DefValue)
			}
		})
	}
}

func TestParseHeaders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     []string
		want    map[string]string
		wantErr bool
	}{
		{
			name: "name and value",
			raw:  []string{"Authorization: Bearer abc", "X-Trace:1"},
			want: map[string]string{"Authorization": "Bearer abc", "X-Trace": "1"},
		},
		{
			name: "value may contain colons",
			raw:  []string{"Referer: http://example.com:8080/"},
			want: map[string]string{"Referer": "http://example.com:8080/"},
		},
		{
			name: "empty value",
			raw:  []string{"X-Empty:"},
			want: map[string]string{"X-Empty": ""},
		},
		{
			name:    "missing colon",
			raw:     []string{"NoColon"},
			wantErr: true,
		},
		{
			name:    "empty name",
			raw:     []string{" : value"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseHeaders(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, errInvalidHeader) {
					t.Fatalf("expected errInvalidHeader, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("header %s = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestCrawlOptionsSettingsFor(t *testing.T) {
	t.Parallel()

	verify := true
	depth, zero, negative := 7, 0, -2
	cfg := config.NewConfig()
	cfg.Headers = map[string]string{"X-Cli": "cli", "X-Both": "cli"}
	cfg.SiteConfigs = &config.File{
		Defaults: config.SiteConfig{Headers: map[string]string{"X-Default": "d"}},
		Sites: map[string]config.SiteConfig{
			"https://example.com": {
				Depth:     &depth,
				VerifyTLS: &verify,
				UserAgent: "site-agent",
				Headers:   map[string]string{"X-Both": "site"},
			},
			"https://seed-only.test": {Depth: &zero},
			"https://broken.test":    {Depth: &negative},
		},
	}

	t.Run("config file applies when flags are unset", func(t *testing.T) {
		t.Parallel()

		opts := &crawlOptions{cfg: cfg}
		s, err := opts.settingsFor("https://example.com/start")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if s.depth != 7 {
			t.Errorf("depth = %d, want 7", s.depth)
		}
		if !s.verifyTLS {
			t.Error("expected TLS verification from the site entry")
		}
		if s.userAgent != "site-agent" {
			t.Errorf("user agent = %q, want site-agent", s.userAgent)
		}
		want := map[string]string{"X-Default": "d", "X-Both": "cli", "X-Cli": "cli"}
		for k, v := range want {
			if s.headers[k] != v {
				t.Errorf("header %s = %q, want %q", k, s.headers[k], v)
			}
		}
	})

	t.Run("explicit flags win", func(t *testing.T) {
		t.Parallel()

		opts := &crawlOptions{cfg: cfg, depthSet: true, verifyTLSSet: true, userAgentSet: true}
		s, err := opts.settingsFor("https://example.com/start")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if s.depth != config.DefaultDepth {
			t.Errorf("depth = %d, want %d", s.depth, config.DefaultDepth)
		}
		if s.verifyTLS {
			t.Error("expected the flag value for TLS verification")
		}
		if s.userAgent != config.DefaultUserAgent {
			t.Errorf("user agent = %q, want default", s.userAgent)
		}
	})

	t.Run("other origins get defaults only", func(t *testing.T) {
		t.Parallel()

		opts := &crawlOptions{cfg: cfg}
		s, err := opts.settingsFor("http://example.com/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if s.depth != config.DefaultDepth {
			t.Errorf("depth = %d, want %d", s.depth, config.DefaultDepth)
		}
		if s.headers["X-Default"] != "d" {
			t.Error("expected default headers")
		}
	})

	t.Run("site depth zero crawls only the seed", func(t *testing.T) {
		t.Parallel()

		opts := &crawlOptions{cfg: cfg}
		s, err := opts.settingsFor("https://seed-only.test/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.depth != 0 {
			t.Errorf("depth = %d, want 0", s.depth)
		}
	})

	t.Run("negative site depth is rejected", func(t *testing.T) {
		t.Parallel()

		opts := &crawlOptions{cfg: cfg}
		if _, err := opts.settingsFor("https://broken.test/"); !errors.Is(err, config.ErrInvalidDepth) {
			t.Errorf("expected ErrInvalidDepth, got %v", err)
		}
	})
}

func TestRunCrawlCmd(t *testing.T) {
	t.Parallel()

	t.Run("json report of a single seed", func(t *testing.T) {
		t.Parallel()
		srv := newSite(t)
		seed := srv.URL + "/"

		out, err := runRoot(t, "crawl", "-d", "0", "--json", seed)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got := decodeJSONReport(t, out)
		if got.Version == "" {
			t.Error("expected version in report")
		}
		if len(got.Reports) != 1 {
			t.Fatalf("expected 1 report, got %d", len(got.Reports))
		}
		r := got.Reports[0]
		want := []string{seed, srv.URL + "/p1"}
		if strings.Join(r.Visited, ",") != strings.Join(want, ",") {
			t.Errorf("visited = %v, want %v", r.Visited, want)
		}
		if r.PagesFetched != 1 {
			t.Errorf("pages fetched = %d, want 1", r.PagesFetched)
		}
	})

	t.Run("depth budget counts pages", func(t *testing.T) {
		t.Parallel()
		srv := newSite(t)
		seed := srv.URL + "/"

		out, err := runRoot(t, "crawl", "-d", "1", "-u", seed)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := seed + "\n" + srv.URL + "/p1\n" + srv.URL + "/p2\n"
		if out != want {
			t.Errorf("got %q, want %q", out, want)
		}
	})

	t.Run("layered crawl counts layers", func(t *testing.T) {
		t.Parallel()
		srv := newSite(t)
		seed := srv.URL + "/"

		out, err := runRoot(t, "crawl", "-d", "2", "--parallel", "2", "--json", seed)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		r := decodeJSONReport(t, out).Reports[0]
		if r.Mode != "layered" {
			t.Errorf("mode = %q, want layered", r.Mode)
		}
		if len(r.Visited) != 3 {
			t.Errorf("visited = %v, want 3 URLs", r.Visited)
		}
	})

	t.Run("headers are sent", func(t *testing.T) {
		t.Parallel()
		srv := newSite(t)

		out, err := runRoot(t, "crawl", "-d", "0", "-u", "-H", "X-Token: secret", srv.URL+"/echo")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, srv.URL+"/secret\n") {
			t.Errorf("expected header echoed into a link, got %q", out)
		}
	})

	t.Run("failed crawl returns an error after writing the report", func(t *testing.T) {
		t.Parallel()
		srv := newSite(t)

		out, err := runRoot(t, "crawl", "-d", "1", "--json", srv.URL+"/broken")
		if !errors.Is(err, errCrawlFailed) {
			t.Fatalf("expected errCrawlFailed, got %v", err)
		}

		r := decodeJSONReport(t, out).Reports[0]
		if r.Error == "" {
			t.Error("expected error in report")
		}
		if len(r.Visited) != 0 {
			t.Errorf("expected no visited URLs on failure, got %v", r.Visited)
		}
	})

	t.Run("continue on error keeps going", func(t *testing.T) {
		t.Parallel()
		srv := newSite(t)

		out, err := runRoot(t, "crawl", "-d", "1", "--continue-on-error", "--json", srv.URL+"/broken")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		r := decodeJSONReport(t, out).Reports[0]
		if len(r.Failed) != 1 || r.Failed[0].URL != "about.html" {
			t.Errorf("failed = %v, want about.html", r.Failed)
		}
	})

	t.Run("batch keeps seed order", func(t *testing.T) {
		t.Parallel()
		srv := newSite(t)
		seeds := []string{srv.URL + "/p1", srv.URL + "/", srv.URL + "/p2"}

		args := append([]string{"crawl", "-d", "0", "-b", "3", "--json"}, seeds...)
		out, err := runRoot(t, args...)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got := decodeJSONReport(t, out)
		if len(got.Reports) != len(seeds) {
			t.Fatalf("expected %d reports, got %d", len(seeds), len(got.Reports))
		}
		for i, r := range got.Reports {
			if r.BaseURL != seeds[i] {
				t.Errorf("report %d is for %s, want %s", i, r.BaseURL, seeds[i])
			}
		}
	})

	t.Run("markdown report", func(t *testing.T) {
		t.Parallel()
		srv := newSite(t)

		out, err := runRoot(t, "crawl", "-d", "0", "-m", srv.URL+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "# Crawl Report") {
			t.Errorf("expected markdown heading, got %q", out)
		}
	})

	t.Run("writes report file", func(t *testing.T) {
		t.Parallel()
		srv := newSite(t)
		path := filepath.Join(t.TempDir(), "reports", "crawl.json")

		out, err := runRoot(t, "crawl", "-d", "0", "-j", "-o", path, srv.URL+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out != "" {
			t.Errorf("expected nothing on stdout, got %q", out)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read report: %v", err)
		}
		if len(decodeJSONReport(t, string(data)).Reports) != 1 {
			t.Error("expected one report in file")
		}
	})

	t.Run("site depth from config file", func(t *testing.T) {
		t.Parallel()
		srv := newSite(t)
		path := filepath.Join(t.TempDir(), "linkcrawl.yaml")
		content := fmt.Sprintf("sites:\n  %q:\n    depth: 1\n", srv.URL)
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		out, err := runRoot(t, "crawl", "-c", path, "-j", srv.URL+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		r := decodeJSONReport(t, out).Reports[0]
		if r.MaxDepth != 1 {
			t.Errorf("max depth = %d, want 1", r.MaxDepth)
		}
	})
}

func TestRunCrawlCmdOutputs(t *testing.T) {
	t.Parallel()

	t.Run("site depth zero from config file", func(t *testing.T) {
		t.Parallel()
		srv := newSite(t)
		path := filepath.Join(t.TempDir(), "linkcrawl.yaml")
		content := fmt.Sprintf("defaults:\n  depth: 2\nsites:\n  %q:\n    depth: 0\n", srv.URL)
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		out, err := runRoot(t, "crawl", "-c", path, "-j", srv.URL+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		r := decodeJSONReport(t, out).Reports[0]
		if r.MaxDepth != 0 || r.PagesFetched != 1 {
			t.Errorf("max depth = %d, pages fetched = %d, want 0 and 1", r.MaxDepth, r.PagesFetched)
		}
	})

	t.Run("negative site depth in config file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "linkcrawl.yaml")
		if err := os.WriteFile(path, []byte("defaults:\n  depth: -1\n"), 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		_, err := runRoot(t, "crawl", "-c", path, "http://127.0.0.1:1/")
		if !errors.Is(err, config.ErrInvalidDepth) {
			t.Errorf("expected ErrInvalidDepth, got %v", err)
		}
	})

	t.Run("tee writes the file and stdout", func(t *testing.T) {
		t.Parallel()
		srv := newSite(t)
		path := filepath.Join(t.TempDir(), "urls.txt")

		out, err := runRoot(t, "crawl", "-d", "0", "-u", "-o", path, "--tee", srv.URL+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read report: %v", err)
		}
		want := srv.URL + "/\n" + srv.URL + "/p1\n"
		if string(data) != want {
			t.Errorf("file = %q, want %q", data, want)
		}
		if out != want {
			t.Errorf("stdout = %q, want %q", out, want)
		}
	})

	t.Run("json logs", func(t *testing.T) {
		t.Parallel()
		srv := newSite(t)

		var stdout, stderr bytes.Buffer
		cmd := NewRootCmd()
		cmd.SetOut(&stdout)
		cmd.SetErr(&stderr)
		cmd.SetArgs([]string{"crawl", "-v", "--log-json", "-d", "0", "-u", srv.URL + "/"})
		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		line, _, _ := strings.Cut(stderr.String(), "\n")
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("expected JSON log line, got %q: %v", line, err)
		}
		if _, ok := entry["msg"]; !ok {
			t.Errorf("expected msg field, got %v", entry)
		}
	})
}

func TestRunCrawlCmdErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{
			name:    "no target",
			args:    []string{"crawl"},
			wantErr: config.ErrNoTarget,
		},
		{
			name:    "conflicting formats",
			args:    []string{"crawl", "-j", "-m", "http://127.0.0.1:1/"},
			wantErr: config.ErrConflictingReportFormats,
		},
		{
			name:    "unsupported scheme",
			args:    []string{"crawl", "ftp://example.com/"},
			wantErr: config.ErrInvalidURL,
		},
		{
			name:    "zero attempts",
			args:    []string{"crawl", "-r", "0", "http://127.0.0.1:1/"},
			wantErr: config.ErrInvalidMaxRetry,
		},
		{
			name:    "negative depth",
			args:    []string{"crawl", "--depth=-1", "http://127.0.0.1:1/"},
			wantErr: config.ErrInvalidDepth,
		},
		{
			name:    "bad header",
			args:    []string{"crawl", "-H", "nocolon", "http://127.0.0.1:1/"},
			wantErr: errInvalidHeader,
		},
		{
			name:    "missing config file",
			args:    []string{"crawl", "-c", "/nonexistent/linkcrawl.yaml", "http://127.0.0.1:1/"},
			wantErr: config.ErrConfigNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := runRoot(t, tt.args...)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}
