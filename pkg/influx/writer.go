package influx

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pvemon/pvemon/pkg/config"
	"github.com/pvemon/pvemon/pkg/monitor"
)

// Writer serializes update reports to InfluxDB v2 line protocol and pushes
// them over HTTP, one POST per run.
type Writer struct {
	cfg    config.InfluxConfig
	client *http.Client
	logger *zap.Logger
	now    func() time.Time
}

// NewWriter creates a writer for the configured endpoint. With VerifySSL
// disabled the client skips TLS verification.
func NewWriter(cfg config.InfluxConfig, logger *zap.Logger) *Writer {
	client := &http.Client{Timeout: cfg.Timeout()}
	if !cfg.VerifySSL {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return &Writer{
		cfg:    cfg,
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

// Push sends all lines newline-joined in a single authenticated POST.
// Callers log failures and carry on; a push error never aborts a run.
func (w *Writer) Push(ctx context.Context, lines []string) error {
	if len(lines) == 0 {
		w.logger.Info("No update records to push")
		return nil
	}

	endpoint := fmt.Sprintf("%s/api/v2/write?org=%s&bucket=%s&precision=ns",
		strings.TrimSuffix(w.cfg.URL, "/"),
		url.QueryEscape(w.cfg.Org),
		url.QueryEscape(w.cfg.Bucket))

	body := strings.NewReader(strings.Join(lines, "\n"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to build influx request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+w.cfg.Token)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("Accept", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("influx write failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("influx write returned status %d", resp.StatusCode)
	}

	w.logger.Info("Pushed update report to InfluxDB",
		zap.Int("lines", len(lines)),
		zap.String("bucket", w.cfg.Bucket))

	return nil
}

// PushReport builds the report's lines and pushes them in one call.
func (w *Writer) PushReport(ctx context.Context, report *monitor.Report) error {
	return w.Push(ctx, w.BuildLines(report))
}
