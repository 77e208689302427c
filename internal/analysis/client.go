package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/smart-audit/backend/internal/domain"
	"github.com/smart-audit/backend/internal/logger"
)

// OutcomeStatus classifies the result of an analysis attempt.
type OutcomeStatus string

const (
	// OutcomeCompleted means the remote service produced a result payload.
	OutcomeCompleted OutcomeStatus = "completed"
	// OutcomeFailed covers every runtime failure: transport errors, remote
	// failure states, and poll budget exhaustion.
	OutcomeFailed OutcomeStatus = "failed"
	// OutcomeSkipped means the integration is not configured. This is not an
	// error and must not be retried.
	OutcomeSkipped OutcomeStatus = "skipped"
)

// Outcome is the synchronous result of Analyze. Failures are represented as
// values; Analyze never returns an error.
type Outcome struct {
	Status         OutcomeStatus
	Data           domain.JSONMap
	Err            string
	ProcessingTime time.Duration
}

// Config holds the remote analysis connection settings.
type Config struct {
	Endpoint     string
	APIKey       string
	AnalyzerID   string
	APIVersion   string
	PollInterval time.Duration
	Timeout      time.Duration
}

// Client wraps the two-phase remote analysis protocol (submit binary, then
// poll the returned operation location) behind a single blocking call.
// It is stateless between invocations.
type Client struct {
	client *resty.Client
	cfg    Config
	log    *logger.Logger

	// Injectable for deterministic timeout tests.
	now   func() time.Time
	sleep func(time.Duration)
}

// NewClient creates an analysis client.
// Parameters:
//   - cfg: remote endpoint, credentials, and poll settings.
//   - log: logger for analysis diagnostics.
// Returns:
//   - *Client: initialized client.
func NewClient(cfg Config, log *logger.Logger) *Client {
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2025-11-01"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 300 * time.Second
	}

	client := resty.New()
	client.SetTimeout(30 * time.Second)

	return &Client{
		client: client,
		cfg:    cfg,
		log:    log.WithField(logger.FieldComponent, "analysis"),
		now:    time.Now,
		sleep:  time.Sleep,
	}
}

// Configured reports whether the remote integration has everything it needs.
func (c *Client) Configured() bool {
	return c.cfg.Endpoint != "" && c.cfg.APIKey != "" && c.cfg.AnalyzerID != ""
}

type pollResponse struct {
	Status string          `json:"status"`
	Error  json.RawMessage `json:"error"`
}

// Analyze submits a document to the remote analysis service and polls until
// a terminal state or the wall-clock budget is exhausted.
// Parameters:
//   - ctx: context for cancellation of individual HTTP calls.
//   - data: raw document bytes.
// Returns:
//   - Outcome: completed, failed, or skipped; never panics or errors.
func (c *Client) Analyze(ctx context.Context, data []byte) Outcome {
	if !c.Configured() {
		c.log.Warn("Analysis service not configured, skipping document analysis")
		return Outcome{Status: OutcomeSkipped, Err: "analysis not configured"}
	}

	start := c.now()

	url := fmt.Sprintf("%s/contentunderstanding/analyzers/%s:analyzeBinary?api-version=%s",
		strings.TrimSuffix(c.cfg.Endpoint, "/"), c.cfg.AnalyzerID, c.cfg.APIVersion)

	c.log.WithField(logger.FieldSize, len(data)).Info("Submitting document for analysis")

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/pdf").
		SetHeader("Ocp-Apim-Subscription-Key", c.cfg.APIKey).
		SetHeader("x-ms-useragent", "smart-audit-backend").
		SetBody(data).
		Post(url)
	if err != nil {
		c.log.WithError(err).Error("Analysis submit failed")
		return Outcome{Status: OutcomeFailed, Err: err.Error()}
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		msg := fmt.Sprintf("submit returned HTTP %d: %s", resp.StatusCode(), string(resp.Body()))
		c.log.Error(msg)
		return Outcome{Status: OutcomeFailed, Err: msg}
	}

	operationLocation := resp.Header().Get("Operation-Location")
	if operationLocation == "" {
		c.log.Error("Operation-Location header missing in submit response")
		return Outcome{Status: OutcomeFailed, Err: "Operation-Location header missing"}
	}

	c.log.Info("Analysis initiated, polling for results")
	return c.poll(ctx, operationLocation, start)
}

func (c *Client) poll(ctx context.Context, operationLocation string, start time.Time) Outcome {
	pollStart := c.now()

	for {
		if elapsed := c.now().Sub(pollStart); elapsed > c.cfg.Timeout {
			c.log.WithField(logger.FieldDurationMs, elapsed.Milliseconds()).Error("Analysis polling timed out")
			return Outcome{Status: OutcomeFailed, Err: fmt.Sprintf("timeout after %s", c.cfg.Timeout)}
		}

		resp, err := c.client.R().
			SetContext(ctx).
			SetHeader("Ocp-Apim-Subscription-Key", c.cfg.APIKey).
			SetHeader("Content-Type", "application/json").
			Get(operationLocation)
		if err != nil {
			c.log.WithError(err).Error("Analysis poll failed")
			return Outcome{Status: OutcomeFailed, Err: err.Error()}
		}
		if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
			msg := fmt.Sprintf("poll returned HTTP %d: %s", resp.StatusCode(), string(resp.Body()))
			c.log.Error(msg)
			return Outcome{Status: OutcomeFailed, Err: msg}
		}

		var pr pollResponse
		if err := json.Unmarshal(resp.Body(), &pr); err != nil {
			c.log.WithError(err).Error("Analysis poll returned unparseable body")
			return Outcome{Status: OutcomeFailed, Err: fmt.Sprintf("invalid poll response: %v", err)}
		}

		switch strings.ToLower(pr.Status) {
		case "succeeded":
			elapsed := c.now().Sub(start)
			var result domain.JSONMap
			if err := json.Unmarshal(resp.Body(), &result); err != nil {
				return Outcome{Status: OutcomeFailed, Err: fmt.Sprintf("invalid result payload: %v", err)}
			}
			c.log.WithField(logger.FieldDurationMs, elapsed.Milliseconds()).Info("Analysis completed")
			return Outcome{Status: OutcomeCompleted, Data: result, ProcessingTime: elapsed}
		case "failed":
			errDetail := strings.TrimSpace(string(pr.Error))
			if errDetail == "" || errDetail == "null" {
				errDetail = "analysis failed"
			}
			c.log.WithField("detail", errDetail).Error("Analysis failed remotely")
			return Outcome{Status: OutcomeFailed, Err: errDetail}
		default:
			// notstarted, running, and anything unrecognized: keep polling
			c.sleep(c.cfg.PollInterval)
		}
	}
}
