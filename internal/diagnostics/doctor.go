package diagnostics

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gridmind/gridmind/internal/config"
)

// CheckStatus classifies a doctor check outcome.
type CheckStatus string

const (
	StatusOK      CheckStatus = "ok"
	StatusWarning CheckStatus = "warning"
	StatusError   CheckStatus = "error"
)

// CheckResult is the outcome of one environment check.
type CheckResult struct {
	Name    string      `json:"name"`
	Status  CheckStatus `json:"status"`
	Message string      `json:"message"`
}

// Doctor runs environment checks against a loaded configuration.
type Doctor struct {
	cfg    *config.Config
	client *http.Client
}

// NewDoctor creates a doctor for the given configuration.
func NewDoctor(cfg *config.Config) *Doctor {
	return &Doctor{
		cfg:    cfg,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Run executes all checks and returns their results. A check failure never
// stops the remaining checks.
func (d *Doctor) Run(ctx context.Context) []CheckResult {
	return []CheckResult{
		d.checkConfig(),
		d.checkCompletionKey(),
		d.checkCompletionEndpoint(ctx),
		d.checkSearchKey(),
		d.checkStorePath(),
		d.checkTemplatesDir(),
	}
}

// Healthy reports whether no check ended in StatusError.
func Healthy(results []CheckResult) bool {
	for _, r := range results {
		if r.Status == StatusError {
			return false
		}
	}
	return true
}

func (d *Doctor) checkConfig() CheckResult {
	if err := config.ValidateConfig(d.cfg); err != nil {
		return CheckResult{Name: "configuration", Status: StatusError, Message: err.Error()}
	}
	return CheckResult{Name: "configuration", Status: StatusOK, Message: "configuration valid"}
}

func (d *Doctor) checkCompletionKey() CheckResult {
	if d.cfg.Completion.APIKey == "" {
		return CheckResult{
			Name:    "completion credentials",
			Status:  StatusWarning,
			Message: "no API key configured; clients must send X-Api-Key",
		}
	}
	return CheckResult{Name: "completion credentials", Status: StatusOK, Message: "API key configured"}
}

// checkCompletionEndpoint verifies the completion endpoint is reachable. Any
// HTTP response counts: an unauthenticated request is expected to get 401.
func (d *Doctor) checkCompletionEndpoint(ctx context.Context) CheckResult {
	name := "completion endpoint"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.cfg.Completion.BaseURL+"/models", nil)
	if err != nil {
		return CheckResult{Name: name, Status: StatusError, Message: err.Error()}
	}
	if d.cfg.Completion.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.cfg.Completion.APIKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return CheckResult{
			Name:    name,
			Status:  StatusError,
			Message: fmt.Sprintf("unreachable: %v", err),
		}
	}
	defer resp.Body.Close()

	if d.cfg.Completion.APIKey != "" && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
		return CheckResult{
			Name:    name,
			Status:  StatusError,
			Message: "configured API key was rejected",
		}
	}
	return CheckResult{Name: name, Status: StatusOK, Message: "reachable"}
}

func (d *Doctor) checkSearchKey() CheckResult {
	name := "search augmentation"
	if !d.cfg.Search.Enabled {
		return CheckResult{Name: name, Status: StatusOK, Message: "disabled"}
	}
	if d.cfg.Search.APIKey == "" {
		return CheckResult{
			Name:    name,
			Status:  StatusWarning,
			Message: "no Serper key configured; lookup templates degrade to completion-only",
		}
	}
	return CheckResult{Name: name, Status: StatusOK, Message: "Serper key configured"}
}

func (d *Doctor) checkStorePath() CheckResult {
	name := "sheet store"
	if d.cfg.Store.Path == "" {
		return CheckResult{Name: name, Status: StatusWarning, Message: "no path configured; sheets are not persisted"}
	}

	dir := filepath.Dir(d.cfg.Store.Path)
	info, err := os.Stat(dir)
	if err != nil {
		return CheckResult{Name: name, Status: StatusError, Message: fmt.Sprintf("store directory: %v", err)}
	}
	if !info.IsDir() {
		return CheckResult{Name: name, Status: StatusError, Message: dir + " is not a directory"}
	}
	return CheckResult{Name: name, Status: StatusOK, Message: "store directory writable"}
}

func (d *Doctor) checkTemplatesDir() CheckResult {
	name := "template pack"
	if d.cfg.Templates.Dir == "" {
		return CheckResult{Name: name, Status: StatusOK, Message: "no pack directory; builtins only"}
	}
	info, err := os.Stat(d.cfg.Templates.Dir)
	if err != nil {
		return CheckResult{Name: name, Status: StatusError, Message: fmt.Sprintf("pack directory: %v", err)}
	}
	if !info.IsDir() {
		return CheckResult{Name: name, Status: StatusError, Message: d.cfg.Templates.Dir + " is not a directory"}
	}
	return CheckResult{Name: name, Status: StatusOK, Message: "pack directory readable"}
}
