// Package auditprovider is a concrete Package-Audit Provider (spec
// §6): it posts a repository's dependency manifests to an HTTP audit
// service and parses vulnerability records back, tolerating both the
// current "vulnerabilities" wire shape and a legacy "advisories" one.
//
// Grounded on the project's HTTP-client conventions: a resilient client
// (github.com/sethgrid/pester) wrapping net/http with retry/backoff,
// the same pattern the registry's remote-fetch helpers use elsewhere in
// the corpus.
package auditprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sethgrid/pester"

	"github.com/agentops/sge/internal/scanner"
)

// manifestFiles are the dependency manifests an audit request will
// include, when present in the repository (spec §4.2.2).
var manifestFiles = []string{
	"package.json", "package-lock.json", "yarn.lock", "pnpm-lock.yaml",
	"go.mod", "go.sum", "requirements.txt", "Pipfile.lock", "poetry.lock",
	"Gemfile.lock", "Cargo.lock",
}

// Provider calls a remote audit service over HTTP.
type Provider struct {
	Endpoint   string
	APIKey     string
	HTTPClient *pester.Client
}

// New constructs a Provider with sensible retry defaults: 3 attempts
// with exponential backoff, matching pester's documented usage for
// flaky upstream services.
func New(endpoint, apiKey string) *Provider {
	client := pester.New()
	client.MaxRetries = 3
	client.Backoff = pester.ExponentialBackoff
	client.Timeout = 20 * time.Second
	return &Provider{Endpoint: endpoint, APIKey: apiKey, HTTPClient: client}
}

type auditRequest struct {
	Manifests map[string]string `json:"manifests"`
}

// wireVulnerability covers both wire shapes a service might answer with.
type wireVulnerability struct {
	Severity        string `json:"severity"`
	Title           string `json:"title"`
	Package         string `json:"package"`
	Version         string `json:"version"`
	PatchedVersions string `json:"patched_versions"`
	Recommendation  string `json:"recommendation"`
}

type auditResponse struct {
	// Vulnerabilities is the current wire shape.
	Vulnerabilities []wireVulnerability `json:"vulnerabilities"`
	// Advisories is a legacy wire shape some audit backends still emit.
	Advisories []wireVulnerability `json:"advisories"`
}

// Audit reads present manifest files under repoPath and posts them to
// the configured endpoint, returning normalized Vulnerability records.
func (p *Provider) Audit(ctx context.Context, repoPath string) ([]scanner.Vulnerability, error) {
	manifests, err := readManifests(repoPath)
	if err != nil {
		return nil, fmt.Errorf("read manifests: %w", err)
	}
	if len(manifests) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(auditRequest{Manifests: manifests})
	if err != nil {
		return nil, fmt.Errorf("encode audit request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build audit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}

	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("audit request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("audit service returned status %d", resp.StatusCode)
	}

	var parsed auditResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode audit response: %w", err)
	}

	wire := parsed.Vulnerabilities
	if len(wire) == 0 && len(parsed.Advisories) > 0 {
		wire = parsed.Advisories
	}

	out := make([]scanner.Vulnerability, 0, len(wire))
	for _, v := range wire {
		out = append(out, scanner.Vulnerability{
			Severity:        normalizeSeverity(v.Severity),
			Title:           v.Title,
			Package:         v.Package,
			Version:         v.Version,
			PatchedVersions: v.PatchedVersions,
			Recommendation:  v.Recommendation,
		})
	}
	return out, nil
}

func normalizeSeverity(s string) scanner.VulnSeverity {
	switch s {
	case "critical":
		return scanner.VulnCritical
	case "high":
		return scanner.VulnHigh
	case "moderate", "medium":
		return scanner.VulnModerate
	case "low":
		return scanner.VulnLow
	default:
		return scanner.VulnInfo
	}
}

func readManifests(repoPath string) (map[string]string, error) {
	manifests := make(map[string]string)
	for _, name := range manifestFiles {
		data, err := os.ReadFile(filepath.Join(repoPath, name))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		manifests[name] = string(data)
	}
	return manifests, nil
}
