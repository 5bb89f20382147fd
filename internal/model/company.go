package model

import (
	"net"
	"strings"
)

// Workspace is the tenant that owns a tracked domain and its assessment runs.
type Workspace struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	Domain string `json:"domain" yaml:"domain"` // empty when not configured
}

// Company is the subject company resolved from a workspace's domain.
type Company struct {
	ID          string `json:"id" yaml:"id"`
	WorkspaceID string `json:"workspace_id" yaml:"workspace_id"`
	Name        string `json:"name" yaml:"name"`
	Domain      string `json:"domain" yaml:"domain"`
}

// NormalizeDomain reduces a URL or host to a bare lower-case host so that
// "https://www.Acme.com/about" and "acme.com" compare equal.
func NormalizeDomain(raw string) string {
	d := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.Index(d, "://"); i >= 0 {
		d = d[i+3:]
	}
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	if host, _, err := net.SplitHostPort(d); err == nil {
		d = host
	}
	d = strings.TrimPrefix(d, "www.")
	return strings.TrimSuffix(d, ".")
}
