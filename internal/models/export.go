// Package models defines data structures and domain types.
package models

import "time"

// Credentials holds an Amplitude project key pair used for basic auth.
type Credentials struct {
	APIKey    string `json:"api_key" koanf:"api_key" yaml:"api_key"`
	SecretKey string `json:"secret_key" koanf:"secret_key" yaml:"secret_key"`
}

// Complete reports whether both halves of the key pair are set.
func (c Credentials) Complete() bool {
	return c.APIKey != "" && c.SecretKey != ""
}

// ExportResult describes a finished export request.
type ExportResult struct {
	RequestedAt time.Time
	URL         string
	Path        string
	Status      string
	StatusCode  int
	Bytes       int64
	Duration    time.Duration
}

// OK reports whether the export endpoint answered with a 2xx status.
func (r *ExportResult) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// ExtractResult describes an unpacked export archive.
type ExtractResult struct {
	Dir          string
	Files        []string
	Decompressed []string
	Bytes        int64
}
