package common

import (
	"github.com/pvemon/pvemon/pkg/monitor"
)

// UserInfoResponse represents the authenticated client's information
type UserInfoResponse struct {
	Name string `json:"name"` // Client name (from API key)
	Role string `json:"role"` // Client role
}

// HostResponse represents one configured host container
type HostResponse struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Type     string   `json:"type"`               // "LXC" or "VM"
	Checkers []string `json:"checkers,omitempty"` // Enabled checkers
}

// HostListResponse represents the configured host inventory
type HostListResponse struct {
	Hosts []HostResponse `json:"hosts"`
	Total int            `json:"total"`
}

// CheckRunResponse contains the result of a triggered engine run
type CheckRunResponse struct {
	Report *monitor.Report `json:"report"`

	// Pushed reports whether the run's records reached InfluxDB. A push
	// failure is recorded here instead of failing the request; the report
	// itself is still returned.
	Pushed    bool   `json:"pushed"`
	PushError string `json:"push_error,omitempty"`
}

// ImageCheckResponse contains the result of a targeted image check
type ImageCheckResponse struct {
	ContainerID string                    `json:"container_id"`
	Image       string                    `json:"image"`
	Result      monitor.ImageUpdateResult `json:"result"`
}
