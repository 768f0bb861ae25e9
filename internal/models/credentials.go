package models

import (
	"fmt"
	"slices"
	"strings"
)

// DefaultRefreshInterval is used when the persisted value is missing or not allowed.
const DefaultRefreshInterval = 60

// AllowedRefreshIntervals lists the refresh intervals, in seconds, a user may choose.
var AllowedRefreshIntervals = []int{30, 60, 120, 300}

// Credentials is the user-supplied configuration for the remote service.
// The JSON layout matches the persisted config file.
type Credentials struct {
	Token                  string `json:"token"`
	Organization           string `json:"organization"`
	Project                string `json:"project"`
	RefreshIntervalSeconds int    `json:"refresh_interval,omitempty"`
}

// Complete reports whether token, organization and project are all set.
func (c Credentials) Complete() bool {
	return c.Token != "" && c.Organization != "" && c.Project != ""
}

// WithDefaults returns a copy with a missing refresh interval replaced by the default.
func (c Credentials) WithDefaults() Credentials {
	if c.RefreshIntervalSeconds == 0 {
		c.RefreshIntervalSeconds = DefaultRefreshInterval
	}
	return c
}

// Validate checks the fields required before persisting.
func (c Credentials) Validate() error {
	if !c.Complete() {
		return &ValidationError{Reason: ErrIncompleteConfig.Error()}
	}
	if !IsAllowedRefreshInterval(c.WithDefaults().RefreshIntervalSeconds) {
		return &ValidationError{Reason: fmt.Sprintf("refresh interval must be one of %v seconds", AllowedRefreshIntervals)}
	}
	return nil
}

// IsAllowedRefreshInterval reports whether secs is one of AllowedRefreshIntervals.
func IsAllowedRefreshInterval(secs int) bool {
	return slices.Contains(AllowedRefreshIntervals, secs)
}

// NextRefreshInterval cycles through AllowedRefreshIntervals.
func NextRefreshInterval(secs int) int {
	i := slices.Index(AllowedRefreshIntervals, secs)
	return AllowedRefreshIntervals[(i+1)%len(AllowedRefreshIntervals)]
}

// MaskedToken returns the token with everything after the first 4 characters hidden.
func (c Credentials) MaskedToken() string {
	if c.Token == "" {
		return ""
	}
	if len(c.Token) <= 4 {
		return strings.Repeat("*", len(c.Token))
	}
	return c.Token[:4] + strings.Repeat("*", min(len(c.Token)-4, 12))
}

// String implements fmt.Stringer without leaking the token.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{token=%s organization=%s project=%s refresh=%ds}",
		c.MaskedToken(), c.Organization, c.Project, c.RefreshIntervalSeconds)
}
