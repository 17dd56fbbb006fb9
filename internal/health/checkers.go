// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"fmt"

	"github.com/sersery88/flight-ibe/internal/cache"
)

// ProbeChecker adapts a probe function. A failing probe reports onFailure,
// so optional dependencies can degrade instead of failing readiness.
type ProbeChecker struct {
	name      string
	probe     func(ctx context.Context) error
	onFailure Status
	okMessage string
}

// NewProbeChecker wraps probe. onFailure is StatusUnhealthy for required
// dependencies and StatusDegraded for optional ones.
func NewProbeChecker(name string, onFailure Status, okMessage string, probe func(ctx context.Context) error) *ProbeChecker {
	return &ProbeChecker{name: name, probe: probe, onFailure: onFailure, okMessage: okMessage}
}

func (c *ProbeChecker) Name() string { return c.name }

func (c *ProbeChecker) Check(ctx context.Context) CheckResult {
	if err := c.probe(ctx); err != nil {
		return CheckResult{Status: c.onFailure, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy, Message: c.okMessage}
}

// CacheProbe is implemented by *cache.Aside.
type CacheProbe interface {
	HealthCheck(ctx context.Context) error
	Backend() string
	Stats() cache.Stats
}

// CacheChecker reports the cache backend and its counters. The cache is
// optional: an unreachable store only degrades the service.
type CacheChecker struct {
	probe CacheProbe
}

func NewCacheChecker(c CacheProbe) *CacheChecker {
	return &CacheChecker{probe: c}
}

func (c *CacheChecker) Name() string { return "cache" }

func (c *CacheChecker) Check(ctx context.Context) CheckResult {
	if err := c.probe.HealthCheck(ctx); err != nil {
		return CheckResult{Status: StatusDegraded, Error: err.Error()}
	}
	st := c.probe.Stats()
	msg := fmt.Sprintf("backend %s: %d hits, %d misses, %d sets, %d errors, %d entries",
		c.probe.Backend(), st.Hits, st.Misses, st.Sets, st.Errors, st.CurrentSize)
	return CheckResult{Status: StatusHealthy, Message: msg}
}

// CredentialProbe is implemented by *upstream.CredentialManager.
type CredentialProbe interface {
	Check(ctx context.Context) error
}

// NewCredentialsChecker verifies a provider account can obtain a token.
// required decides whether a failure blocks readiness.
func NewCredentialsChecker(source string, p CredentialProbe, required bool) *ProbeChecker {
	onFailure := StatusDegraded
	if required {
		onFailure = StatusUnhealthy
	}
	return NewProbeChecker("credentials_"+source, onFailure, "token available", p.Check)
}
