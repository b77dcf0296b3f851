package config

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/impact-hub/partner-portal/internal/application/port"
)

// FeatureFlags manages runtime feature toggles.
// It satisfies port.Features so handlers and jobs can consult it directly.
type FeatureFlags struct {
	mu       sync.RWMutex
	features map[string]*Feature
}

var _ port.Features = (*FeatureFlags)(nil)

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool
}

// Predefined feature flag names.
const (
	FeatureLeaderboardCache   = port.FeatureLeaderboardCache   // Redis snapshot per period
	FeatureRankUpgradeNotify  = port.FeatureRankUpgradeNotify  // extra notification on tier change
	FeatureReminders          = port.FeatureReminders          // monthly contribution reminders
	FeatureMonthlyRecognition = port.FeatureMonthlyRecognition // monthly top-contributor award
)

// LoadFeatureFlags loads defaults and applies FEATURE_<NAME> overrides.
func LoadFeatureFlags() *FeatureFlags {
	ff := NewFeatureFlags()
	ff.loadFromEnvironment()
	return ff
}

// NewFeatureFlags returns the defaults without reading the environment.
func NewFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{features: make(map[string]*Feature)}
	for _, f := range []Feature{
		{Name: FeatureLeaderboardCache, Description: "Serve leaderboards from the Redis snapshot cache", Enabled: true},
		{Name: FeatureRankUpgradeNotify, Description: "Notify partners when they reach a higher tier", Enabled: true},
		{Name: FeatureReminders, Description: "Remind partners who have not contributed this month", Enabled: true},
		{Name: FeatureMonthlyRecognition, Description: "Award the previous month's top contributor", Enabled: true},
	} {
		f := f
		ff.features[f.Name] = &f
	}
	return ff
}

// loadFromEnvironment applies env overrides.
// Format: FEATURE_<NAME>=true|false
// Example: FEATURE_LEADERBOARD_CACHE=false
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		val := os.Getenv(featureNameToEnvKey(name))
		if val == "" {
			continue
		}
		if b, err := strconv.ParseBool(val); err == nil {
			feature.Enabled = b
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "leaderboard.cache" -> "FEATURE_LEADERBOARD_CACHE"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// Enabled reports whether the named feature is on. Unknown names are off.
func (ff *FeatureFlags) Enabled(name string) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, ok := ff.features[name]
	return ok && feature.Enabled
}

// Set switches a feature at runtime.
func (ff *FeatureFlags) Set(name string, enabled bool) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[name]
	if !ok {
		return ErrFeatureNotFound
	}
	feature.Enabled = enabled
	return nil
}

// All returns a copy of every flag, sorted by name.
func (ff *FeatureFlags) All() []Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	out := make([]Feature, 0, len(ff.features))
	for _, f := range ff.features {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// --- Errors ---

// ErrFeatureNotFound is returned for names that are not registered.
var ErrFeatureNotFound = &FeatureFlagError{Message: "feature not found"}

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
