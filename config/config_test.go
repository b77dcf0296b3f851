package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/impact-hub/partner-portal/internal/domain/rank"
)

// isolate keeps stray .env files out of the test.
func isolate(t *testing.T) {
	t.Helper()
	old := EnvFiles
	EnvFiles = nil
	t.Cleanup(func() { EnvFiles = old })
}

func TestLoad_DevelopmentDefaults(t *testing.T) {
	isolate(t)
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, time.UTC, cfg.App.Location)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 5*time.Second, cfg.Database.QueryTimeout)
	assert.Equal(t, 10*time.Second, cfg.Database.TxTimeout)
	assert.Equal(t, 25, cfg.Scheduler.ReminderDay)
	assert.Equal(t, 1, cfg.Scheduler.RecognitionDay)
	assert.False(t, cfg.Redis.Enabled())
	require.NotNil(t, cfg.Ranks.Table)
	assert.Equal(t, rank.BlackCard, cfg.Ranks.Table.RankForScore(10_000).Name)
}

func TestLoad_Overrides(t *testing.T) {
	isolate(t)
	t.Setenv("APP_ENV", "staging")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_USER", "portal")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("ADMIN_EMAILS", " ops@example.com, ,lead@example.com ")
	t.Setenv("RANK_THRESHOLDS", "bronze:0,silver:100,gold:200")
	t.Setenv("HTTP_ALLOWED_ORIGINS", "https://portal.example.com")
	t.Setenv("REDIS_URL", "redis://localhost:6379/1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://portal:pw@db.internal:5432/postgres?sslmode=require", cfg.Database.URL)
	assert.Equal(t, []string{"ops@example.com", "lead@example.com"}, cfg.Auth.AdminEmails)
	assert.Equal(t, []string{"https://portal.example.com"}, cfg.HTTP.AllowedOrigins)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, rank.Gold, cfg.Ranks.Table.RankForScore(250).Name)
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	isolate(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "short")
	t.Setenv("SCHEDULER_REMINDER_DAY", "31")
	t.Setenv("RANK_THRESHOLDS", "bronze:0,silver:0")

	_, err := Load()
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "JWT_SECRET")
	assert.Contains(t, msg, "DATABASE_URL is required in production")
	assert.Contains(t, msg, "SCHEDULER_REMINDER_DAY must be 1-28")
	assert.Contains(t, msg, "RANK_THRESHOLDS")
}

func TestFeatureFlags(t *testing.T) {
	t.Setenv("FEATURE_LEADERBOARD_CACHE", "false")
	t.Setenv("FEATURE_SCHEDULER_REMINDERS", "not-a-bool")

	ff := LoadFeatureFlags()
	assert.False(t, ff.Enabled(FeatureLeaderboardCache))
	assert.True(t, ff.Enabled(FeatureReminders))
	assert.False(t, ff.Enabled("unknown.flag"))

	require.NoError(t, ff.Set(FeatureReminders, false))
	assert.False(t, ff.Enabled(FeatureReminders))
	assert.ErrorIs(t, ff.Set("unknown.flag", true), ErrFeatureNotFound)

	all := ff.All()
	require.Len(t, all, 4)
	assert.Equal(t, FeatureLeaderboardCache, all[0].Name)
	assert.Equal(t, "FEATURE_NOTIFY_RANK_UPGRADE", featureNameToEnvKey(FeatureRankUpgradeNotify))
}
