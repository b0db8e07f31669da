package config_test

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobmate-app/go-push-dispatch/pushdispatch/config"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUpdateConfigWithEnvOverrides(t *testing.T) {
	logger := newTestLogger()

	baseConfig := func() *config.Config {
		return &config.Config{
			ProjectID:          "base-project",
			ListenAddr:         ":8080",
			SubscriptionID:     "base-sub",
			NumPipelineWorkers: 2,
			Firebase: config.FirebaseConfig{
				ServiceAccountFile: "/etc/secrets/sa.json",
			},
		}
	}

	t.Run("Success - All overrides applied", func(t *testing.T) {
		cfg := baseConfig()

		t.Setenv("PROJECT_ID", "env-project")
		t.Setenv("PORT", "9090")
		t.Setenv("SUBSCRIPTION_ID", "env-sub")
		t.Setenv("FIREBASE_SERVICE_ACCOUNT", `{"client_email":"env@sa"}`)
		t.Setenv("REDIS_ADDR", "redis:6379")
		t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.jobmate.fr, https://admin.jobmate.fr")

		finalCfg, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.NoError(t, err)

		assert.Equal(t, "env-project", finalCfg.ProjectID)
		assert.Equal(t, ":9090", finalCfg.ListenAddr)
		assert.Equal(t, "env-sub", finalCfg.SubscriptionID)
		require.NotNil(t, finalCfg.PubsubConsumerConfig)

		assert.Equal(t, `{"client_email":"env@sa"}`, finalCfg.Firebase.ServiceAccountJSON)
		assert.True(t, finalCfg.Redis.Enabled)
		assert.Equal(t, "redis:6379", finalCfg.Redis.Addr)
		assert.Equal(t, []string{"https://app.jobmate.fr", "https://admin.jobmate.fr"}, finalCfg.CorsConfig.AllowedOrigins)
	})

	t.Run("Success - Defaults preserved", func(t *testing.T) {
		cfg := baseConfig()
		finalCfg, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.NoError(t, err)

		assert.Equal(t, "base-project", finalCfg.ProjectID)
		assert.Equal(t, "/etc/secrets/sa.json", finalCfg.Firebase.ServiceAccountFile)
		assert.Equal(t, 2, finalCfg.NumPipelineWorkers)
	})

	t.Run("Success - HTTP-only without subscription", func(t *testing.T) {
		cfg := baseConfig()
		cfg.SubscriptionID = ""

		finalCfg, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.NoError(t, err)
		assert.Nil(t, finalCfg.PubsubConsumerConfig)
	})

	t.Run("Validation Failure - Missing ProjectID", func(t *testing.T) {
		cfg := &config.Config{Firebase: config.FirebaseConfig{ServiceAccountFile: "/sa.json"}}
		os.Unsetenv("PROJECT_ID")
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		assert.Error(t, err)
	})

	t.Run("Validation Failure - No Service Account", func(t *testing.T) {
		cfg := &config.Config{ProjectID: "p"}
		os.Unsetenv("FIREBASE_SERVICE_ACCOUNT")
		os.Unsetenv("FIREBASE_SERVICE_ACCOUNT_FILE")
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "service account")
	})
}

func TestServiceAccountJSON(t *testing.T) {
	t.Run("Env JSON wins over file", func(t *testing.T) {
		cfg := &config.Config{Firebase: config.FirebaseConfig{
			ServiceAccountJSON: `{"client_email":"inline@sa"}`,
			ServiceAccountFile: "/does/not/exist.json",
		}}
		data, err := cfg.ServiceAccountJSON()
		require.NoError(t, err)
		assert.JSONEq(t, `{"client_email":"inline@sa"}`, string(data))
	})

	t.Run("Reads file when no inline JSON", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sa.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"client_email":"file@sa"}`), 0o600))

		cfg := &config.Config{Firebase: config.FirebaseConfig{ServiceAccountFile: path}}
		data, err := cfg.ServiceAccountJSON()
		require.NoError(t, err)
		assert.JSONEq(t, `{"client_email":"file@sa"}`, string(data))
	})

	t.Run("Nothing configured is an error", func(t *testing.T) {
		cfg := &config.Config{}
		_, err := cfg.ServiceAccountJSON()
		assert.Error(t, err)
	})
}
