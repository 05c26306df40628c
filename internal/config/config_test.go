package config

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		GinMode:          "debug",
		DatabaseURL:      "postgres://localhost/somos",
		RedisURL:         "redis://localhost:6379/0",
		JWTSecret:        "dev-secret",
		JWTExpiry:        time.Hour,
		PassThreshold:    70,
		ProgressCacheTTL: time.Minute,
		StorageDriver:    StorageLocal,
		UploadDir:        "./uploads",
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PASS_THRESHOLD", "")
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("PROGRESS_CACHE_TTL_SECONDS", "")

	cfg := Load()
	assert.Equal(t, 70.0, cfg.PassThreshold)
	assert.Equal(t, StorageLocal, cfg.StorageDriver)
	assert.Equal(t, 5*time.Minute, cfg.ProgressCacheTTL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PASS_THRESHOLD", "65.5")
	t.Setenv("STORAGE_DRIVER", "MinIO")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("MINIO_PUBLIC_URL", "https://cdn.example.com/")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")
	t.Setenv("MAX_DB_CONNS", "not-a-number")

	cfg := Load()
	assert.Equal(t, 65.5, cfg.PassThreshold)
	assert.Equal(t, StorageMinio, cfg.StorageDriver)
	assert.True(t, cfg.MinioUseSSL)
	assert.Equal(t, "https://cdn.example.com", cfg.MinioPublicURL)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, int32(16), cfg.MaxDBConns)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing database", mutate: func(c *Config) { c.DatabaseURL = "" }, wantErr: "DATABASE_URL"},
		{name: "missing redis", mutate: func(c *Config) { c.RedisURL = "" }, wantErr: "REDIS_URL"},
		{
			name:    "short secret in release",
			mutate:  func(c *Config) { c.GinMode = "release" },
			wantErr: "at least 32 characters",
		},
		{name: "threshold above 100", mutate: func(c *Config) { c.PassThreshold = 101 }, wantErr: "PASS_THRESHOLD"},
		{name: "threshold below 0", mutate: func(c *Config) { c.PassThreshold = -1 }, wantErr: "PASS_THRESHOLD"},
		{name: "threshold NaN", mutate: func(c *Config) { c.PassThreshold = math.NaN() }, wantErr: "PASS_THRESHOLD"},
		{name: "unknown storage", mutate: func(c *Config) { c.StorageDriver = "s3" }, wantErr: "STORAGE_DRIVER"},
		{
			name:    "minio without credentials",
			mutate:  func(c *Config) { c.StorageDriver = StorageMinio },
			wantErr: "MINIO_ENDPOINT",
		},
		{
			name: "minio configured",
			mutate: func(c *Config) {
				c.StorageDriver = StorageMinio
				c.MinioEndpoint = "localhost:9000"
				c.MinioAccessKey = "key"
				c.MinioSecretKey = "secret"
				c.MinioBucket = "media"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.DatabaseURL = ""
	cfg.RedisURL = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "REDIS_URL")
}

func TestCacheKeys(t *testing.T) {
	assert.Equal(t, "student:3:course:9:progress", CacheKey.CourseProgressKey(3, 9))
	assert.Equal(t, "student:3:progress_keys", CacheKey.ProgressIndexKey(3))
	assert.Equal(t, "student:3:progress", CacheKey.StudentProgressChannel(3))
	assert.Equal(t, "student:3:progress_gen", CacheKey.ProgressGenerationKey(3))
	assert.Equal(t, "progress:gen", CacheKey.GlobalProgressGenerationKey())
}
