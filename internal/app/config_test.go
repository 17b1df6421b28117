package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name: "Memory",
			cfg:  Config{Storage: StorageMemory, Coupons: CouponsConfig{Source: CouponsStatic}},
		},
		{
			name: "Postgres",
			cfg: Config{
				Storage:       StoragePostgres,
				DatabaseURL:   "postgres://localhost/wello",
				SessionPepper: "pepper",
				Coupons:       CouponsConfig{Source: CouponsPostgres},
			},
		},
		{
			name:    "PostgresWithoutURL",
			cfg:     Config{Storage: StoragePostgres, SessionPepper: "pepper", Coupons: CouponsConfig{Source: CouponsStatic}},
			wantErr: "database URL is required",
		},
		{
			name:    "PostgresWithoutPepper",
			cfg:     Config{Storage: StoragePostgres, DatabaseURL: "postgres://x", Coupons: CouponsConfig{Source: CouponsStatic}},
			wantErr: "session pepper is required",
		},
		{
			name:    "UnknownStorage",
			cfg:     Config{Storage: "redis", Coupons: CouponsConfig{Source: CouponsStatic}},
			wantErr: `unknown storage "redis"`,
		},
		{
			name:    "PostgresCouponsInMemory",
			cfg:     Config{Storage: StorageMemory, Coupons: CouponsConfig{Source: CouponsPostgres}},
			wantErr: "requires postgres storage",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_PlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("PORT", "9090")

	cfg := Config{Addr: "0.0.0.0:8080"}
	cfg.applyPlatformDefaults()
	assert.Equal(t, "postgres://platform/db", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)

	cfg = Config{Addr: "127.0.0.1:7000", DatabaseURL: "postgres://explicit/db"}
	cfg.applyPlatformDefaults()
	assert.Equal(t, "postgres://explicit/db", cfg.DatabaseURL)
	assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
}
