package app

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, StorePostgres, cfg.StoreDriver)
	require.Equal(t, "clamp", cfg.OversellPolicy)
	require.False(t, cfg.RefundStrictAmount)
	require.Equal(t, "0.01", cfg.TotalTolerance.String())
	require.Equal(t, 10, cfg.ReasonMinLength)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("OVERSELL_POLICY", "reject")
	t.Setenv("REFUND_STRICT_AMOUNT", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://pos.example.com,https://admin.example.com")
	t.Setenv("APP_ENV", "production")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, StoreMemory, cfg.StoreDriver)
	require.Equal(t, "reject", cfg.OversellPolicy)
	require.True(t, cfg.RefundStrictAmount)
	require.Len(t, cfg.CORSAllowedOrigins, 2)
	require.True(t, cfg.IsProduction())
}

func TestLoadConfigRejectsInvalidEnums(t *testing.T) {
	cases := map[string]string{
		"STORE_DRIVER":    "sqlite",
		"OVERSELL_POLICY": "ignore",
		"LOG_FORMAT":      "xml",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := LoadConfig()
			require.Error(t, err)
			require.Contains(t, err.Error(), key)
		})
	}
}

func TestLoadConfigRejectsNegativeTolerance(t *testing.T) {
	t.Setenv("TOTAL_TOLERANCE", "-0.5")
	_, err := LoadConfig()
	require.Error(t, err)
}
