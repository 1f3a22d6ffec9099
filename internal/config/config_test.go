package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, []string{"campaign", "proposal"}, cfg.Chain.Modules)
	assert.Equal(t, int64(100), cfg.Ledger.ToleranceBps)
	assert.Equal(t, int64(100), cfg.Ledger.FeeBps)
	assert.Equal(t, time.Duration(0), cfg.Governance.ProposalTTL)
	assert.Equal(t, 10*time.Minute, cfg.Governance.TentativeTTL)
	assert.Equal(t, "host=localhost port=5432 user=postgres password= dbname=collectivo sslmode=disable", cfg.Database.DSN())
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: "9090"
chain:
  package_id: "0xabc"
  page_size: 20
governance:
  proposal_ttl: 72h
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	t.Setenv("COLLECTIVO_DATABASE_HOST", "db.internal")
	t.Setenv("COLLECTIVO_LEDGER_TOLERANCE_BPS", "0")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "0xabc", cfg.Chain.PackageId)
	assert.Equal(t, 20, cfg.Chain.PageSize)
	assert.Equal(t, 72*time.Hour, cfg.Governance.ProposalTTL)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, int64(0), cfg.Ledger.ToleranceBps)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ledger:\n  fee_bps: -1\n"), 0o600))

	_, err := Load(path)
	assert.ErrorContains(t, err, "fee_bps")

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
