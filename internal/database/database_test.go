package database

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vic-labs/collectivo/internal/model"
	"gorm.io/gorm/logger"
)

func TestMigrateCreatesTables(t *testing.T) {
	db, err := Open(sqlite.Open("file::memory:"), "silent")
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	for _, m := range model.All() {
		assert.True(t, db.Migrator().HasTable(m), "%T", m)
	}
	assert.True(t, db.Migrator().HasIndex(&model.VoteModel{}, "idx_vote_proposal_voter"))
	assert.True(t, db.Migrator().HasIndex(&model.ChainEventModel{}, "idx_chain_event_tx_seq"))

	// migrating twice is a no-op
	require.NoError(t, Migrate(db))
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, logger.Silent, parseLogLevel("SILENT"))
	assert.Equal(t, logger.Info, parseLogLevel("info"))
	assert.Equal(t, logger.Warn, parseLogLevel(""))
}
