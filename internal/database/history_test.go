package database

import (
	"fmt"
	"testing"
	"time"

	"campaign-console/internal/config"
	"campaign-console/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	cfg := &config.Config{
		DBDriver: "sqlite",
		DBPath:   fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano()),
	}
	db, err := InitGorm(cfg, zap.NewNop())
	require.NoError(t, err)
	return db
}

func TestInitGorm_UnsupportedDriver(t *testing.T) {
	_, err := InitGorm(&config.Config{DBDriver: "oracle"}, zap.NewNop())
	assert.Error(t, err)

	_, err = InitGorm(&config.Config{DBDriver: "postgres"}, zap.NewNop())
	assert.Error(t, err)
}

func TestHistory_Messages(t *testing.T) {
	h := NewHistory(newTestDB(t))

	require.NoError(t, h.RecordMessage(&models.Message{RunID: "r1", ContactID: 1, Status: "sent"}))
	require.NoError(t, h.RecordMessage(&models.Message{RunID: "r1", ContactID: 2, Status: "failed", Error: "missing phone number"}))
	require.NoError(t, h.RecordMessage(&models.Message{RunID: "r2", ContactID: 3, Status: "sent"}))

	all, err := h.Messages("", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, int64(3), all[0].ContactID)

	r1, err := h.Messages("r1", 0)
	require.NoError(t, err)
	assert.Len(t, r1, 2)

	limited, err := h.Messages("", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestHistory_CallsAndReset(t *testing.T) {
	db := newTestDB(t)
	h := NewHistory(db)

	calls, err := h.Calls("", 0)
	require.NoError(t, err)
	assert.Equal(t, []models.CallRecord{}, calls)

	require.NoError(t, h.RecordCall(&models.CallRecord{RunID: "v1", ContactID: 1, CallID: "c-1", Status: "completed"}))
	calls, err = h.Calls("v1", 10)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "c-1", calls[0].CallID)

	require.NoError(t, Reset(db))
	calls, err = h.Calls("", 0)
	require.NoError(t, err)
	assert.Empty(t, calls)
}
