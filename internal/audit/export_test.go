package audit

import (
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCSV(t *testing.T) {
	actor := uuid.MustParse("4f5d5a47-1c1e-4e53-9b55-08d0e3a8f6d1")
	events := []Event{
		{
			ActorID:    &actor,
			Action:     ActionPermissionGranted,
			Module:     ModuleAdmin,
			Detail:     Detail{"key": "inventory.view", "note": "a, \"quoted\" value"},
			OccurredAt: time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC),
		},
		{
			Action:     ActionSeedAdminUser,
			Module:     ModuleSystem,
			OccurredAt: time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
		},
	}

	out, err := WriteCSV(events)
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(string(out))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"timestamp", "actor_id", "module", "action", "details"}, records[0])
	assert.Equal(t, "2026-02-01T08:00:00Z", records[1][0])
	assert.Equal(t, actor.String(), records[1][1])
	assert.JSONEq(t, `{"key":"inventory.view","note":"a, \"quoted\" value"}`, records[1][4])
	assert.Equal(t, "", records[2][1])
	assert.Equal(t, "null", records[2][4])
}

func TestWriteCSVEmpty(t *testing.T) {
	out, err := WriteCSV(nil)
	require.NoError(t, err)
	assert.Equal(t, "timestamp,actor_id,module,action,details\n", string(out))
}
