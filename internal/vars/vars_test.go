package vars

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sql-gate/internal/model"
)

func TestDefaults(t *testing.T) {
	snap := NewStore().Snapshot()

	assert.Equal(t, model.SeverityError, snap.Level(CheckPrimaryKey))
	assert.Equal(t, model.SeverityWarning, snap.Level(CheckNullable))
	assert.Equal(t, model.SeverityOff, snap.Level(CheckSelectStar))
	assert.Equal(t, uint64(16), snap.Uint(MaxIndexes))
	assert.Equal(t, uint64(767), snap.Uint(IndexColumnMaxBytes))
	assert.Equal(t, uint64(3072), snap.Uint(IndexTotalMaxBytes))
	assert.True(t, snap.Bool(ExecCheckReadOnly))
	assert.Equal(t, "utf8,utf8mb4", snap.Str(SupportCharset))
}

func TestSetLevelSymbolicAndNumeric(t *testing.T) {
	st := NewStore()

	require.NoError(t, st.Set(CheckDMLLimit, "ERROR"))
	got, ok := st.Snapshot().Get(CheckDMLLimit)
	require.True(t, ok)
	assert.Equal(t, "ERROR", got)

	require.NoError(t, st.Set(CheckDMLLimit, "1"))
	got, _ = st.Snapshot().Get(CheckDMLLimit)
	assert.Equal(t, "WARNING", got)

	require.NoError(t, st.Set(CheckDMLLimit, "off"))
	got, _ = st.Snapshot().Get(CheckDMLLimit)
	assert.Equal(t, "OFF", got)

	require.Error(t, st.Set(CheckDMLLimit, "5"))
}

func TestSetUnknownVariable(t *testing.T) {
	st := NewStore()
	err := st.Set("inception_no_such_thing", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unknown system variable")
}

func TestSetNumericAndBool(t *testing.T) {
	st := NewStore()

	require.NoError(t, st.Set(MaxIndexes, "8"))
	got, _ := st.Snapshot().Get(MaxIndexes)
	assert.Equal(t, "8", got)
	require.Error(t, st.Set(MaxIndexes, "lots"))

	require.NoError(t, st.Set(ExecCheckReadOnly, "off"))
	assert.False(t, st.Snapshot().Bool(ExecCheckReadOnly))
	require.NoError(t, st.Set(ExecCheckReadOnly, "1"))
	assert.True(t, st.Snapshot().Bool(ExecCheckReadOnly))
}

func TestSnapshotIsolation(t *testing.T) {
	st := NewStore()
	before := st.Snapshot()
	require.NoError(t, st.Set(CheckPrimaryKey, "OFF"))

	// The old snapshot still sees the old value; a new one sees the change.
	assert.Equal(t, model.SeverityError, before.Level(CheckPrimaryKey))
	assert.Equal(t, model.SeverityOff, st.Snapshot().Level(CheckPrimaryKey))
}

func TestListPattern(t *testing.T) {
	snap := NewStore().Snapshot()

	all := snap.List("")
	assert.Greater(t, len(all), 50)

	tidb := snap.List("inception_tidb%")
	require.Len(t, tidb, 5)
	for _, kv := range tidb {
		assert.Contains(t, kv[0], "inception_tidb")
	}

	exact := snap.List("inception_check_primary_key")
	require.Len(t, exact, 1)
	assert.Equal(t, "ERROR", exact[0][1])
}
