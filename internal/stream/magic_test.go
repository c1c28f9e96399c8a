package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sql-gate/internal/model"
)

func TestIsMagicStart(t *testing.T) {
	assert.True(t, IsMagicStart("/*--host=127.0.0.1;--enable-check=1;inception_magic_start;*/"))
	assert.True(t, IsMagicStart("  \n/*--user=root;INCEPTION_MAGIC_START;*/"))
	assert.False(t, IsMagicStart("SELECT '/*inception_magic_start*/'"))
	assert.False(t, IsMagicStart("/*inception_magic_commit;*/"))
	assert.False(t, IsMagicStart("SELECT 1"))
}

func TestIsMagicCommit(t *testing.T) {
	assert.True(t, IsMagicCommit("/*inception_magic_commit;*/"))
	assert.False(t, IsMagicCommit("/*inception_magic_start;*/"))
	assert.False(t, IsMagicCommit("COMMIT"))
}

func TestParseStart(t *testing.T) {
	opts, err := ParseStart("/*--user=root;--password=secret;--host=10.0.0.1;--port=3307;--enable-execute=1;--enable-force=1;--enable-ignore-warnings=1;--sleep=200;inception_magic_start;*/")
	require.NoError(t, err)
	assert.Equal(t, "root", opts.User)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, "10.0.0.1", opts.Host)
	assert.Equal(t, 3307, opts.Port)
	assert.Equal(t, model.ModeExecute, opts.Mode)
	assert.True(t, opts.Force)
	assert.True(t, opts.IgnoreWarnings)
	assert.Equal(t, uint64(200), opts.SleepMs)
}

func TestParseStartDefaults(t *testing.T) {
	opts, err := ParseStart("/*--host=127.0.0.1;inception_magic_start;*/")
	require.NoError(t, err)
	assert.Equal(t, model.ModeCheck, opts.Mode)
	assert.Equal(t, 3306, opts.Port)
	assert.False(t, opts.Force)
}

func TestParseStartModes(t *testing.T) {
	tests := []struct {
		key  string
		want model.Mode
	}{
		{"enable-check", model.ModeCheck},
		{"enable-execute", model.ModeExecute},
		{"enable-split", model.ModeSplit},
		{"enable-query-tree", model.ModeQueryTree},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			opts, err := ParseStart("/*--host=h;--" + tt.key + "=1;inception_magic_start;*/")
			require.NoError(t, err)
			assert.Equal(t, tt.want, opts.Mode)
		})
	}
}

func TestParseStartSlaveHosts(t *testing.T) {
	opts, err := ParseStart("/*--host=h;--slave-hosts=10.0.0.2:3306,10.0.0.3:3307;inception_magic_start;*/")
	require.NoError(t, err)
	require.Len(t, opts.SlaveHosts, 2)
	assert.Equal(t, model.HostPort{Host: "10.0.0.2", Port: 3306}, opts.SlaveHosts[0])
	assert.Equal(t, model.HostPort{Host: "10.0.0.3", Port: 3307}, opts.SlaveHosts[1])

	// Malformed entries are dropped, not fatal.
	opts, err = ParseStart("/*--host=h;--slave-hosts=bogus,10.0.0.2:3306;inception_magic_start;*/")
	require.NoError(t, err)
	require.Len(t, opts.SlaveHosts, 1)
}

func TestParseStartBadPort(t *testing.T) {
	_, err := ParseStart("/*--host=h;--port=99999;inception_magic_start;*/")
	assert.Error(t, err)

	_, err = ParseStart("/*--host=h;--port=abc;inception_magic_start;*/")
	assert.Error(t, err)
}

func TestStripStart(t *testing.T) {
	rest := StripStart("/*--host=h;inception_magic_start;*/USE db1;")
	assert.Equal(t, "USE db1;", rest)
	assert.Equal(t, "SELECT 1", StripStart("SELECT 1"))
}
