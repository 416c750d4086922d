package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castorix/go-workflow-harness/internal/utils/errors"
)

func TestInterpolateRendersArtifacts(t *testing.T) {
	sc := NewContext(map[string]interface{}{
		"wallet_name": "test-wallet",
		"fid":         int64(123),
	})

	got, err := sc.Interpolate("--wallet {{.wallet_name}} --fid {{.fid}}")
	require.NoError(t, err)
	assert.Equal(t, "--wallet test-wallet --fid 123", got)
}

func TestInterpolatePassesPlainStringsThrough(t *testing.T) {
	sc := NewContext(nil)

	got, err := sc.Interpolate("fid register --yes")
	require.NoError(t, err)
	assert.Equal(t, "fid register --yes", got)
}

func TestInterpolateMissingArtifact(t *testing.T) {
	sc := NewContext(map[string]interface{}{"present": "x"})

	_, err := sc.Interpolate("{{.absent}}")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMissingArtifact)
}

func TestInterpolateBadTemplate(t *testing.T) {
	sc := NewContext(nil)

	_, err := sc.Interpolate("{{.unclosed")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidWorkflow)
}

func TestInterpolateAllStopsAtFirstMissing(t *testing.T) {
	sc := NewContext(map[string]interface{}{"a": "1"})

	_, err := sc.InterpolateAll([]string{"{{.a}}", "{{.b}}", "{{.a}}"})
	assert.ErrorIs(t, err, errors.ErrMissingArtifact)

	got, err := sc.InterpolateAll([]string{"{{.a}}", "plain"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "plain"}, got)
}

func TestContextSetGet(t *testing.T) {
	seed := map[string]interface{}{"a": "1"}
	sc := NewContext(seed)

	sc.Set("b", int64(2))

	v, ok := sc.Get("b")
	require.True(t, ok)
	assert.Equal(t, int64(2), v)

	_, ok = sc.Get("c")
	assert.False(t, ok)

	// The seed map stays untouched
	_, leaked := seed["b"]
	assert.False(t, leaked)
}

func TestLaterArtifactsWinOverSeed(t *testing.T) {
	sc := NewContext(map[string]interface{}{"fid": int64(1)})
	sc.Set("fid", int64(42))

	got, err := sc.Interpolate("{{.fid}}")
	require.NoError(t, err)
	assert.Equal(t, "42", got)
}
