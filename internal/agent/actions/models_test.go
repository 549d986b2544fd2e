package actions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInvocation(t *testing.T) {
	t.Run("decodes a single-action object", func(t *testing.T) {
		inv, err := ParseInvocation([]byte(`{"tap_element": {"index": 3}}`))
		require.NoError(t, err)
		assert.Equal(t, "tap_element", inv.Name)
		assert.Equal(t, float64(3), inv.Params["index"])
	})

	t.Run("null params become an empty map", func(t *testing.T) {
		inv, err := ParseInvocation([]byte(`{"get_app_state": null}`))
		require.NoError(t, err)
		assert.Equal(t, "get_app_state", inv.Name)
		assert.NotNil(t, inv.Params)
		assert.Empty(t, inv.Params)
	})

	t.Run("zero actions is a validation error", func(t *testing.T) {
		_, err := ParseInvocation([]byte(`{}`))
		require.Error(t, err)
		assert.Equal(t, KindValidation, KindOf(err))
	})

	t.Run("multiple actions is a validation error, not first-wins", func(t *testing.T) {
		_, err := ParseInvocation([]byte(`{"tap_element": {"index": 1}, "done": {"text": "x"}}`))
		require.Error(t, err)
		assert.Equal(t, KindValidation, KindOf(err))

		var de *DispatchError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, []string{"done", "tap_element"}, de.Fields)
	})

	t.Run("malformed JSON is a validation error", func(t *testing.T) {
		_, err := ParseInvocation([]byte(`{"tap_element": `))
		require.Error(t, err)
		assert.Equal(t, KindValidation, KindOf(err))
	})
}

func TestCapabilitiesGet(t *testing.T) {
	var nilCaps Capabilities
	assert.Nil(t, nilCaps.Get("device"))

	caps := Capabilities{"device": 42}
	assert.Equal(t, 42, caps.Get("device"))
	assert.Nil(t, caps.Get("other"))
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", truncateRunes("abc", 5))
	assert.Equal(t, "ab", truncateRunes("abc", 2))
	// Truncation counts runes, not bytes.
	assert.Equal(t, "héllø", truncateRunes("héllø!", 5))
}
