package actions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func noopHandler(ctx context.Context, params Params, caps Capabilities) (interface{}, error) {
	return nil, nil
}

func tapSchema() ActionSchema {
	return ActionSchema{
		Name:        "tap_element",
		Description: "Tap an element by its index",
		Params: ParameterSchema{
			{Name: "index", Type: ParamInt, Required: true},
		},
		Capabilities: []string{"device"},
	}
}

func TestCatalogRegister(t *testing.T) {
	logger := zap.NewNop()

	t.Run("registers a valid action", func(t *testing.T) {
		cat := NewCatalog(logger)
		require.NoError(t, cat.Register(tapSchema(), noopHandler))
		assert.Equal(t, 1, cat.Len())

		reg, ok := cat.Lookup("tap_element")
		require.True(t, ok)
		assert.Equal(t, "tap_element", reg.Schema.Name)
	})

	t.Run("rejects duplicate names", func(t *testing.T) {
		cat := NewCatalog(logger)
		require.NoError(t, cat.Register(tapSchema(), noopHandler))

		err := cat.Register(tapSchema(), noopHandler)
		require.Error(t, err)
		assert.Equal(t, KindDuplicateAction, KindOf(err))
		assert.Equal(t, 1, cat.Len())
	})

	t.Run("rejects nil handlers", func(t *testing.T) {
		cat := NewCatalog(logger)
		err := cat.Register(tapSchema(), nil)
		require.Error(t, err)
	})

	t.Run("rejects invalid schemas", func(t *testing.T) {
		cat := NewCatalog(logger)

		bad := tapSchema()
		bad.Params = append(bad.Params, ParamSpec{Name: "index", Type: ParamInt})
		err := cat.Register(bad, noopHandler)
		require.Error(t, err)
		assert.Equal(t, 0, cat.Len())
	})

	t.Run("silently skips excluded actions", func(t *testing.T) {
		cat := NewCatalog(logger, WithExcludedActions("tap_element"))
		require.NoError(t, cat.Register(tapSchema(), noopHandler))
		assert.Equal(t, 0, cat.Len())

		_, ok := cat.Lookup("tap_element")
		assert.False(t, ok)
	})
}

func TestCatalogExportSchema(t *testing.T) {
	logger := zap.NewNop()
	cat := NewCatalog(logger)
	require.NoError(t, cat.Register(tapSchema(), noopHandler))
	require.NoError(t, cat.Register(ActionSchema{
		Name:        "done",
		Description: "Complete task",
		Params: ParameterSchema{
			{Name: "text", Type: ParamString, Required: true},
			{Name: "success", Type: ParamBool, Default: true},
		},
	}, noopHandler))

	t.Run("exports all actions in registration order", func(t *testing.T) {
		schema := cat.ExportSchema()
		assert.Equal(t, []string{"tap_element", "done"}, schema.Names())
	})

	t.Run("never exposes capability identifiers", func(t *testing.T) {
		schema := cat.ExportSchema()
		for _, action := range schema.Actions {
			for _, p := range action.Parameters {
				assert.NotEqual(t, "device", p.Name)
			}
		}

		raw, err := schema.JSONSchema()
		require.NoError(t, err)
		assert.NotContains(t, string(raw), "device")
	})

	t.Run("include filter limits the export", func(t *testing.T) {
		schema := cat.ExportSchema("done")
		assert.Equal(t, []string{"done"}, schema.Names())
	})

	t.Run("export is isolated from later mutation", func(t *testing.T) {
		first := cat.ExportSchema()
		first.Actions[0].Description = "mutated"

		second := cat.ExportSchema()
		assert.Equal(t, "Tap an element by its index", second.Actions[0].Description)
	})
}

func TestCatalogPromptDescription(t *testing.T) {
	cat := NewCatalog(zap.NewNop())
	require.NoError(t, cat.Register(tapSchema(), noopHandler))

	desc := cat.PromptDescription()
	assert.Contains(t, desc, "tap_element")
	assert.Contains(t, desc, "Tap an element by its index")
	assert.NotContains(t, desc, "device")
}
