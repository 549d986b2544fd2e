package history

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestManager(settings Settings) *Manager {
	return NewManager(settings, zap.NewNop())
}

func TestTokenCounting(t *testing.T) {
	m := newTestManager(Settings{MaxInputTokens: 100000, CharsPerToken: 3, ImageTokens: 800})

	t.Run("text cost is floor of runes over ratio", func(t *testing.T) {
		m.Add(Text(RoleUser, strings.Repeat("a", 7)), ClassRegular)
		// floor(7/3) = 2
		assert.Equal(t, 2, m.CurrentTokens())
	})

	t.Run("image parts cost a flat amount", func(t *testing.T) {
		m.Add(Message{Role: RoleUser, Parts: []ContentPart{
			{Type: PartImage, ImageURL: "data:image/png;base64,xyz"},
			{Type: PartText, Text: strings.Repeat("b", 9)},
		}}, ClassRegular)
		// 800 + floor(9/3) on top of the 2 from before.
		assert.Equal(t, 2+800+3, m.CurrentTokens())
	})
}

func TestTokenTotalMatchesSum(t *testing.T) {
	// The running counter must equal the per-message sum after any
	// sequence of appends, trims and window replacements.
	m := newTestManager(Settings{MaxInputTokens: 500, CharsPerToken: 1, ImageTokens: 50})
	rng := rand.New(rand.NewSource(1))

	checkInvariant := func() {
		t.Helper()
		sum := 0
		for _, mm := range m.Managed() {
			sum += mm.Metadata.Tokens
		}
		require.Equal(t, sum, m.CurrentTokens())
	}

	m.Add(Text(RoleSystem, "prompt"), ClassInit)
	checkInvariant()

	for i := 0; i < 200; i++ {
		switch rng.Intn(3) {
		case 0:
			m.Add(Text(RoleUser, strings.Repeat("x", rng.Intn(120))), ClassRegular)
		case 1:
			_ = m.Cut()
		case 2:
			m.ReplaceWindow(func(mm ManagedMessage) bool {
				return !mm.Metadata.Class.Protected() && rng.Intn(2) == 0
			}, Text(RoleUser, "summary"))
		}
		checkInvariant()
	}
}

func TestCut(t *testing.T) {
	t.Run("no-op under budget", func(t *testing.T) {
		m := newTestManager(Settings{MaxInputTokens: 100, CharsPerToken: 1})
		m.Add(Text(RoleUser, strings.Repeat("a", 50)), ClassRegular)
		require.NoError(t, m.Cut())
		assert.Equal(t, 50, m.CurrentTokens())
	})

	t.Run("removes a proportional share of the last unprotected message", func(t *testing.T) {
		m := newTestManager(Settings{MaxInputTokens: 100, CharsPerToken: 1})
		m.Add(Text(RoleSystem, strings.Repeat("s", 50)), ClassInit)
		m.Add(Text(RoleUser, strings.Repeat("x", 400)), ClassRegular)
		require.Equal(t, 450, m.CurrentTokens())

		require.NoError(t, m.Cut())

		// diff 350 over a 400-token target: 87.5% of the text goes.
		assert.Equal(t, 100, m.CurrentTokens())
		msgs := m.Messages()
		assert.Len(t, msgs[1].Parts[0].Text, 50)
		// The protected message is untouched.
		assert.Len(t, msgs[0].Parts[0].Text, 50)
	})

	t.Run("drops images before text", func(t *testing.T) {
		m := newTestManager(Settings{MaxInputTokens: 1000, CharsPerToken: 3, ImageTokens: 800})
		m.Add(Message{Role: RoleUser, Parts: []ContentPart{
			{Type: PartImage, ImageURL: "one"},
			{Type: PartImage, ImageURL: "two"},
			{Type: PartText, Text: strings.Repeat("t", 300)},
		}}, ClassRegular)
		require.Equal(t, 1700, m.CurrentTokens())

		require.NoError(t, m.Cut())

		// One image absorbs the whole 700-token overflow; the text and
		// the second image survive.
		assert.Equal(t, 900, m.CurrentTokens())
		parts := m.Messages()[0].Parts
		require.Len(t, parts, 2)
		assert.Equal(t, PartImage, parts[0].Type)
		assert.Equal(t, "two", parts[0].ImageURL)
		assert.Equal(t, strings.Repeat("t", 300), parts[1].Text)
	})

	t.Run("skips protected classes when picking the target", func(t *testing.T) {
		m := newTestManager(Settings{MaxInputTokens: 100, CharsPerToken: 1})
		m.Add(Text(RoleUser, strings.Repeat("a", 80)), ClassRegular)
		m.Add(Text(RoleUser, strings.Repeat("m", 60)), ClassMemory)
		require.NoError(t, m.Cut())

		msgs := m.Messages()
		// The memory entry is intact; the regular one shrank.
		assert.Equal(t, strings.Repeat("m", 60), msgs[1].JoinedText())
		assert.Less(t, len(msgs[0].JoinedText()), 80)
	})

	t.Run("fatal when the overflow exceeds the target", func(t *testing.T) {
		m := newTestManager(Settings{MaxInputTokens: 100, CharsPerToken: 1})
		m.Add(Text(RoleSystem, strings.Repeat("s", 95)), ClassInit)
		m.Add(Text(RoleUser, strings.Repeat("x", 1000)), ClassRegular)

		before := m.Managed()
		beforeTokens := m.CurrentTokens()

		err := m.Cut()
		require.ErrorIs(t, err, ErrBudgetExceeded)

		// Nothing was mutated on the fatal path.
		assert.Equal(t, beforeTokens, m.CurrentTokens())
		if diff := cmp.Diff(before, m.Managed()); diff != "" {
			t.Errorf("history changed on fatal trim (-before +after):\n%s", diff)
		}
	})

	t.Run("fatal when every message is protected", func(t *testing.T) {
		m := newTestManager(Settings{MaxInputTokens: 10, CharsPerToken: 1})
		m.Add(Text(RoleSystem, strings.Repeat("s", 50)), ClassInit)

		err := m.Cut()
		require.ErrorIs(t, err, ErrBudgetExceeded)
		assert.Equal(t, 50, m.CurrentTokens())
	})
}

func TestReplaceWindow(t *testing.T) {
	m := newTestManager(Settings{MaxInputTokens: 100000, CharsPerToken: 1})
	m.Add(Text(RoleSystem, "prompt"), ClassInit)
	m.Add(Text(RoleUser, "step one result"), ClassRegular)
	m.Add(Text(RoleUser, "step two result"), ClassRegular)
	m.Add(Text(RoleUser, "old summary"), ClassMemory)

	removed, removedTokens := m.ReplaceWindow(func(mm ManagedMessage) bool {
		return mm.Metadata.Class == ClassRegular
	}, Text(RoleUser, "summary of steps"))

	assert.Equal(t, 2, removed)
	assert.Equal(t, len("step one result")+len("step two result"), removedTokens)

	msgs := m.Managed()
	require.Len(t, msgs, 3)
	assert.Equal(t, ClassInit, msgs[0].Metadata.Class)
	assert.Equal(t, ClassMemory, msgs[1].Metadata.Class)
	// The summary lands at the end as a memory entry.
	assert.Equal(t, ClassMemory, msgs[2].Metadata.Class)
	assert.Equal(t, "summary of steps", msgs[2].Message.JoinedText())

	sum := 0
	for _, mm := range msgs {
		sum += mm.Metadata.Tokens
	}
	assert.Equal(t, sum, m.CurrentTokens())
}

func TestAddRedacts(t *testing.T) {
	m := newTestManager(Settings{
		MaxInputTokens: 100000,
		CharsPerToken:  1,
		Sensitive: SensitiveValues{
			Flat: map[string]string{"password": "hunter2"},
		},
	})

	m.Add(Text(RoleUser, "typed hunter2 into the field"), ClassRegular)
	got := m.Messages()[0].JoinedText()
	assert.Equal(t, "typed <secret>password</secret> into the field", got)
	assert.NotContains(t, got, "hunter2")
}
