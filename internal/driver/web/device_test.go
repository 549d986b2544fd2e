package web

import (
	"testing"

	"github.com/chromedp/chromedp/kb"
	"github.com/stretchr/testify/assert"
)

func TestSelectorFor(t *testing.T) {
	assert.Equal(t, `[data-agent-index="7"]`, selectorFor(7))
	assert.Equal(t, `[data-agent-index="0"]`, selectorFor(0))
}

func TestTranslateKeys(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Enter", kb.Enter},
		{"return", kb.Enter},
		{"Tab", kb.Tab},
		{"Backspace", kb.Backspace},
		{"Delete", kb.Delete},
		{"Escape", kb.Escape},
		{"esc", kb.Escape},
		{"ArrowDown", kb.ArrowDown},
		{"up", kb.ArrowUp},
		{"left", kb.ArrowLeft},
		{"right", kb.ArrowRight},
		{"hello", "hello"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, translateKeys(tc.in), "key %q", tc.in)
	}
}
