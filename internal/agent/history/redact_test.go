package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedact(t *testing.T) {
	t.Run("flat values", func(t *testing.T) {
		secrets := SensitiveValues{Flat: map[string]string{
			"username": "alice@example.com",
			"password": "hunter2",
		}}
		msg := Text(RoleUser, "login with alice@example.com and hunter2")

		got := Redact(msg, secrets)
		assert.Equal(t, "login with <secret>username</secret> and <secret>password</secret>", got.JoinedText())
	})

	t.Run("domain-scoped values", func(t *testing.T) {
		secrets := SensitiveValues{ByDomain: map[string]map[string]string{
			"example.com": {"token": "tok-12345"},
		}}
		got := Redact(Text(RoleUser, "sent tok-12345"), secrets)
		assert.Equal(t, "sent <secret>token</secret>", got.JoinedText())
	})

	t.Run("domain value wins over flat for the same placeholder", func(t *testing.T) {
		secrets := SensitiveValues{
			Flat:     map[string]string{"password": "flat-pass"},
			ByDomain: map[string]map[string]string{"example.com": {"password": "domain-pass"}},
		}
		got := Redact(Text(RoleUser, "used domain-pass here"), secrets)
		assert.Equal(t, "used <secret>password</secret> here", got.JoinedText())

		// The shadowed flat value is no longer redacted.
		got = Redact(Text(RoleUser, "used flat-pass here"), secrets)
		assert.Equal(t, "used flat-pass here", got.JoinedText())
	})

	t.Run("empty values are skipped", func(t *testing.T) {
		secrets := SensitiveValues{Flat: map[string]string{"empty": ""}}
		assert.True(t, secrets.IsEmpty())

		msg := Text(RoleUser, "nothing to hide")
		got := Redact(msg, secrets)
		assert.Equal(t, "nothing to hide", got.JoinedText())
	})

	t.Run("input message is never mutated", func(t *testing.T) {
		secrets := SensitiveValues{Flat: map[string]string{"password": "hunter2"}}
		msg := Text(RoleUser, "typed hunter2")

		_ = Redact(msg, secrets)
		assert.Equal(t, "typed hunter2", msg.JoinedText())
	})

	t.Run("image parts are left alone", func(t *testing.T) {
		secrets := SensitiveValues{Flat: map[string]string{"password": "hunter2"}}
		msg := Message{Role: RoleUser, Parts: []ContentPart{
			{Type: PartImage, ImageURL: "data:image/png;base64,hunter2"},
		}}
		got := Redact(msg, secrets)
		assert.Equal(t, "data:image/png;base64,hunter2", got.Parts[0].ImageURL)
	})
}

func TestPlaceholders(t *testing.T) {
	secrets := SensitiveValues{
		Flat:     map[string]string{"zeta": "1", "alpha": "2"},
		ByDomain: map[string]map[string]string{"example.com": {"mid": "3"}},
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, secrets.Placeholders())
}
