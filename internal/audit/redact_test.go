package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedact(t *testing.T) {
	sensitive := []string{"password", "nik"}

	t.Run("top level and nested keys", func(t *testing.T) {
		in := map[string]any{
			"password": "x",
			"nested": map[string]any{
				"nik":   "123",
				"other": "y",
			},
		}

		out := Redact(in, sensitive)

		assert.Equal(t, RedactionMarker, out["password"])
		nested := out["nested"].(map[string]any)
		assert.Equal(t, RedactionMarker, nested["nik"])
		assert.Equal(t, "y", nested["other"])
	})

	t.Run("does not mutate input", func(t *testing.T) {
		in := map[string]any{"password": "x"}
		_ = Redact(in, sensitive)
		assert.Equal(t, "x", in["password"])
	})

	t.Run("array elements that are objects", func(t *testing.T) {
		in := map[string]any{
			"items": []any{
				map[string]any{"nik": "123", "qty": 2},
				map[string]any{"name": "ok"},
				"plain string",
			},
		}

		out := Redact(in, sensitive)

		items := out["items"].([]any)
		assert.Equal(t, RedactionMarker, items[0].(map[string]any)["nik"])
		assert.Equal(t, 2, items[0].(map[string]any)["qty"])
		assert.Equal(t, "ok", items[1].(map[string]any)["name"])
		assert.Equal(t, "plain string", items[2])
	})

	t.Run("exact key match only", func(t *testing.T) {
		in := map[string]any{"password_hint": "blue"}
		out := Redact(in, sensitive)
		assert.Equal(t, "blue", out["password_hint"])
	})

	t.Run("nil metadata passes through", func(t *testing.T) {
		assert.Nil(t, Redact(nil, sensitive))
	})
}
