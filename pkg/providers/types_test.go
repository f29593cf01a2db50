package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrependTextString(t *testing.T) {
	m := Message{Role: "user", Content: "continue the task"}
	ok := PrependText(&m, "NOTICE: ")
	assert.True(t, ok)
	assert.Equal(t, "NOTICE: continue the task", m.Content)
}

func TestPrependTextMultipart(t *testing.T) {
	m := Message{
		Role: "user",
		Content: []interface{}{
			map[string]interface{}{"type": "image", "url": "data:..."},
			map[string]interface{}{"type": "text", "text": "describe this"},
		},
	}
	ok := PrependText(&m, "NOTICE: ")
	assert.True(t, ok)

	parts := m.Content.([]interface{})
	assert.Equal(t, "NOTICE: describe this", parts[1].(map[string]interface{})["text"])
	// Non-text segment untouched.
	assert.NotContains(t, parts[0].(map[string]interface{}), "text")
}

func TestPrependTextNoTextSegment(t *testing.T) {
	m := Message{
		Role: "user",
		Content: []interface{}{
			map[string]interface{}{"type": "image", "url": "data:..."},
		},
	}
	assert.False(t, PrependText(&m, "NOTICE: "))
}

func TestPrependTextNilContent(t *testing.T) {
	m := Message{Role: "user"}
	assert.False(t, PrependText(&m, "NOTICE: "))
	assert.Nil(t, m.Content)
}
