package drafter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTemplateDeterministic(t *testing.T) {
	t1, b1 := Template("bug", "login fails with 500")
	t2, b2 := Template("bug", "login fails with 500")
	assert.Equal(t, t1, t2)
	assert.Equal(t, b1, b2)

	assert.Equal(t, "bug: login fails with 500", t1)
	assert.Contains(t, b1, "login fails with 500")
	assert.Contains(t, b1, "_Drafted from template._")
}

func TestTemplateTitleUsesFirstLine(t *testing.T) {
	title, body := Template("task", "upgrade the runtime\n\nDetails:\n- bump image\n- rerun smoke")
	assert.Equal(t, "task: upgrade the runtime", title)
	assert.Contains(t, body, "- bump image", "body keeps the full description")
}

func TestTemplateTitleTruncated(t *testing.T) {
	long := strings.Repeat("x", 200)
	title, _ := Template("feature", long)
	assert.True(t, strings.HasSuffix(title, "..."))
	assert.LessOrEqual(t, len(title), len("feature: ")+80)
}

func TestNewDefaults(t *testing.T) {
	d := New("key", "", 0)
	assert.Equal(t, DefaultTimeout, d.timeout)
	assert.NotEmpty(t, d.model)

	d = New("key", "claude-custom", 0)
	assert.Equal(t, "claude-custom", string(d.model))
}
