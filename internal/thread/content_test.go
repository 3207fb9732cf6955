package thread

import (
	"testing"

	"github.com/matheus3301/nchat/internal/api"
	"github.com/stretchr/testify/assert"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		raw        string
		structured bool
		typ        int
	}{
		{`hello`, false, api.PlainText},
		{``, false, api.PlainText},
		{`{"type":0,"items":[]}`, true, 0},
		{`  {"type":2}`, true, 2},
		{`{"type":-1}`, false, api.PlainText},
		{`{"type":"0"}`, false, api.PlainText},
		{`{"type":1.5}`, false, api.PlainText},
		{`{"name":"x"}`, false, api.PlainText},
		{`[1,2]`, false, api.PlainText},
		{`{broken`, false, api.PlainText},
		{`42`, false, api.PlainText},
	}
	for _, tt := range tests {
		c := Decode(tt.raw)
		assert.Equal(t, tt.structured, c.Structured, "raw %q", tt.raw)
		assert.Equal(t, tt.typ, c.Type, "raw %q", tt.raw)
		assert.Equal(t, tt.raw, c.Text)
	}
}

func TestDisplayIndentsStructured(t *testing.T) {
	c := Decode(`{"type":0,"id":"x"}`)
	assert.Equal(t, "{\n  \"type\": 0,\n  \"id\": \"x\"\n}", c.Display())
}
