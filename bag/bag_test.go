package bag

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetString(t *testing.T) {
	tests := []struct {
		name     string
		b        Bag
		key      string
		defVal   string
		expected string
	}{
		{
			name:     "existing string value",
			b:        Bag{FieldUserAgent: "Mozilla/5.0"},
			key:      FieldUserAgent,
			defVal:   "default",
			expected: "Mozilla/5.0",
		},
		{
			name:     "missing key returns default",
			b:        Bag{FieldPlatform: "Win32"},
			key:      FieldUserAgent,
			defVal:   "default",
			expected: "default",
		},
		{
			name:     "nil value returns default",
			b:        Bag{FieldUserAgent: nil},
			key:      FieldUserAgent,
			defVal:   "default",
			expected: "default",
		},
		{
			name:     "wrong type returns default",
			b:        Bag{FieldColorDepth: 24},
			key:      FieldColorDepth,
			defVal:   "default",
			expected: "default",
		},
		{
			name:     "nil bag returns default",
			b:        nil,
			key:      FieldUserAgent,
			defVal:   "default",
			expected: "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetString(tt.b, tt.key, tt.defVal))
		})
	}
}

func TestGetFloat64(t *testing.T) {
	tests := []struct {
		name     string
		b        Bag
		key      string
		defVal   float64
		expected float64
	}{
		{
			name:     "float64 from JSON decode",
			b:        Bag{FieldPixelRatio: 1.25},
			key:      FieldPixelRatio,
			defVal:   1.0,
			expected: 1.25,
		},
		{
			name:     "int coerces",
			b:        Bag{FieldColorDepth: 24},
			key:      FieldColorDepth,
			defVal:   0,
			expected: 24,
		},
		{
			name:     "numeric string coerces",
			b:        Bag{FieldDeviceMemory: "8"},
			key:      FieldDeviceMemory,
			defVal:   0,
			expected: 8,
		},
		{
			name:     "garbage string returns default",
			b:        Bag{FieldDeviceMemory: "lots"},
			key:      FieldDeviceMemory,
			defVal:   4,
			expected: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetFloat64(tt.b, tt.key, tt.defVal))
		})
	}
}

func TestGetStringSlice(t *testing.T) {
	t.Run("json decoded array of any", func(t *testing.T) {
		var b Bag
		require.NoError(t, json.Unmarshal([]byte(`{"fonts":["Arial","Verdana"]}`), &b))
		assert.Equal(t, []string{"Arial", "Verdana"}, GetStringSlice(b, FieldFonts))
	})

	t.Run("single string wraps", func(t *testing.T) {
		b := Bag{FieldFonts: "Arial"}
		assert.Equal(t, []string{"Arial"}, GetStringSlice(b, FieldFonts))
	})

	t.Run("nil elements skipped", func(t *testing.T) {
		b := Bag{FieldFonts: []any{"Arial", nil, "Verdana"}}
		assert.Equal(t, []string{"Arial", "Verdana"}, GetStringSlice(b, FieldFonts))
	})

	t.Run("missing key returns nil", func(t *testing.T) {
		assert.Nil(t, GetStringSlice(Bag{}, FieldFonts))
	})
}

func TestGetMap(t *testing.T) {
	b := Bag{FieldMathConstants: map[string]any{"acos": 1.2345}}
	m := GetMap(b, FieldMathConstants)
	require.NotNil(t, m)
	assert.Equal(t, 1.2345, m["acos"])

	assert.Nil(t, GetMap(b, FieldWebGLFingerprint))
	assert.Nil(t, GetMap(nil, FieldMathConstants))
}

func TestClone(t *testing.T) {
	orig := Bag{
		FieldUserAgent: "Mozilla/5.0",
		FieldFonts:     []any{"Arial", "Verdana"},
		FieldMathConstants: map[string]any{
			"acos": 1.2345,
		},
	}

	copied := Clone(orig)
	require.Equal(t, orig, copied)

	// Mutating the clone must not leak into the original.
	copied[FieldUserAgent] = "changed"
	copied[FieldFonts].([]any)[0] = "Courier"
	copied[FieldMathConstants].(map[string]any)["acos"] = 9.9

	assert.Equal(t, "Mozilla/5.0", orig[FieldUserAgent])
	assert.Equal(t, "Arial", orig[FieldFonts].([]any)[0])
	assert.Equal(t, 1.2345, orig[FieldMathConstants].(map[string]any)["acos"])
}

func TestCloneNil(t *testing.T) {
	assert.Nil(t, Clone(nil))
}

func TestGetPath(t *testing.T) {
	b := Bag{
		FieldMathConstants: map[string]any{"acos": 1.2345},
		FieldPlugins: []any{
			map[string]any{"name": "PDF Viewer"},
		},
	}

	tests := []struct {
		name  string
		path  string
		want  any
		found bool
	}{
		{name: "top level", path: FieldMathConstants, want: map[string]any{"acos": 1.2345}, found: true},
		{name: "nested", path: "mathConstants.acos", want: 1.2345, found: true},
		{name: "array index", path: "plugins[0].name", want: "PDF Viewer", found: true},
		{name: "missing leaf", path: "mathConstants.atan", want: nil, found: false},
		{name: "index out of range", path: "plugins[3].name", want: nil, found: false},
		{name: "not traversable", path: "mathConstants.acos.deeper", want: nil, found: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := GetPath(b, tt.path)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetPath(t *testing.T) {
	t.Run("top level", func(t *testing.T) {
		b := Bag{}
		require.NoError(t, SetPath(b, FieldUserAgent, "Mozilla/5.0"))
		assert.Equal(t, "Mozilla/5.0", b[FieldUserAgent])
	})

	t.Run("creates intermediate maps", func(t *testing.T) {
		b := Bag{}
		require.NoError(t, SetPath(b, "mathConstants.acos", 1.238))
		v, ok := GetPath(b, "mathConstants.acos")
		require.True(t, ok)
		assert.Equal(t, 1.238, v)
	})

	t.Run("existing array element", func(t *testing.T) {
		b := Bag{FieldFonts: []any{"Arial", "Verdana"}}
		require.NoError(t, SetPath(b, "fonts[1]", "Courier"))
		assert.Equal(t, "Courier", b[FieldFonts].([]any)[1])
	})

	t.Run("array index out of range", func(t *testing.T) {
		b := Bag{FieldFonts: []any{"Arial"}}
		assert.Error(t, SetPath(b, "fonts[5]", "Courier"))
	})

	t.Run("nil bag", func(t *testing.T) {
		assert.Error(t, SetPath(nil, FieldUserAgent, "x"))
	})
}

func TestIdentityFieldsStable(t *testing.T) {
	a := IdentityFields()
	b := IdentityFields()
	require.Equal(t, a, b)
	assert.Len(t, a, 16)
	assert.Equal(t, FieldUserAgent, a[0])
}
