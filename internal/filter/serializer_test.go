package filter

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func sampleEntity() *Entity {
	e := NewEntity()
	e.Name = "default-injection"
	e.Description = "SQL and script injection"
	e.Enabled = false
	e.SetPatterns([]Pattern{
		{Name: "sql-union", Expression: `(?i)union\s+select`, Description: "UNION based", Enabled: true},
		{Name: "script-tag", Expression: `<\s*script`, Enabled: false},
		{Name: "", Expression: "orphan"},
		{Name: "sql-union", Expression: "duplicate via SetPatterns", Enabled: true},
	})
	return e
}

func TestSerializer_RoundTrip(t *testing.T) {
	s := NewSerializer()

	tests := []struct {
		name   string
		entity *Entity
	}{
		{"empty", NewEntity()},
		{"populated", sampleEntity()},
		{"unicode", func() *Entity {
			e := NewEntity()
			e.Name = "фильтр ✓"
			e.AddPattern(Pattern{Name: "日本", Expression: "\x00\xff"})
			return e
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := s.Serialize(tt.entity)
			require.NoError(t, err)

			got, ok := s.Deserialize(data)
			require.True(t, ok)
			assert.Equal(t, tt.entity, got)
		})
	}
}

func TestSerializer_SerializeNil(t *testing.T) {
	_, err := NewSerializer().Serialize(nil)
	assert.Error(t, err)
}

func TestSerializer_DeserializeRejectsForeignData(t *testing.T) {
	s := NewSerializer()

	valid, err := s.Serialize(sampleEntity())
	require.NoError(t, err)

	foreignKind, err := msgpack.Marshal(map[string]interface{}{"kind": "rate_limit", "v": 1})
	require.NoError(t, err)

	futureVersion, err := msgpack.Marshal(map[string]interface{}{"kind": Kind, "v": SchemaVersion + 1})
	require.NoError(t, err)

	jsonBytes, err := json.Marshal(map[string]string{"filterName": "x"})
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{"nil", nil},
		{"empty", []byte{}},
		{"text", []byte("not a filter")},
		{"json", jsonBytes},
		{"truncated", valid[:len(valid)/2]},
		{"single byte", valid[:1]},
		{"foreign kind", foreignKind},
		{"future version", futureVersion},
		{"msgpack string", mustMarshal(t, "injection_filter")},
		{"msgpack array", mustMarshal(t, []int{1, 2, 3})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := s.Deserialize(tt.data)
			assert.False(t, ok)
			assert.Nil(t, got)
		})
	}
}

// envelopeWithFilter hand-encodes {kind, v, filter: {<field>: <raw>}} so
// raw can carry headers no encoder would produce.
func envelopeWithFilter(t *testing.T, field string, raw []byte) []byte {
	t.Helper()
	buf := []byte{0x83}
	buf = append(buf, mustMarshal(t, "kind")...)
	buf = append(buf, mustMarshal(t, Kind)...)
	buf = append(buf, mustMarshal(t, "v")...)
	buf = append(buf, mustMarshal(t, SchemaVersion)...)
	buf = append(buf, mustMarshal(t, "filter")...)
	buf = append(buf, 0x81)
	buf = append(buf, mustMarshal(t, field)...)
	return append(buf, raw...)
}

func TestSerializer_DeserializeForgedLengths(t *testing.T) {
	s := NewSerializer()
	onePattern := mustMarshal(t, map[string]interface{}{"name": "p", "expression": "x"})

	tests := []struct {
		name  string
		field string
		raw   []byte
	}{
		{"array32 patterns with no elements", "patterns", []byte{0xdd, 0xff, 0xff, 0xff, 0xff}},
		{"array32 patterns with one element", "patterns", append([]byte{0xdd, 0xff, 0xff, 0xff, 0xff}, onePattern...)},
		{"array16 patterns short by one", "patterns", append([]byte{0xdc, 0x00, 0x02}, onePattern...)},
		{"map32 pattern", "patterns", []byte{0x91, 0xdf, 0xff, 0xff, 0xff, 0xff}},
		{"str32 name", "name", []byte{0xdb, 0x7f, 0xff, 0xff, 0xff}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := s.Deserialize(envelopeWithFilter(t, tt.field, tt.raw))
			assert.False(t, ok)
			assert.Nil(t, got)
		})
	}
}

func TestSerializer_DeserializeHandEncodedEnvelope(t *testing.T) {
	raw := append([]byte{0x91}, mustMarshal(t, map[string]interface{}{"name": "p", "expression": "x", "enabled": true})...)

	got, ok := NewSerializer().Deserialize(envelopeWithFilter(t, "patterns", raw))
	require.True(t, ok)
	assert.Equal(t, []Pattern{{Name: "p", Expression: "x", Enabled: true}}, got.Patterns())
}

func TestSerializer_DeserializeRejectsTrailingBytes(t *testing.T) {
	s := NewSerializer()
	valid, err := s.Serialize(sampleEntity())
	require.NoError(t, err)

	for _, tail := range [][]byte{{0xc1, 0xff}, {0x00}, valid} {
		data := append(append([]byte{}, valid...), tail...)
		got, ok := s.Deserialize(data)
		assert.False(t, ok)
		assert.Nil(t, got)
	}
}

func TestSerializer_DeserializeRandomBytes(t *testing.T) {
	s := NewSerializer()
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		buf := make([]byte, rng.Intn(64))
		rng.Read(buf)

		assert.NotPanics(t, func() {
			if e, ok := s.Deserialize(buf); ok {
				assert.NotNil(t, e)
			}
		})
	}
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := msgpack.Marshal(v)
	require.NoError(t, err)
	return b
}
