package filter

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	// Kind tags every serialized entity so foreign values under the same
	// key prefix are not mistaken for filters.
	Kind = "injection_filter"

	// SchemaVersion is the only wire version Deserialize accepts.
	SchemaVersion = 1
)

type wireEnvelope struct {
	Kind    string     `msgpack:"kind"`
	Version int        `msgpack:"v"`
	Filter  wireEntity `msgpack:"filter"`
}

type wireEntity struct {
	Name        string       `msgpack:"name"`
	Description string       `msgpack:"description"`
	Enabled     bool         `msgpack:"enabled"`
	Patterns    wirePatterns `msgpack:"patterns"`
}

type wirePattern struct {
	Name        string `msgpack:"name"`
	Expression  string `msgpack:"expression"`
	Description string `msgpack:"description"`
	Enabled     bool   `msgpack:"enabled"`
}

// wirePatterns decodes element by element instead of trusting the array
// header, so a forged length fails on end of input rather than allocating.
type wirePatterns []wirePattern

// maxPreallocPatterns caps the capacity reserved from an array header.
const maxPreallocPatterns = 64

func (ps *wirePatterns) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	if n < 0 {
		*ps = nil
		return nil
	}

	out := make(wirePatterns, 0, min(n, maxPreallocPatterns))
	for i := 0; i < n; i++ {
		var p wirePattern
		if err := dec.Decode(&p); err != nil {
			return fmt.Errorf("pattern %d of %d: %w", i, n, err)
		}
		out = append(out, p)
	}
	*ps = out
	return nil
}

// Serializer converts entities to and from the bytes stored in the
// key-value store.
type Serializer struct{}

func NewSerializer() *Serializer {
	return &Serializer{}
}

func (s *Serializer) Serialize(e *Entity) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("serialize filter: nil entity")
	}

	env := wireEnvelope{
		Kind:    Kind,
		Version: SchemaVersion,
		Filter: wireEntity{
			Name:        e.Name,
			Description: e.Description,
			Enabled:     e.Enabled,
			Patterns:    make(wirePatterns, 0, len(e.patterns)),
		},
	}
	for _, p := range e.patterns {
		env.Filter.Patterns = append(env.Filter.Patterns, wirePattern(p))
	}

	data, err := msgpack.Marshal(&env)
	if err != nil {
		return nil, fmt.Errorf("serialize filter %q: %w", e.Name, err)
	}
	return data, nil
}

// Deserialize decodes data produced by Serialize. It reports false for
// anything that is not a filter of a supported version, including empty,
// truncated or corrupt input and trailing bytes after the envelope.
func (s *Serializer) Deserialize(data []byte) (e *Entity, ok bool) {
	if len(data) == 0 {
		return nil, false
	}

	defer func() {
		if r := recover(); r != nil {
			e, ok = nil, false
		}
	}()

	r := bytes.NewReader(data)
	var env wireEnvelope
	if err := msgpack.NewDecoder(r).Decode(&env); err != nil || r.Len() != 0 {
		return nil, false
	}
	if env.Kind != Kind || env.Version != SchemaVersion {
		return nil, false
	}

	e = NewEntity()
	e.Name = env.Filter.Name
	e.Description = env.Filter.Description
	e.Enabled = env.Filter.Enabled

	patterns := make([]Pattern, len(env.Filter.Patterns))
	for i, p := range env.Filter.Patterns {
		patterns[i] = Pattern(p)
	}
	e.patterns = patterns

	return e, true
}
