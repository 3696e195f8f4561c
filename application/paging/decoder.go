package paging

import "encoding/json"

// Decoder converts a raw record into a value of type T.
type Decoder[T any] interface {
	Decode(raw json.RawMessage) (T, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc[T any] func(raw json.RawMessage) (T, error)

// Decode implements Decoder.
func (f DecoderFunc[T]) Decode(raw json.RawMessage) (T, error) { return f(raw) }

// JSONDecoder decodes records with encoding/json.
type JSONDecoder[T any] struct{}

// Decode implements Decoder.
func (JSONDecoder[T]) Decode(raw json.RawMessage) (T, error) {
	var v T
	err := json.Unmarshal(raw, &v)
	return v, err
}
