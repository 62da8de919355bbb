package bus

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

const codecName = "warrenbench-json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec is a grpc encoding.Codec that marshals any Go value as JSON. It
// lets the Bus service carry plain structs (Envelope) instead of compiled
// protobuf messages, since no protoc pipeline runs in this environment.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return codecName
}
