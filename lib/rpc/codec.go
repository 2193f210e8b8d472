package rpc

import "encoding/json"

// jsonCodec is a grpc/encoding.Codec that marshals messages as JSON
// instead of protobuf, since the wire messages here are plain Go
// structs rather than generated protobuf types.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return "json" }
