package rpc

import (
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// codecName is the content-subtype negotiated between coordinator and
// worker. There is no .proto source anywhere to generate protobuf stubs
// from, so this package defines the Coordinator RPC surface by hand
// against grpc's ServiceDesc/ClientConnInterface primitives directly,
// carrying messages as JSON instead of wire-format protobuf.
const codecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return codecName }

// DialOptions returns the grpc.DialOption set a client needs to negotiate
// the JSON codec with a Coordinator server in this package.
func DialOptions() []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	}
}
