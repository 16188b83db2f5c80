// ABOUTME: Wire codec for the Scan RPC
// ABOUTME: A hand-written gob codec stands in for generated protobuf marshaling

package rpc

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// CodecName is the name this codec registers under; set via the
// grpc.CallContentSubtype/grpc.ForceCodec dial/call options.
const CodecName = "gob"

// GobCodec implements encoding.Codec using encoding/gob instead of
// generated protobuf marshaling, so this repo's one RPC method doesn't
// need a protoc toolchain to stay wired to google.golang.org/grpc.
type GobCodec struct{}

func (GobCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("rpc: gob encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (GobCodec) Unmarshal(data []byte, v any) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return fmt.Errorf("rpc: gob decode: %w", err)
	}
	return nil
}

func (GobCodec) Name() string { return CodecName }

func init() {
	encoding.RegisterCodec(GobCodec{})
}
