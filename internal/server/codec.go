package server

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// JSONCodecName is the content-subtype clients select with
// grpc.CallContentSubtype to talk JSON to the discovery service.
const JSONCodecName = "json"

func init() {
	encoding.RegisterCodec(JSONCodec{})
}

// JSONCodec marshals gRPC messages as JSON. Health and reflection keep the
// default proto codec since it is chosen per call by content-subtype.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (JSONCodec) Name() string                       { return JSONCodecName }
