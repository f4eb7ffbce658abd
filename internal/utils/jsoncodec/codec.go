// Package jsoncodec registers a JSON gRPC codec. Messages are plain Go
// structs with json tags, sent with content-subtype "json".
package jsoncodec

import (
	json "github.com/goccy/go-json"
	"google.golang.org/grpc/encoding"
)

// Name is the content-subtype clients select with grpc.CallContentSubtype.
const Name = "json"

type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (Codec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (Codec) Name() string                       { return Name }

func init() {
	encoding.RegisterCodec(Codec{})
}
