// Package protobuf provides a protobuf request encoder and response
// decoder for proto.Message bodies and results.
package protobuf

import (
	"fmt"
	"reflect"

	"google.golang.org/protobuf/proto"

	"github.com/go-warp/warp"
)

// Codec is a protobuf encoder/decoder pair.
type Codec struct{}

// New creates a new protobuf codec.
func New() *Codec {
	return &Codec{}
}

// Encode marshals a proto.Message body onto the template.
func (c *Codec) Encode(value interface{}, bodyType string, template *warp.RequestTemplate) error {
	msg, ok := value.(proto.Message)
	if !ok {
		return fmt.Errorf("protobuf: %s body is not a proto.Message", bodyType)
	}
	data, err := proto.Marshal(msg)
	if err != nil {
		return fmt.Errorf("protobuf: marshal body: %w", err)
	}
	template.SetBody(data)
	if template.Headers().Get("Content-Type") == "" {
		template.Header("Content-Type", "application/x-protobuf")
	}
	return nil
}

// Decode unmarshals the response body into a fresh message of the
// prototype's type.
func (c *Codec) Decode(resp *warp.Response, returnType interface{}) (interface{}, error) {
	prototype, ok := returnType.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("protobuf: return type %T is not a proto.Message", returnType)
	}
	out := reflect.New(reflect.TypeOf(prototype).Elem()).Interface().(proto.Message)
	if err := proto.Unmarshal(resp.Body(), out); err != nil {
		return nil, fmt.Errorf("protobuf: unmarshal response: %w", err)
	}
	return out, nil
}

// Name returns the name of the codec.
func (c *Codec) Name() string {
	return "protobuf"
}
