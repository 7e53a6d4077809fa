// Package json provides the JSON request encoder and response decoder.
package json

import (
	"fmt"
	"reflect"

	jsoniter "github.com/json-iterator/go"

	"github.com/go-warp/warp"
)

var api = jsoniter.ConfigCompatibleWithStandardLibrary

// Codec is a JSON encoder/decoder pair.
type Codec struct{}

// New creates a new JSON codec.
func New() *Codec {
	return &Codec{}
}

// Encode marshals value and attaches it to the template, setting the
// Content-Type header when none is present.
func (c *Codec) Encode(value interface{}, bodyType string, template *warp.RequestTemplate) error {
	if value == nil {
		return fmt.Errorf("json: cannot encode nil body")
	}
	data, err := api.Marshal(value)
	if err != nil {
		return fmt.Errorf("json: marshal %s body: %w", bodyType, err)
	}
	template.SetBody(data)
	if template.Headers().Get("Content-Type") == "" {
		template.Header("Content-Type", "application/json; charset="+template.Charset())
	}
	return nil
}

// Decode unmarshals the response body into a freshly allocated value of the
// prototype's type. A nil prototype yields the raw body bytes.
func (c *Codec) Decode(resp *warp.Response, returnType interface{}) (interface{}, error) {
	if returnType == nil {
		return resp.Body(), nil
	}
	rt := reflect.TypeOf(returnType)
	for rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	out := reflect.New(rt)
	if err := api.Unmarshal(resp.Body(), out.Interface()); err != nil {
		return nil, fmt.Errorf("json: unmarshal response: %w", err)
	}
	return out.Interface(), nil
}

// Name returns the name of the codec.
func (c *Codec) Name() string {
	return "json"
}
