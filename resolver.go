package warp

import (
	"context"
	"fmt"
	"reflect"

	"github.com/go-warp/warp/errors"
)

// requestFactory turns a method's prototype template plus call arguments
// into an immutable Request. One factory exists per bound method; it holds
// only bind-time state and is safe for concurrent use.
type requestFactory struct {
	target          Target
	metadata        *MethodMetadata
	interceptors    []RequestInterceptor
	encoder         Encoder
	queryMapEncoder QueryMapEncoder
	// expanders is the bind-time cache of argument position to expander.
	expanders map[int]Expander
}

// newRequestFactory resolves named expander factories once, at bind time.
// An unregistered name fails the bind.
func newRequestFactory(
	target Target,
	metadata *MethodMetadata,
	interceptors []RequestInterceptor,
	encoder Encoder,
	queryMapEncoder QueryMapEncoder,
	registry map[string]ExpanderFactory,
) (*requestFactory, error) {
	expanders := make(map[int]Expander)
	for _, b := range metadata.Bindings {
		switch {
		case b.Expander != nil:
			expanders[b.Index] = b.Expander
		case b.ExpanderName != "":
			factory, ok := registry[b.ExpanderName]
			if !ok {
				return nil, errors.Configurationf(
					"method %q references unregistered expander %q for argument %d",
					metadata.ConfigKey, b.ExpanderName, b.Index)
			}
			expanders[b.Index] = factory()
		}
	}
	return &requestFactory{
		target:          target,
		metadata:        metadata,
		interceptors:    interceptors,
		encoder:         encoder,
		queryMapEncoder: queryMapEncoder,
		expanders:       expanders,
	}, nil
}

// create runs the full resolution sequence: clone the prototype, append the
// header and query map arguments, bind and resolve template variables, run
// the interceptors, encode the body, and materialize the Request.
func (f *requestFactory) create(ctx context.Context, args []interface{}) (*Request, error) {
	template := f.metadata.Template.Clone()

	if err := f.appendHeaders(template, args); err != nil {
		return nil, err
	}
	if err := f.appendQueries(template, args); err != nil {
		return nil, err
	}

	vars := f.variableMap(args)
	if err := template.Resolve(vars); err != nil {
		return nil, err
	}

	for _, interceptor := range f.interceptors {
		interceptor.Apply(ctx, template)
	}

	if err := f.encodeBody(template, args); err != nil {
		return nil, err
	}

	return template.request(f.target.Host()), nil
}

// appendHeaders applies the bulk header map argument, if declared and
// non-nil. Sequence values expand to one header value per element; scalars
// contribute their string form once.
func (f *requestFactory) appendHeaders(template *RequestTemplate, args []interface{}) error {
	index := f.metadata.HeaderMapIndex
	if index < 0 {
		return nil
	}
	value, err := f.argument(index, args)
	if err != nil {
		return err
	}
	if isNil(value) {
		return nil
	}
	entries, ok := mapEntries(value)
	if !ok {
		return errors.Newf(errors.ErrorCodeInvalidArgument,
			"%s: header map argument %d is not a map", f.metadata.ConfigKey, index)
	}
	for _, e := range entries {
		for _, v := range sequence(e.value) {
			template.Header(e.key, stringify(v))
		}
	}
	return nil
}

// appendQueries applies the bulk query map argument, if declared and
// non-nil. A map is used directly; anything else is flattened by the
// query map encoder.
func (f *requestFactory) appendQueries(template *RequestTemplate, args []interface{}) error {
	index := f.metadata.QueryMapIndex
	if index < 0 {
		return nil
	}
	value, err := f.argument(index, args)
	if err != nil {
		return err
	}
	if isNil(value) {
		return nil
	}
	entries, ok := mapEntries(value)
	if !ok {
		resolved, err := f.queryMapEncoder.Encode(value)
		if err != nil {
			return errors.Wrap(errors.ErrorCodeInvalidArgument, err,
				fmt.Sprintf("%s: encoding query map argument %d", f.metadata.ConfigKey, index))
		}
		entries = sortedEntries(resolved)
	}
	for _, e := range entries {
		for _, v := range sequence(e.value) {
			template.Query(e.key, stringify(v))
		}
	}
	return nil
}

// variableMap builds the substitution map from the declared bindings, in
// declaration order. Nil arguments contribute no binding.
func (f *requestFactory) variableMap(args []interface{}) map[string]string {
	vars := make(map[string]string)
	for _, b := range f.metadata.Bindings {
		if b.Index >= len(args) {
			continue
		}
		value := args[b.Index]
		if isNil(value) {
			continue
		}
		var formatted string
		if expander, ok := f.expanders[b.Index]; ok {
			formatted = expander.Expand(value)
		} else {
			formatted = stringify(value)
		}
		for _, name := range b.Names {
			vars[name] = formatted
		}
	}
	return vars
}

// encodeBody encodes the declared body argument, if present and non-nil,
// onto the template.
func (f *requestFactory) encodeBody(template *RequestTemplate, args []interface{}) error {
	index := f.metadata.BodyIndex
	if index < 0 {
		return nil
	}
	value, err := f.argument(index, args)
	if err != nil {
		return err
	}
	if isNil(value) {
		return nil
	}
	if err := f.encoder.Encode(value, f.metadata.BodyType, template); err != nil {
		return &errors.RequestBuildError{ConfigKey: f.metadata.ConfigKey, Cause: err}
	}
	return nil
}

func (f *requestFactory) argument(index int, args []interface{}) (interface{}, error) {
	if index >= len(args) {
		return nil, errors.Configurationf(
			"%s: metadata references argument %d but the call supplied %d argument(s)",
			f.metadata.ConfigKey, index, len(args))
	}
	return args[index], nil
}

type entry struct {
	key   string
	value interface{}
}

// mapEntries returns the entries of a string-keyed map in deterministic key
// order. ok is false when value is not such a map.
func mapEntries(value interface{}) ([]entry, bool) {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	entries := make([]entry, 0, rv.Len())
	for _, key := range rv.MapKeys() {
		entries = append(entries, entry{key: key.String(), value: rv.MapIndex(key).Interface()})
	}
	sortEntries(entries)
	return entries, true
}

func sortedEntries(m map[string]interface{}) []entry {
	entries := make([]entry, 0, len(m))
	for k, v := range m {
		entries = append(entries, entry{key: k, value: v})
	}
	sortEntries(entries)
	return entries
}

func sortEntries(entries []entry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].key < entries[j-1].key; j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}

// sequence views value as a list: slices and arrays yield their elements in
// order, anything else yields itself once. Byte slices and strings are
// scalars, not sequences.
func sequence(value interface{}) []interface{} {
	if _, ok := value.([]byte); ok {
		return []interface{}{value}
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []interface{}{value}
	}
	out := make([]interface{}, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out = append(out, rv.Index(i).Interface())
	}
	return out
}

// stringify renders a value the way the default expander would.
func stringify(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", value)
	}
}

// isNil reports whether value is nil, including typed nil pointers, maps,
// slices and interfaces.
func isNil(value interface{}) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
