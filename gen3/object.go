package gen3

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Object is an insertion-ordered mapping. Schemas are built from Objects so
// that YAML and JSON output keep the template's key order.
type Object = orderedmap.OrderedMap[string, any]

// NewObject builds an Object from alternating keys and values.
func NewObject(kv ...any) *Object {
	o := orderedmap.New[string, any]()
	for i := 0; i+1 < len(kv); i += 2 {
		o.Set(kv[i].(string), kv[i+1])
	}
	return o
}

// child returns the Object stored at key, or nil.
func child(o *Object, key string) *Object {
	v, ok := o.Get(key)
	if !ok {
		return nil
	}
	c, _ := v.(*Object)
	return c
}

func stringAt(o *Object, key string) string {
	v, _ := o.Get(key)
	s, _ := v.(string)
	return s
}

// Keys returns the keys of o in order.
func Keys(o *Object) []string {
	if o == nil {
		return nil
	}
	keys := make([]string, 0, o.Len())
	for pair := o.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}
