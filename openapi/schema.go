package openapi

import (
	"reflect"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
)

var timeType = reflect.TypeOf(time.Time{})

// schemaRegistry turns Go values into schemas. Named structs are stored once under
// components/schemas and referenced from then on.
type schemaRegistry struct {
	schemas openapi3.Schemas
	names   map[reflect.Type]string
}

func newSchemaRegistry(schemas openapi3.Schemas) *schemaRegistry {
	return &schemaRegistry{schemas: schemas, names: make(map[reflect.Type]string)}
}

func (r *schemaRegistry) ref(example any) *openapi3.SchemaRef {
	if example == nil {
		return openapi3.NewObjectSchema().NewRef()
	}
	return r.fromType(reflect.TypeOf(example))
}

func (r *schemaRegistry) fromType(t reflect.Type) *openapi3.SchemaRef {
	if t.Kind() == reflect.Pointer {
		inner := r.fromType(t.Elem())
		if inner.Ref != "" {
			return &openapi3.SchemaRef{Value: &openapi3.Schema{AllOf: openapi3.SchemaRefs{inner}, Nullable: true}}
		}
		inner.Value.Nullable = true
		return inner
	}

	switch t.Kind() {
	case reflect.String:
		return openapi3.NewStringSchema().NewRef()
	case reflect.Bool:
		return openapi3.NewBoolSchema().NewRef()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return openapi3.NewIntegerSchema().NewRef()
	case reflect.Float32, reflect.Float64:
		return openapi3.NewFloat64Schema().NewRef()
	case reflect.Slice, reflect.Array:
		arr := openapi3.NewArraySchema()
		arr.Items = r.fromType(t.Elem())
		return arr.NewRef()
	case reflect.Struct:
		if t == timeType {
			return openapi3.NewDateTimeSchema().NewRef()
		}
		return r.named(t)
	default:
		return openapi3.NewObjectSchema().NewRef()
	}
}

func (r *schemaRegistry) named(t reflect.Type) *openapi3.SchemaRef {
	if t.Name() == "" {
		return &openapi3.SchemaRef{Value: r.build(t)}
	}
	if name, ok := r.names[t]; ok {
		return openapi3.NewSchemaRef("#/components/schemas/"+name, r.schemas[name].Value)
	}

	// Registered before building so self-referencing types terminate.
	name := t.Name()
	schema := &openapi3.Schema{}
	r.names[t] = name
	r.schemas[name] = &openapi3.SchemaRef{Value: schema}
	*schema = *r.build(t)
	return openapi3.NewSchemaRef("#/components/schemas/"+name, schema)
}

// build maps exported fields by their json name. Fields tagged omitempty, and
// pointer fields, are optional. A doc tag becomes the property description.
func (r *schemaRegistry) build(t reflect.Type) *openapi3.Schema {
	schema := openapi3.NewObjectSchema()
	schema.Properties = make(openapi3.Schemas)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := field.Tag.Get("json")
		if tag == "-" {
			continue
		}

		name, opts, _ := strings.Cut(tag, ",")
		if name == "" {
			name = field.Name
		}

		prop := r.fromType(field.Type)
		if doc := field.Tag.Get("doc"); doc != "" && prop.Value != nil && prop.Ref == "" {
			prop.Value.Description = doc
		}
		schema.Properties[name] = prop

		if !strings.Contains(opts, "omitempty") && field.Type.Kind() != reflect.Pointer {
			schema.Required = append(schema.Required, name)
		}
	}
	return schema
}
