package openapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/labstack/echo/v4"
	"gopkg.in/yaml.v3"
)

// Document is an OpenAPI 3 description assembled in code next to the routes it describes.
type Document struct {
	mu      sync.RWMutex
	spec    *openapi3.T
	schemas *schemaRegistry
}

func New(title, version string) *Document {
	spec := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:   title,
			Version: version,
		},
		Paths: openapi3.NewPaths(),
		Components: &openapi3.Components{
			Schemas:         make(openapi3.Schemas),
			SecuritySchemes: make(openapi3.SecuritySchemes),
		},
	}
	return &Document{
		spec:    spec,
		schemas: newSchemaRegistry(spec.Components.Schemas),
	}
}

func (d *Document) Description(desc string) *Document {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.spec.Info.Description = desc
	return d
}

func (d *Document) Server(url, description string) *Document {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.spec.Servers = append(d.spec.Servers, &openapi3.Server{URL: url, Description: description})
	return d
}

func (d *Document) Tag(name, description string) *Document {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.spec.Tags = append(d.spec.Tags, &openapi3.Tag{Name: name, Description: description})
	return d
}

// CookieAuth declares a session cookie security scheme.
func (d *Document) CookieAuth(name, cookieName, description string) *Document {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.spec.Components.SecuritySchemes[name] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:        "apiKey",
			In:          "cookie",
			Name:        cookieName,
			Description: description,
		},
	}
	return d
}

func (d *Document) Spec() *openapi3.T {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.spec
}

func (d *Document) JSON() ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return json.MarshalIndent(d.spec, "", "  ")
}

func (d *Document) YAML() ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	intermediate, err := d.spec.MarshalYAML()
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(intermediate)
}

func (d *Document) JSONHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		data, err := d.JSON()
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to encode API description")
		}
		return c.JSONBlob(http.StatusOK, data)
	}
}

func (d *Document) YAMLHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		data, err := d.YAML()
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to encode API description")
		}
		return c.Blob(http.StatusOK, "application/yaml", data)
	}
}

// Operation starts describing method+path. Echo style ":id" segments become "{id}"
// and are declared as required path parameters.
func (d *Document) Operation(method, path string) *OperationBuilder {
	op := &openapi3.Operation{Responses: openapi3.NewResponses()}

	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if name, ok := strings.CutPrefix(seg, ":"); ok {
			segments[i] = "{" + name + "}"
			op.Parameters = append(op.Parameters, &openapi3.ParameterRef{
				Value: &openapi3.Parameter{
					Name:     name,
					In:       "path",
					Required: true,
					Schema:   openapi3.NewStringSchema().NewRef(),
				},
			})
		}
	}

	return &OperationBuilder{
		doc:       d,
		method:    strings.ToUpper(method),
		path:      strings.Join(segments, "/"),
		operation: op,
	}
}

type OperationBuilder struct {
	doc       *Document
	method    string
	path      string
	operation *openapi3.Operation
}

func (b *OperationBuilder) Summary(summary string) *OperationBuilder {
	b.operation.Summary = summary
	return b
}

func (b *OperationBuilder) ID(id string) *OperationBuilder {
	b.operation.OperationID = id
	return b
}

func (b *OperationBuilder) Tags(tags ...string) *OperationBuilder {
	b.operation.Tags = append(b.operation.Tags, tags...)
	return b
}

// Security requires the named scheme. Without a call the operation is public.
func (b *OperationBuilder) Security(scheme string) *OperationBuilder {
	req := openapi3.NewSecurityRequirement().Authenticate(scheme)
	b.operation.Security = openapi3.NewSecurityRequirements().With(req)
	return b
}

func (b *OperationBuilder) Body(example any, description string) *OperationBuilder {
	b.operation.RequestBody = &openapi3.RequestBodyRef{
		Value: openapi3.NewRequestBody().
			WithDescription(description).
			WithRequired(true).
			WithJSONSchemaRef(b.doc.schemaFor(example)),
	}
	return b
}

func (b *OperationBuilder) Response(status int, example any, description string) *OperationBuilder {
	resp := openapi3.NewResponse().WithDescription(description)
	if example != nil {
		resp.WithJSONSchemaRef(b.doc.schemaFor(example))
	}
	b.operation.AddResponse(status, resp)
	return b
}

// Register attaches the operation to the document.
func (b *OperationBuilder) Register() {
	b.doc.mu.Lock()
	defer b.doc.mu.Unlock()

	item := b.doc.spec.Paths.Find(b.path)
	if item == nil {
		item = &openapi3.PathItem{}
		b.doc.spec.Paths.Set(b.path, item)
	}
	item.SetOperation(b.method, b.operation)
}

func (d *Document) schemaFor(example any) *openapi3.SchemaRef {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.schemas.ref(example)
}
