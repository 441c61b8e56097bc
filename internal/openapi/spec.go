// Package openapi generates the OpenAPI document describing the keygate API.
package openapi

import (
	"github.com/getkin/kin-openapi/openapi3"
)

// Generate builds the OpenAPI 3.1 spec for the keygate HTTP API.
func Generate(baseURL, version string) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "Keygate API",
			Description: "API-key issuance and verification service.",
			Version:     version,
		},
		Servers: openapi3.Servers{
			{URL: baseURL},
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	// Consumers authenticate with an API key as the Basic username; admins
	// authenticate with a JWT bearer token.
	doc.Components.SecuritySchemes["apiKeyBasic"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:        "http",
			Scheme:      "basic",
			Description: "API-key token as the username with an empty password.",
		},
	}
	doc.Components.SecuritySchemes["bearerAuth"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
	}

	doc.Components.Schemas["ErrorResponse"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"error": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"object"},
						Properties: openapi3.Schemas{
							"code":    &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}},
							"message": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
							"context": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}},
						},
					},
				},
			},
		},
	}
	doc.Components.Schemas["Account"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"id":           &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int64"}},
				"username":     &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
				"display_name": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
				"first_name":   &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
				"last_name":    &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
				"email":        &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
				"locked_at":    &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "date-time"}},
			},
		},
	}
	doc.Components.Schemas["APIKey"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"id":           &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int64"}},
				"owner_id":     &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int64"}},
				"environment":  &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
				"key_type":     &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
				"created_at":   &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "date-time"}},
				"expires_at":   &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "date-time"}},
				"cancelled_at": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "date-time"}},
			},
		},
	}

	doc.Paths = openapi3.NewPaths()

	addPath(doc, "/healthz", "get", "Liveness probe", nil, false)
	addPath(doc, "/readyz", "get", "Readiness probe (pings the store)", nil, false)
	addPath(doc, "/api/v1/admin/session", "post", "Admin login, returns a JWT session token", nil, false)
	addPath(doc, "/api/v1/admin/session", "delete", "Admin logout; clients discard the token", nil, false)
	addPath(doc, "/api/v1/admins", "get", "List admin users", &openapi3.SecurityRequirements{{"bearerAuth": {}}}, true)
	addPath(doc, "/api/v1/admins", "post", "Create an admin user", &openapi3.SecurityRequirements{{"bearerAuth": {}}}, true)
	addPath(doc, "/api/v1/accounts", "get", "List owner accounts", &openapi3.SecurityRequirements{{"bearerAuth": {}}}, true)
	addPath(doc, "/api/v1/accounts", "post", "Register an account and issue its key batch", &openapi3.SecurityRequirements{{"bearerAuth": {}}}, true)
	addPath(doc, "/api/v1/accounts/{accountId}", "get", "Get one account", &openapi3.SecurityRequirements{{"bearerAuth": {}}}, true)
	addPath(doc, "/api/v1/accounts/{accountId}/lock", "post", "Lock an account", &openapi3.SecurityRequirements{{"bearerAuth": {}}}, true)
	addPath(doc, "/api/v1/accounts/{accountId}/unlock", "post", "Unlock an account", &openapi3.SecurityRequirements{{"bearerAuth": {}}}, true)
	addPath(doc, "/api/v1/accounts/{accountId}/keys", "get", "List an account's keys", &openapi3.SecurityRequirements{{"bearerAuth": {}}}, true)
	addPath(doc, "/api/v1/keys", "get", "List all keys", &openapi3.SecurityRequirements{{"bearerAuth": {}}}, true)
	addPath(doc, "/api/v1/keys", "post", "Issue a fresh key batch for an account", &openapi3.SecurityRequirements{{"bearerAuth": {}}}, true)
	addPath(doc, "/api/v1/keys/{keyId}", "delete", "Cancel a key permanently", &openapi3.SecurityRequirements{{"bearerAuth": {}}}, true)
	addPath(doc, "/api/v1/whoami", "get", "Identity of the presented API key", &openapi3.SecurityRequirements{{"apiKeyBasic": {}}}, true)

	return doc
}

func addPath(doc *openapi3.T, path, method, summary string, security *openapi3.SecurityRequirements, authErrors bool) {
	op := &openapi3.Operation{
		Summary:  summary,
		Security: security,
	}

	responses := openapi3.NewResponses()
	responses.Set("200", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: strPtr("Success"),
		},
	})
	if authErrors {
		responses.Set("401", &openapi3.ResponseRef{
			Value: &openapi3.Response{
				Description: strPtr("Unauthorized"),
				Content: openapi3.NewContentWithJSONSchemaRef(
					openapi3.NewSchemaRef("#/components/schemas/ErrorResponse", nil)),
			},
		})
	}
	op.Responses = responses

	item := doc.Paths.Value(path)
	if item == nil {
		item = &openapi3.PathItem{}
		doc.Paths.Set(path, item)
	}
	switch method {
	case "get":
		item.Get = op
	case "post":
		item.Post = op
	case "delete":
		item.Delete = op
	}
}

func strPtr(s string) *string { return &s }
