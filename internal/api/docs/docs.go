// Package docs holds the generated Swagger specification for the
// management API. In a normal build this file is produced by running
// `swag init` over the annotated handlers in internal/api/handlers; it is
// committed here so the binary builds without that generation step.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "{{.Title}}",
        "description": "{{.Description}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/healthz": {
            "get": {
                "summary": "Liveness probe",
                "responses": {"200": {"description": "ok"}}
            }
        },
        "/statz": {
            "get": {
                "summary": "Runtime and host statistics",
                "responses": {"200": {"description": "ok"}}
            }
        },
        "/metrics": {
            "get": {
                "summary": "Prometheus text exposition of resolver metrics",
                "responses": {"200": {"description": "ok"}}
            }
        },
        "/zones": {
            "get": {
                "summary": "List configured zones",
                "responses": {"200": {"description": "ok"}}
            },
            "post": {
                "summary": "Create a zone",
                "responses": {"201": {"description": "created"}, "400": {"description": "bad request"}}
            }
        },
        "/zones/{name}": {
            "get": {
                "summary": "Get a zone",
                "responses": {"200": {"description": "ok"}, "404": {"description": "not found"}}
            },
            "put": {
                "summary": "Replace a zone's upstreams",
                "responses": {"200": {"description": "ok"}, "404": {"description": "not found"}}
            },
            "delete": {
                "summary": "Delete a zone",
                "responses": {"204": {"description": "deleted"}, "404": {"description": "not found"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger metadata, populated at generation time.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Corvid Management API",
	Description:      "Zone routing, cache metrics, and runtime stats for the Corvid caching resolver.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
