package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Dispatch API",
        "description": "Generic read, update and delete endpoints over registered models.",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Dispatch", "description": "Record reads, updates and soft deletes"},
        {"name": "Observability", "description": "Probes and counters"}
    ],
    "paths": {
        "/dispatch/{model}": {
            "get": {
                "tags": ["Dispatch"],
                "summary": "List visible records of a model",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "model", "in": "path", "required": true, "type": "string"},
                    {"name": "q", "in": "query", "type": "string", "description": "Free text search; && binds tighter than ||"},
                    {"name": "exclude", "in": "query", "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["html", "text", "json", "csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/DispatchResponse"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/DispatchResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/DispatchResponse"}}
                }
            },
            "post": {
                "tags": ["Dispatch"],
                "summary": "Create a record in add mode",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "model", "in": "path", "required": true, "type": "string"},
                    {"name": "mode", "in": "query", "type": "string", "description": "editable,add"},
                    {"name": "field", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/DispatchResponse"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/DispatchResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/DispatchResponse"}}
                }
            }
        },
        "/dispatch/{model}/{ident}": {
            "get": {
                "tags": ["Dispatch"],
                "summary": "Read a record",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "model", "in": "path", "required": true, "type": "string"},
                    {"name": "ident", "in": "path", "required": true, "type": "string", "description": "<id>-<slug>"},
                    {"name": "field", "in": "query", "type": "string"},
                    {"name": "format", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/DispatchResponse"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/DispatchResponse"}}
                }
            },
            "post": {
                "tags": ["Dispatch"],
                "summary": "Update fields of a record",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "model", "in": "path", "required": true, "type": "string"},
                    {"name": "ident", "in": "path", "required": true, "type": "string"},
                    {"name": "mode", "in": "query", "type": "string", "description": "editable"},
                    {"name": "field", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/DispatchResponse"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/DispatchResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/DispatchResponse"}}
                }
            },
            "delete": {
                "tags": ["Dispatch"],
                "summary": "Soft delete a record",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "model", "in": "path", "required": true, "type": "string"},
                    {"name": "ident", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/DispatchResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/DispatchResponse"}}
                }
            }
        },
        "/dispatch/{model}/{ident}/{field}": {
            "get": {
                "tags": ["Dispatch"],
                "summary": "Read one field of a record",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "model", "in": "path", "required": true, "type": "string"},
                    {"name": "ident", "in": "path", "required": true, "type": "string"},
                    {"name": "field", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/DispatchResponse"}}
                }
            },
            "post": {
                "tags": ["Dispatch"],
                "summary": "Update one field of a record",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "model", "in": "path", "required": true, "type": "string"},
                    {"name": "ident", "in": "path", "required": true, "type": "string"},
                    {"name": "field", "in": "path", "required": true, "type": "string"},
                    {"name": "value", "in": "formData", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/DispatchResponse"}}
                }
            }
        },
        "/schemas": {
            "get": {
                "tags": ["Dispatch"],
                "summary": "List dispatchable models",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/metrics/summary": {
            "get": {
                "tags": ["Observability"],
                "summary": "Dispatch counters summary",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "Message": {
            "type": "object",
            "properties": {
                "level": {"type": "string"},
                "message": {"type": "string"},
                "count": {"type": "integer"},
                "rendered": {"type": "string"}
            }
        },
        "DispatchResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "integer"},
                "messages": {"type": "array", "items": {"$ref": "#/definitions/Message"}},
                "payload": {"type": "object"},
                "__meta": {"type": "object"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
