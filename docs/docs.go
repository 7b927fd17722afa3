// Package docs registers the swagger document of the leakwatch hub API.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {"tags": ["system"], "summary": "Health check", "produces": ["application/json"], "responses": {"200": {"description": "OK"}, "503": {"description": "Service Unavailable"}}}
        },
        "/reports": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["reports"], "summary": "List own reports", "produces": ["application/json"],
                "parameters": [{"type": "integer", "name": "offset", "in": "query"}, {"type": "integer", "name": "limit", "in": "query"}],
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.LeakReport"}}}}},
            "post": {"security": [{"BearerAuth": []}], "tags": ["reports"], "summary": "Submit a leak photo", "consumes": ["multipart/form-data"], "produces": ["application/json"],
                "parameters": [{"type": "file", "name": "image", "in": "formData", "required": true, "description": "Leak photo (image/*, max 5 MB)"}],
                "responses": {
                    "200": {"description": "rejected by the acceptance policy"},
                    "201": {"description": "verified report"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.APIError"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/errors.APIError"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/errors.APIError"}}
                }}
        },
        "/reports/recent": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["reports"], "summary": "Community feed", "produces": ["application/json"],
                "parameters": [{"type": "integer", "name": "limit", "in": "query"}],
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.LeakReport"}}}}}
        },
        "/alerts/current": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["alerts"], "summary": "Current alert state", "produces": ["application/json"],
                "parameters": [{"type": "boolean", "name": "refresh", "in": "query"}],
                "responses": {"200": {"description": "OK"}}}
        },
        "/alerts/escalate": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["alerts"], "summary": "Escalate the active alert", "produces": ["application/json"],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.Alert"}},
                    "400": {"description": "no active alert", "schema": {"$ref": "#/definitions/errors.APIError"}},
                    "500": {"description": "notified but not recorded", "schema": {"$ref": "#/definitions/errors.APIError"}},
                    "502": {"description": "notification failed", "schema": {"$ref": "#/definitions/errors.APIError"}}
                }}
        },
        "/alerts/recent": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["alerts"], "summary": "Escalated alerts", "produces": ["application/json"],
                "parameters": [{"type": "integer", "name": "limit", "in": "query"}],
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Alert"}}}}}
        },
        "/alerts/stream": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["alerts"], "summary": "Alert stream", "responses": {"101": {"description": "Switching Protocols"}}}
        },
        "/me": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["me"], "summary": "Own profile", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}
        },
        "/me/stats": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["me"], "summary": "Own stats", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}
        },
        "/me/points-history": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["me"], "summary": "Own points history", "produces": ["application/json"],
                "parameters": [{"type": "integer", "name": "offset", "in": "query"}, {"type": "integer", "name": "limit", "in": "query"}],
                "responses": {"200": {"description": "OK"}}}
        },
        "/me/achievements": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["me"], "summary": "Own achievements", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}
        },
        "/me/usage": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["me"], "summary": "Open usage period", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}},
            "post": {"security": [{"BearerAuth": []}], "tags": ["me"], "summary": "Record daily usage", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"name": "usage", "in": "body", "required": true, "schema": {"type": "object", "properties": {"current_daily": {"type": "number"}, "average_daily": {"type": "number"}}}}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.APIError"}}}}
        },
        "/me/reconcile": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["me"], "summary": "Reconcile own ledger", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}
        },
        "/leaderboard": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["users"], "summary": "Leaderboard", "produces": ["application/json"],
                "parameters": [{"type": "integer", "name": "limit", "in": "query"}],
                "responses": {"200": {"description": "OK"}}}
        },
        "/users/{id}/usage/close": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["admin"], "summary": "Close a usage period", "produces": ["application/json"],
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/errors.APIError"}}}}
        }
    },
    "definitions": {
        "errors.APIError": {
            "type": "object",
            "properties": {
                "type": {"type": "string"},
                "message": {"type": "string"},
                "code": {"type": "integer"},
                "request_id": {"type": "string"},
                "details": {}
            }
        },
        "models.LeakReport": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "user_id": {"type": "string"},
                "image_url": {"type": "string"},
                "status": {"type": "string", "enum": ["pending", "verified", "rejected"]},
                "verification_confidence": {"type": "number"},
                "verification_description": {"type": "string"},
                "points_awarded": {"type": "integer"},
                "created_at": {"type": "string"}
            }
        },
        "models.Alert": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "created_at": {"type": "string"},
                "location_label": {"type": "string"},
                "severity": {"type": "string", "enum": ["low", "medium", "high"]},
                "metric_difference": {"type": "number"},
                "variant": {"type": "string", "enum": ["humidity_pressure", "flow_rate"]},
                "source_nodes": {"type": "object", "properties": {"node_a": {"type": "string"}, "node_b": {"type": "string"}}},
                "status": {"type": "string", "enum": ["transient", "pending"]}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/v1",
	Schemes:          []string{},
	Title:            "Leakwatch Hub API",
	Description:      "Leak anomaly detection, photo verification and the water-saving incentive ledger.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
