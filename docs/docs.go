// Package docs registers the OpenAPI description served at /swagger.
// Regenerate with: swag init -g cmd/server/main.go
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
        "/healthz": {
            "get": {"tags": ["health"], "summary": "Health check", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}
        },
        "/healthz/db": {
            "get": {"tags": ["health"], "summary": "Database health check", "produces": ["application/json"], "responses": {"200": {"description": "OK"}, "503": {"description": "Service Unavailable"}}}
        },
        "/api/leads": {
            "post": {"tags": ["public"], "summary": "Capture lead", "consumes": ["application/json"], "produces": ["application/json"], "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}}}
        },
        "/api/feedback": {
            "post": {"tags": ["public"], "summary": "Submit feedback", "consumes": ["application/json"], "produces": ["application/json"], "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}}}
        },
        "/api/webhooks/inbound-email": {
            "post": {"tags": ["webhooks"], "summary": "Inbound mail webhook", "consumes": ["application/json"], "produces": ["application/json"], "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "401": {"description": "Unauthorized"}, "413": {"description": "Request Entity Too Large"}, "500": {"description": "Internal Server Error"}}}
        },
        "/api/webhooks/email-events": {
            "post": {"tags": ["webhooks"], "summary": "Delivery event webhook", "consumes": ["application/json"], "produces": ["application/json"], "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "401": {"description": "Unauthorized"}, "413": {"description": "Request Entity Too Large"}, "500": {"description": "Internal Server Error"}}}
        },
        "/api/cron/campaigns": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["cron"], "summary": "Dispatch campaigns", "produces": ["application/json"], "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}}
        },
        "/api/admin/feedback": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["admin"], "summary": "List feedback", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}
        },
        "/api/admin/feedback/{id}/thread": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["admin"], "summary": "Get feedback thread", "produces": ["application/json"], "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/api/admin/feedback/reply": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["admin"], "summary": "Reply to feedback", "consumes": ["application/json"], "produces": ["application/json"], "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "404": {"description": "Not Found"}, "500": {"description": "Internal Server Error"}}}
        },
        "/api/admin/messages": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["admin"], "summary": "List messages", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}
        },
        "/api/admin/messages/{id}/read": {
            "patch": {"security": [{"BearerAuth": []}], "tags": ["admin"], "summary": "Mark message read or unread", "consumes": ["application/json"], "produces": ["application/json"], "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/api/admin/leads": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["admin"], "summary": "List leads", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}
        },
        "/api/admin/leads/upload": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["admin"], "summary": "Upload lead CSV", "consumes": ["multipart/form-data"], "produces": ["application/json"], "parameters": [{"type": "file", "name": "file", "in": "formData", "required": true}], "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}}
        },
        "/api/admin/leads/import-feedback": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["admin"], "summary": "Import leads from feedback", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}
        },
        "/api/admin/campaigns": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["admin"], "summary": "List campaigns", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}},
            "post": {"security": [{"BearerAuth": []}], "tags": ["admin"], "summary": "Create campaign", "consumes": ["application/json"], "produces": ["application/json"], "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}}}
        },
        "/api/admin/campaigns/{id}": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["admin"], "summary": "Get campaign", "produces": ["application/json"], "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/api/admin/campaigns/{id}/recipients": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["admin"], "summary": "Add campaign recipients", "consumes": ["application/json"], "produces": ["application/json"], "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "404": {"description": "Not Found"}}}
        },
        "/api/admin/campaigns/{id}/preview": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["admin"], "summary": "Preview campaign", "produces": ["text/html"], "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}, "422": {"description": "Unprocessable Entity"}}}
        },
        "/api/admin/email-stats": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["admin"], "summary": "Email statistics", "produces": ["application/json"], "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}}
        },
        "/api/admin/email-events": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["admin"], "summary": "List email events", "produces": ["application/json"], "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}}
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "iTracksy API",
	Description:      "Feedback inbox, lead capture, email campaigns and delivery analytics for iTracksy.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
