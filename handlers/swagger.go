package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the content service.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg gin.IRouter) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>newsdesk - Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

// Minimal OpenAPI document for the content API. Every /api/v1 route needs a
// Bearer token.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "newsdesk", "version": "v0.1.0" },
  "components": {
    "securitySchemes": { "bearer": { "type": "http", "scheme": "bearer", "bearerFormat": "JWT" } },
    "schemas": {
      "Content": {
        "type": "object",
        "properties": {
          "id": {"type":"string"}, "title": {"type":"string"}, "description": {"type":"string"},
          "authorId": {"type":"string"}, "authorName": {"type":"string"},
          "tags": {"type":"array","items":{"type":"string"}},
          "features": {"type":"object","additionalProperties":true},
          "status": {"type":"string","enum":["draft","submitted","under_review","needs_revision","approved","rejected","published","archived","deleted"]},
          "createdAt": {"type":"string","format":"date-time"}, "updatedAt": {"type":"string","format":"date-time"},
          "publishedAt": {"type":"string","format":"date-time"}
        }
      },
      "ValidationErrors": { "type": "object", "properties": { "errors": {"type":"array","items":{"type":"string"}} } }
    }
  },
  "security": [ { "bearer": [] } ],
  "paths": {
    "/api/v1/content": {
      "get": {
        "summary": "List canonical content, newest first",
        "parameters": [
          {"name":"status","in":"query","schema":{"type":"string"}},
          {"name":"tag","in":"query","schema":{"type":"string"}},
          {"name":"author","in":"query","schema":{"type":"string"}},
          {"name":"limit","in":"query","schema":{"type":"integer"}}
        ],
        "responses": { "200": { "description": "content list" } }
      },
      "post": {
        "summary": "Create content",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"title":{"type":"string"},"description":{"type":"string"},"contentType":{"type":"string"},"tags":{"type":"array","items":{"type":"string"}},"features":{"type":"object"},"status":{"type":"string"}}}}}},
        "responses": { "201": { "description": "created" }, "401": { "description": "no actor" }, "422": { "description": "validation failed" } }
      }
    },
    "/api/v1/content/events": { "post": { "summary": "Create an event (date feature, optional location)", "responses": { "201": { "description": "created" }, "422": { "description": "validation failed" } } } },
    "/api/v1/content/tasks": { "post": { "summary": "Create a volunteer or supply task", "responses": { "201": { "description": "created" }, "422": { "description": "validation failed" } } } },
    "/api/v1/content/locations": { "post": { "summary": "Create location-bound content", "responses": { "201": { "description": "created" }, "422": { "description": "validation failed" } } } },
    "/api/v1/content/canva": { "post": { "summary": "Create content linked to a Canva design", "responses": { "201": { "description": "created" }, "422": { "description": "validation failed" } } } },
    "/api/v1/content/validate": { "post": { "summary": "Validate without storing", "responses": { "200": { "description": "validation result" } } } },
    "/api/v1/content/stream": { "get": { "summary": "Server-sent events with the full result set on every change", "responses": { "200": { "description": "text/event-stream" } } } },
    "/api/v1/content/{id}": {
      "get": { "summary": "Get content (canonical, then legacy)", "responses": { "200": { "description": "content" }, "404": { "description": "not found" } } },
      "delete": { "summary": "Hard delete (admin only)", "responses": { "204": { "description": "deleted" }, "403": { "description": "admin role required" } } }
    },
    "/api/v1/content/{id}/status": { "patch": { "summary": "Change lifecycle status", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"status":{"type":"string"}}}}}}, "responses": { "200": { "description": "updated" }, "409": { "description": "invalid transition" } } } },
    "/api/v1/content/{id}/tags": { "put": { "summary": "Replace tags", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"tags":{"type":"array","items":{"type":"string"}}}}}}}, "responses": { "200": { "description": "updated" } } } },
    "/api/v1/content/{id}/newsletter-ready": {
      "post": { "summary": "Mark newsletter:ready", "responses": { "200": { "description": "updated" } } },
      "delete": { "summary": "Clear newsletter:ready", "responses": { "200": { "description": "updated" } } }
    },
    "/api/v1/issues/eligible": {
      "get": {
        "summary": "Newsletter eligibility set across canonical and legacy content",
        "parameters": [
          {"name":"contentType","in":"query","schema":{"type":"string"}},
          {"name":"tag","in":"query","schema":{"type":"array","items":{"type":"string"}}},
          {"name":"createdAfter","in":"query","schema":{"type":"string","format":"date-time"}}
        ],
        "responses": { "200": { "description": "items, count, partial, failedSources" }, "503": { "description": "no source could be read" } }
      }
    },
    "/api/v1/issues/{issueId}/export": { "post": { "summary": "Export the eligibility set for the layout tool", "responses": { "201": { "description": "export written" }, "501": { "description": "export not configured" } } } },
    "/health": { "get": { "summary": "Liveness", "security": [], "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness", "security": [], "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
