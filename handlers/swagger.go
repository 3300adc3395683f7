package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the scheduler.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
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
    <title>go-scheduler - Swagger</title>
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

// Hand-maintained; keep in step with internal/schedule/handler.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "go-scheduler", "version": "v0.1.0" },
  "components": {
    "securitySchemes": { "bearer": { "type": "http", "scheme": "bearer", "bearerFormat": "JWT" } },
    "schemas": {
      "Obligation": { "type": "object", "properties": {
        "id": {"type":"string"}, "ownerId": {"type":"string"}, "name": {"type":"string"},
        "amount": {"type":"string"}, "category": {"type":"string"},
        "frequency": {"type":"string","enum":["daily","weekly","monthly","yearly"]},
        "nextDueDate": {"type":"string","format":"date"}, "isActive": {"type":"boolean"},
        "createdAt": {"type":"string","format":"date-time"}, "updatedAt": {"type":"string","format":"date-time"} } },
      "Occurrence": { "type": "object", "properties": {
        "id": {"type":"string"}, "obligationId": {"type":"string"}, "name": {"type":"string"},
        "amount": {"type":"string"}, "category": {"type":"string"},
        "scheduledDate": {"type":"string","format":"date"}, "executedAt": {"type":"string","format":"date-time"} } }
    }
  },
  "security": [ { "bearer": [] } ],
  "paths": {
    "/api/scheduled-obligations": {
      "get": { "summary": "List obligations", "responses": { "200": { "description": "obligations in insertion order" } } },
      "post": { "summary": "Create obligation", "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/Obligation"} } } }, "responses": { "201": { "description": "created" }, "400": { "description": "validation failed" } } }
    },
    "/api/scheduled-obligations/{id}": {
      "get": { "summary": "Get obligation", "responses": { "200": { "description": "obligation" }, "404": { "description": "not found" } } },
      "patch": { "summary": "Update obligation", "responses": { "200": { "description": "updated" }, "400": { "description": "validation failed or no fields given" }, "404": { "description": "not found" } } },
      "put": { "summary": "Update obligation (same as patch)", "responses": { "200": { "description": "updated" }, "400": { "description": "validation failed or no fields given" }, "404": { "description": "not found" } } },
      "delete": { "summary": "Delete obligation", "responses": { "204": { "description": "deleted" }, "404": { "description": "not found" } } }
    },
    "/api/scheduled-obligations/{id}/toggle": {
      "patch": { "summary": "Flip isActive", "responses": { "200": { "description": "toggled" }, "404": { "description": "not found" } } }
    },
    "/api/scheduled-obligations/{id}/execute": {
      "post": { "summary": "Record a payment and advance the due date", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"scheduledDate":{"type":"string","format":"date"}}} } } }, "responses": { "200": { "description": "occurrence recorded" }, "404": { "description": "not found" }, "409": { "description": "due date moved since scheduledDate" } } }
    },
    "/api/scheduled-obligations/upcoming": {
      "get": { "summary": "Active obligations due within days", "parameters": [ {"name":"days","in":"query","schema":{"type":"integer"}}, {"name":"asOf","in":"query","schema":{"type":"string","format":"date"}} ], "responses": { "200": { "description": "obligations ordered by due date" } } }
    },
    "/api/scheduled-obligations/history": {
      "get": { "summary": "Execution history, newest first", "parameters": [ {"name":"obligationId","in":"query","schema":{"type":"string"}}, {"name":"from","in":"query","schema":{"type":"string","format":"date"}}, {"name":"to","in":"query","schema":{"type":"string","format":"date"}} ], "responses": { "200": { "description": "occurrences" }, "400": { "description": "bad date range" } } }
    },
    "/api/scheduled-obligations/history/summary": {
      "get": { "summary": "Amount paid, overall and per category", "parameters": [ {"name":"obligationId","in":"query","schema":{"type":"string"}}, {"name":"from","in":"query","schema":{"type":"string","format":"date"}}, {"name":"to","in":"query","schema":{"type":"string","format":"date"}} ], "responses": { "200": { "description": "paid summary" }, "400": { "description": "bad date range" } } }
    },
    "/api/scheduled-obligations/analytics": {
      "get": { "summary": "Monthly totals and breakdowns", "parameters": [ {"name":"asOf","in":"query","schema":{"type":"string","format":"date"}} ], "responses": { "200": { "description": "report" } } }
    },
    "/api/scheduled-obligations/calendar": {
      "get": { "summary": "Projected due dates", "parameters": [ {"name":"days","in":"query","schema":{"type":"integer"}}, {"name":"asOf","in":"query","schema":{"type":"string","format":"date"}} ], "responses": { "200": { "description": "calendar entries" } } }
    },
    "/api/scheduled-obligations/export": {
      "post": { "summary": "Archive a snapshot to object storage", "responses": { "201": { "description": "receipt with download URL" }, "501": { "description": "object storage not configured" } } },
      "get": { "summary": "Read back an archived snapshot", "parameters": [ {"name":"key","in":"query","required":true,"schema":{"type":"string"}} ], "responses": { "200": { "description": "snapshot" }, "404": { "description": "no such snapshot for the caller" }, "501": { "description": "object storage not configured" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "security": [], "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "security": [], "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "security": [], "responses": { "200": { "description": "metrics" } } } }
  }
}`
