package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterDocs serves a Swagger UI page and the OpenAPI document for the
// signing and verification routes.
func RegisterDocs(r gin.IRoutes) {
	r.GET("/swagger/index.html", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(swaggerHTML))
	})
	r.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json", []byte(openAPIDoc))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>tandatangan API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({ url: '/swagger/doc.json', dom_id: '#swagger-ui' })
    </script>
  </body>
</html>`

const openAPIDoc = `{
  "openapi": "3.0.0",
  "info": { "title": "tandatangan", "version": "v1" },
  "components": {
    "securitySchemes": { "bearer": { "type": "http", "scheme": "bearer" } },
    "schemas": {
      "Error": { "type": "object", "properties": {
        "error": {"type":"string"}, "code": {"type":"string"}, "limit": {"type":"integer"},
        "remaining": {"type":"integer"}, "retryAfterMinutes": {"type":"integer"} } },
      "Signature": { "type": "object", "properties": {
        "signerName": {"type":"string"}, "pageNumber": {"type":"integer"},
        "positionX": {"type":"number"}, "positionY": {"type":"number"},
        "width": {"type":"number"}, "height": {"type":"number"}, "imageData": {"type":"string"} } }
    }
  },
  "security": [ { "bearer": [] } ],
  "paths": {
    "/api/groups": { "post": { "summary": "Create a group", "responses": { "201": { "description": "group" }, "403": { "description": "group quota reached" } } } },
    "/api/groups/{groupId}/members": { "post": { "summary": "Add a member (admin only)", "responses": { "201": { "description": "member" } } } },
    "/api/groups/{groupId}/members/{userId}": { "delete": { "summary": "Remove a member; pending signer rows are dropped", "responses": { "204": { "description": "removed" } } } },
    "/api/groups/{groupId}/documents": { "post": { "summary": "Upload a group document (multipart: title, file)", "responses": { "201": { "description": "document" } } } },
    "/api/groups/{groupId}/documents/{documentId}/signers": {
      "get": { "summary": "List signers", "responses": { "200": { "description": "signers" } } },
      "post": { "summary": "Assign signers", "responses": { "200": { "description": "document" } } },
      "put": { "summary": "Replace the signer set", "responses": { "200": { "description": "document" } } }
    },
    "/api/groups/{groupId}/documents/{documentId}/signatures": { "post": { "summary": "Place the caller's signature", "requestBody": { "content": { "application/json": { "schema": { "$ref": "#/components/schemas/Signature" } } } }, "responses": { "201": { "description": "signature" } } } },
    "/api/groups/{groupId}/documents/{documentId}/reject": { "post": { "summary": "Reject signing", "responses": { "200": { "description": "document" } } } },
    "/api/groups/{groupId}/documents/{documentId}/finalize": { "post": { "summary": "Produce the signed PDF once every signer has signed", "responses": { "200": { "description": "document, url and access code" }, "409": { "description": "incomplete or already finalized" } } } },
    "/api/documents": { "post": { "summary": "Upload a personal document (multipart)", "responses": { "201": { "description": "document" } } } },
    "/api/documents/{documentId}/versions": { "post": { "summary": "Upload a new version (multipart)", "responses": { "201": { "description": "version" } } } },
    "/api/packages": { "post": { "summary": "Create a signing package", "responses": { "201": { "description": "package" } } } },
    "/api/packages/{packageId}": { "get": { "summary": "Package with its documents", "responses": { "200": { "description": "package" } } } },
    "/api/packages/{packageId}/documents": { "post": { "summary": "Add a document to the package", "responses": { "201": { "description": "package document" } } } },
    "/api/packages/{packageId}/sign": { "post": { "summary": "Sign every document in the package", "responses": { "200": { "description": "completed or partial_failure" } } } },
    "/api/verify/{signatureId}": { "get": { "security": [], "summary": "Verification details; locked signatures hide them", "responses": { "200": { "description": "verification" } } } },
    "/api/verify/{signatureId}/unlock": { "post": { "security": [], "summary": "Unlock with the access code", "responses": { "200": { "description": "details and unlock token" }, "401": { "description": "incorrect PIN" }, "423": { "description": "locked" } } } },
    "/api/verify/{signatureId}/file": { "post": { "security": [], "summary": "Compare an uploaded file with the signed version (X-Unlock-Token header)", "responses": { "200": { "description": "match result" } } } },
    "/health": { "get": { "security": [], "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "security": [], "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
