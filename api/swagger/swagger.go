package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Gallery API",
        "description": "Photo upload gallery with per-client daily quota",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Photos", "description": "Upload, listing and original download"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        },
        "/upload": {
            "post": {
                "tags": ["Photos"],
                "summary": "Upload a photo",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "file", "in": "formData", "type": "file", "required": true},
                    {"name": "mission_number", "in": "formData", "type": "string"},
                    {"name": "mission_desc", "in": "formData", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Accepted", "schema": {"$ref": "#/definitions/UploadResponse"}},
                    "400": {"description": "Missing or invalid file"},
                    "413": {"description": "File too large"},
                    "429": {"description": "Daily upload limit reached"},
                    "500": {"description": "Image processing failed"}
                }
            }
        },
        "/photos": {
            "get": {
                "tags": ["Photos"],
                "summary": "List all photos, most recent first",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"type": "array", "items": {"$ref": "#/definitions/Photo"}}
                    }
                }
            }
        },
        "/download/{id}": {
            "get": {
                "tags": ["Photos"],
                "summary": "Download the original file for a photo",
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Original file as attachment"},
                    "404": {"description": "Not Found"}
                }
            }
        }
    },
    "definitions": {
        "Photo": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "url": {"type": "string"},
                "download_url": {"type": "string"},
                "name": {"type": "string"},
                "original_ext": {"type": "string"},
                "mission_number": {"type": "string"},
                "mission_desc": {"type": "string"},
                "has_mission": {"type": "boolean"},
                "uploaded_at": {"type": "string"},
                "client_ip": {"type": "string"}
            }
        },
        "UploadResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "photo": {"$ref": "#/definitions/Photo"},
                "error": {"type": "string"}
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
