// Package swagger holds the OpenAPI document served under /swagger.
// It follows swag's generated layout; run `go generate ./cmd/api` to rebuild
// it from the handler annotations.
package swagger

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
        "/": {
            "get": {
                "security": [
                    {
                        "BasicAuth": []
                    }
                ],
                "description": "HTML page with a multipart form posting a single file to /upload.",
                "produces": [
                    "text/html"
                ],
                "tags": [
                    "share"
                ],
                "summary": "Upload form",
                "responses": {
                    "200": {
                        "description": "HTML page",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {
                            "type": "string"
                        }
                    }
                }
            }
        },
        "/file/{uid}": {
            "get": {
                "description": "Streams the stored file inline. No authentication: the random slug is the only protection.",
                "produces": [
                    "application/octet-stream"
                ],
                "tags": [
                    "share"
                ],
                "summary": "Download a shared file",
                "parameters": [
                    {
                        "type": "string",
                        "description": "File slug, [A-Za-z0-9_.-]+",
                        "name": "uid",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "File content",
                        "schema": {
                            "type": "file"
                        }
                    },
                    "400": {
                        "description": "Invalid file name",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "404": {
                        "description": "File not found",
                        "schema": {
                            "type": "string"
                        }
                    }
                }
            }
        },
        "/upload": {
            "post": {
                "security": [
                    {
                        "BasicAuth": []
                    }
                ],
                "description": "Stores the file under \"{uuid}-{filename}\", creates a short link for it and renders both URLs.",
                "consumes": [
                    "multipart/form-data"
                ],
                "produces": [
                    "text/html"
                ],
                "tags": [
                    "share"
                ],
                "summary": "Upload and share a file",
                "parameters": [
                    {
                        "type": "file",
                        "description": "File to share",
                        "name": "file",
                        "in": "formData",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "HTML page with the short and long URL",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "400": {
                        "description": "No file uploaded",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "413": {
                        "description": "File too large",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "429": {
                        "description": "Rate limit exceeded",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "500": {
                        "description": "Failed to store file",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "502": {
                        "description": "Failed to create short link",
                        "schema": {
                            "type": "string"
                        }
                    }
                }
            }
        }
    },
    "securityDefinitions": {
        "BasicAuth": {
            "type": "basic"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "quickshare API",
	Description:      "Upload a file behind basic auth, get a short link to it, and serve it back by name.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
