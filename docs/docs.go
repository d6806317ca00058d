// Package docs holds the swagger document served under -tags=swagger.
// Regenerate with `swag init -g cmd/streamd/docs.go`.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "streamd maintainers"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/models": {
            "get": {
                "produces": ["application/json"],
                "tags": ["models"],
                "summary": "List models",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ModelsResponse"}}
                }
            }
        },
        "/status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["status"],
                "summary": "Server status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StatusResponse"}}
                }
            }
        },
        "/v1/models/load": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["models"],
                "summary": "Load a model, replacing the current one",
                "parameters": [
                    {"description": "model to load", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.LoadModelRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.LoadedModel"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/v1/models/unload": {
            "post": {
                "produces": ["application/json"],
                "tags": ["models"],
                "summary": "Unload the current model",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/v1/chat/completions": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["text/event-stream"],
                "tags": ["generation"],
                "summary": "Chat completion streamed as server-sent events",
                "parameters": [
                    {"description": "chat transcript and sampling parameters", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.ChatCompletionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StreamChunk"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/v1/generate": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["text/event-stream"],
                "tags": ["generation"],
                "summary": "Raw prompt completion streamed as server-sent events",
                "parameters": [
                    {"description": "prompt and sampling parameters", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.GenerateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StreamChunk"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "types.Message": {
            "type": "object",
            "properties": {
                "role": {"type": "string", "example": "user"},
                "content": {"type": "string", "example": "What is 2+2?"}
            }
        },
        "types.ChatCompletionRequest": {
            "type": "object",
            "properties": {
                "model": {"type": "string"},
                "messages": {"type": "array", "items": {"$ref": "#/definitions/types.Message"}},
                "max_tokens": {"type": "integer", "example": 256},
                "temperature": {"type": "number", "example": 0.7},
                "top_p": {"type": "number", "example": 0.95},
                "top_k": {"type": "integer", "example": 40},
                "repetition_penalty": {"type": "number", "example": 1.2},
                "stop": {"type": "array", "items": {"type": "string"}},
                "seed": {"type": "integer"},
                "stream": {"type": "boolean", "example": true},
                "granularity": {"type": "string", "example": "fragment"}
            }
        },
        "types.GenerateRequest": {
            "type": "object",
            "properties": {
                "prompt": {"type": "string", "example": "2+2="},
                "max_tokens": {"type": "integer", "example": 256},
                "temperature": {"type": "number", "example": 0.7},
                "top_p": {"type": "number", "example": 0.95},
                "top_k": {"type": "integer", "example": 40},
                "repetition_penalty": {"type": "number", "example": 1.2},
                "stop": {"type": "array", "items": {"type": "string"}},
                "seed": {"type": "integer"},
                "stream": {"type": "boolean", "example": true},
                "granularity": {"type": "string", "example": "fragment"}
            }
        },
        "types.LoadModelRequest": {
            "type": "object",
            "properties": {
                "model": {"type": "string", "example": "tinyllama-q4.gguf"},
                "type": {"type": "string"},
                "device": {"type": "string"}
            }
        },
        "types.Model": {
            "type": "object",
            "properties": {
                "id": {"type": "string", "example": "tinyllama-q4.gguf"},
                "name": {"type": "string", "example": "TinyLlama (Q4)"},
                "path": {"type": "string"},
                "type": {"type": "string", "example": "llama.cpp"},
                "family": {"type": "string", "example": "llama"}
            }
        },
        "types.LoadedModel": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "path": {"type": "string"},
                "type": {"type": "string"},
                "family": {"type": "string"},
                "device": {"type": "string", "example": "cpu"},
                "loaded_at": {"type": "integer", "example": 1700000000}
            }
        },
        "types.ModelsResponse": {
            "type": "object",
            "properties": {
                "models": {"type": "array", "items": {"$ref": "#/definitions/types.Model"}},
                "loaded": {"$ref": "#/definitions/types.LoadedModel"}
            }
        },
        "types.Delta": {
            "type": "object",
            "properties": {
                "role": {"type": "string"},
                "content": {"type": "string"}
            }
        },
        "types.ChunkChoice": {
            "type": "object",
            "properties": {
                "index": {"type": "integer"},
                "delta": {"$ref": "#/definitions/types.Delta"},
                "finish_reason": {"type": "string"}
            }
        },
        "types.StreamChunk": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "object": {"type": "string"},
                "created": {"type": "integer"},
                "model": {"type": "string"},
                "choices": {"type": "array", "items": {"$ref": "#/definitions/types.ChunkChoice"}}
            }
        },
        "types.StatusResponse": {
            "type": "object",
            "properties": {
                "state": {"type": "string", "example": "ready"},
                "loaded": {"$ref": "#/definitions/types.LoadedModel"},
                "active_sessions": {"type": "integer"},
                "queue_len": {"type": "integer"},
                "max_queue_depth": {"type": "integer", "example": 32},
                "parallel_sessions": {"type": "boolean"},
                "last_error": {"type": "string"},
                "uptime_seconds": {"type": "integer"},
                "server_time_unix": {"type": "integer"},
                "loads_total": {"type": "integer"},
                "sessions_total": {"type": "integer"}
            }
        },
        "types.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string", "example": "no model is currently loaded"},
                "code": {"type": "integer", "example": 400}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "streamd API",
	Description:      "Streaming text-generation API over server-sent events.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
