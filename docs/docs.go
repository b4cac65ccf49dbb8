// Package docs holds the OpenAPI description served under /swagger.
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
        "/submit-survey": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["surveys"],
                "summary": "Submit an occupancy survey",
                "parameters": [
                    {
                        "description": "survey",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/api.SubmitSurveyRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.SubmitSurveyResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httputil.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/httputil.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/httputil.ErrorResponse"}}
                }
            }
        },
        "/query-occupancy": {
            "get": {
                "produces": ["application/json"],
                "tags": ["occupancy"],
                "summary": "Estimate occupancy around a point",
                "parameters": [
                    {"type": "number", "description": "latitude", "name": "lat", "in": "query", "required": true},
                    {"type": "number", "description": "longitude", "name": "lon", "in": "query", "required": true},
                    {"type": "number", "description": "half side of the box in degrees", "name": "radius", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/entity.OccupancyEstimate"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httputil.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/httputil.ErrorResponse"}}
                }
            }
        },
        "/habits": {
            "get": {
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "Most visited areas of a user",
                "parameters": [
                    {"type": "integer", "description": "user id", "name": "user_id", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.GetHabitsResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httputil.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/httputil.ErrorResponse"}}
                }
            }
        },
        "/ranking": {
            "get": {
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "Users ordered by coins",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/entity.RankingEntry"}}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/httputil.ErrorResponse"}}
                }
            }
        },
        "/users/nearby": {
            "get": {
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "Users who reported from the same area cell",
                "parameters": [
                    {"type": "number", "description": "latitude", "name": "lat", "in": "query", "required": true},
                    {"type": "number", "description": "longitude", "name": "lon", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/entity.NearbyUser"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httputil.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/httputil.ErrorResponse"}}
                }
            }
        },
        "/users/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "Get user by id",
                "parameters": [
                    {"type": "integer", "description": "user id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/entity.User"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httputil.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/httputil.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/httputil.ErrorResponse"}}
                }
            }
        },
        "/healthz": {
            "get": {
                "produces": ["application/json"],
                "tags": ["service"],
                "summary": "Database liveness",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.HealthResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/httputil.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "api.SubmitSurveyRequest": {
            "type": "object",
            "properties": {
                "user_id": {"type": "integer"},
                "latitude": {"type": "number"},
                "longitude": {"type": "number"},
                "occupancy_level": {
                    "type": "string",
                    "enum": ["Sparse (>0%)", "Moderate (>25%)", "Crowded (>50%)", "Very Crowded (>75%)"]
                }
            }
        },
        "api.SubmitSurveyResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "newCoins": {"type": "integer"}
            }
        },
        "api.GetHabitsResponse": {
            "type": "object",
            "properties": {
                "habits": {"type": "array", "items": {"$ref": "#/definitions/entity.AreaVisits"}}
            }
        },
        "api.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"}
            }
        },
        "entity.AreaVisits": {
            "type": "object",
            "properties": {
                "area_id": {"type": "string"},
                "visit_count": {"type": "integer"}
            }
        },
        "entity.NearbyUser": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "name": {"type": "string"},
                "lastSeen": {"type": "string"}
            }
        },
        "entity.OccupancyEstimate": {
            "type": "object",
            "properties": {
                "score": {"type": "number"},
                "level": {"type": "string"},
                "samples": {"type": "integer"}
            }
        },
        "entity.RankingEntry": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "username": {"type": "string"},
                "coins": {"type": "integer"}
            }
        },
        "entity.User": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "name": {"type": "string"},
                "coins": {"type": "integer"}
            }
        },
        "httputil.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"}
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
	Title:            "CampusFlow API",
	Description:      "Crowd-sensing backend: survey submissions, occupancy estimates, rankings and visit habits",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
