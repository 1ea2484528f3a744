// Package dashboard holds the OpenAPI document served at /swagger/.
// Regenerate with: swag init -g internal/auth/http/router.go -o api/dashboard
package dashboard

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "scrum0 Team",
            "url": "https://github.com/scrum0/scrum0"
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
        "/livez": {
            "get": {
                "description": "Liveness probe returning status, uptime and version. Always 200 while the process is running.",
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Health Check Endpoint",
                "responses": {
                    "200": {"description": "status, uptime, version", "schema": {"$ref": "#/definitions/authsdk.HealthResponse"}}
                }
            }
        },
        "/readyz": {
            "get": {
                "description": "Readiness probe checking the session database and the backend connection.\nA backend that is not configured counts as ready: the dashboard runs in demo mode.",
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Readiness Check Endpoint",
                "responses": {
                    "200": {"description": "status, uptime, version, checks", "schema": {"$ref": "#/definitions/authsdk.HealthResponse"}},
                    "503": {"description": "status, uptime, version, checks - service not ready", "schema": {"$ref": "#/definitions/authsdk.HealthResponse"}}
                }
            }
        },
        "/v1/auth/state": {
            "get": {
                "description": "Returns the current session snapshot: user, loading flag, error message, connection status and phase.",
                "produces": ["application/json"],
                "tags": ["Session"],
                "summary": "Get session state",
                "responses": {
                    "200": {"description": "Current session state", "schema": {"$ref": "#/definitions/authsdk.StateResponse"}}
                }
            }
        },
        "/v1/auth/connection": {
            "get": {
                "description": "Probes the backend and records the result in the session state.",
                "produces": ["application/json"],
                "tags": ["Session"],
                "summary": "Check backend connection",
                "responses": {
                    "200": {"description": "connected, configured, error", "schema": {"$ref": "#/definitions/authsdk.ConnectionStatus"}}
                }
            }
        },
        "/v1/auth/signin": {
            "post": {
                "description": "Authenticates with email and password. Without a configured backend a demo profile is created from the email.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Session"],
                "summary": "Sign in",
                "parameters": [
                    {"description": "Credentials", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/authsdk.SignInRequest"}}
                ],
                "responses": {
                    "200": {"description": "Session state after sign-in", "schema": {"$ref": "#/definitions/authsdk.StateResponse"}},
                    "400": {"description": "Malformed body or failed validation", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}},
                    "401": {"description": "Invalid email or password", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}},
                    "409": {"description": "Another operation is in progress", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}},
                    "422": {"description": "Account has no profile", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}},
                    "429": {"description": "Rate limit exceeded", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}},
                    "503": {"description": "Backend unreachable", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}}
                }
            }
        },
        "/v1/auth/signup": {
            "post": {
                "description": "Registers an account and creates its profile. Usernames are stored lower-cased and must be unique.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Session"],
                "summary": "Sign up",
                "parameters": [
                    {"description": "Registration details", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/authsdk.SignUpRequest"}}
                ],
                "responses": {
                    "200": {"description": "Session state after sign-up", "schema": {"$ref": "#/definitions/authsdk.StateResponse"}},
                    "400": {"description": "Malformed body or failed validation", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}},
                    "409": {"description": "Username taken or another operation in progress", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}},
                    "429": {"description": "Rate limit exceeded", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}},
                    "502": {"description": "Backend rejected the request", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}},
                    "503": {"description": "Backend unreachable", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}}
                }
            }
        },
        "/v1/auth/signout": {
            "post": {
                "description": "Ends the session. Always succeeds locally; backend failures are logged.",
                "produces": ["application/json"],
                "tags": ["Session"],
                "summary": "Sign out",
                "responses": {
                    "200": {"description": "Signed-out session state", "schema": {"$ref": "#/definitions/authsdk.StateResponse"}},
                    "409": {"description": "Another operation is in progress", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}}
                }
            }
        },
        "/v1/auth/refresh": {
            "post": {
                "description": "Re-reads the backend session. A transient failure keeps the current user and reports the error.",
                "produces": ["application/json"],
                "tags": ["Session"],
                "summary": "Refresh session",
                "responses": {
                    "200": {"description": "Refreshed session state", "schema": {"$ref": "#/definitions/authsdk.StateResponse"}},
                    "409": {"description": "Another operation is in progress", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}},
                    "502": {"description": "Backend error", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}},
                    "503": {"description": "Backend unreachable", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}}
                }
            }
        },
        "/v1/auth/profile": {
            "patch": {
                "description": "Changes the signed-in user's username, full name or avatar. Omitted fields are left untouched.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Session"],
                "summary": "Update profile",
                "parameters": [
                    {"description": "Fields to change", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/authsdk.ProfileUpdateRequest"}}
                ],
                "responses": {
                    "200": {"description": "Session state with the updated profile", "schema": {"$ref": "#/definitions/authsdk.StateResponse"}},
                    "400": {"description": "Malformed body or failed validation", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}},
                    "401": {"description": "Not signed in", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}},
                    "409": {"description": "Username taken or another operation in progress", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}},
                    "503": {"description": "Backend unreachable", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}}
                }
            }
        },
        "/v1/auth/events": {
            "get": {
                "description": "Upgrades to a websocket and pushes a StateResponse on connect and after every state change. Client messages are ignored.",
                "tags": ["Session"],
                "summary": "Stream session state",
                "responses": {
                    "101": {"description": "Stream of session states", "schema": {"$ref": "#/definitions/authsdk.StateResponse"}}
                }
            }
        }
    },
    "definitions": {
        "authsdk.ConnectionStatus": {
            "type": "object",
            "properties": {
                "configured": {"type": "boolean"},
                "connected": {"type": "boolean"},
                "error": {"type": "string"}
            }
        },
        "authsdk.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "error_description": {"type": "string"}
            }
        },
        "authsdk.HealthChecks": {
            "type": "object",
            "properties": {
                "backend": {"type": "string"},
                "database": {"type": "string"}
            }
        },
        "authsdk.HealthResponse": {
            "type": "object",
            "properties": {
                "checks": {"$ref": "#/definitions/authsdk.HealthChecks"},
                "status": {"type": "string"},
                "uptime": {"type": "string"},
                "version": {"type": "string"}
            }
        },
        "authsdk.Profile": {
            "type": "object",
            "properties": {
                "avatar_url": {"type": "string"},
                "created_at": {"type": "string"},
                "email": {"type": "string"},
                "full_name": {"type": "string"},
                "id": {"type": "string"},
                "updated_at": {"type": "string"},
                "username": {"type": "string"}
            }
        },
        "authsdk.ProfileUpdateRequest": {
            "type": "object",
            "properties": {
                "avatar_url": {"type": "string"},
                "full_name": {"type": "string"},
                "username": {"type": "string"}
            }
        },
        "authsdk.SignInRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "authsdk.SignUpRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "full_name": {"type": "string"},
                "password": {"type": "string"},
                "username": {"type": "string"}
            }
        },
        "authsdk.StateResponse": {
            "type": "object",
            "properties": {
                "connection_status": {"$ref": "#/definitions/authsdk.ConnectionStatus"},
                "demo_mode": {"type": "boolean"},
                "error": {"type": "string"},
                "loading": {"type": "boolean"},
                "phase": {"type": "string"},
                "user": {"$ref": "#/definitions/authsdk.Profile"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "scrum0 Dashboard Session API",
	Description:      "Session control for the scrum0 dashboard: sign-up, sign-in, sign-out, profile updates and backend connection health.\n\nEvery mutating endpoint returns the resulting session state. State changes are also pushed over the /v1/auth/events websocket.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
