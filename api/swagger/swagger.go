package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Admissions API",
        "description": "Multi-round admissions seat-allocation engine: rounds, call lists, interest confirmation, eligibility reviews and seat grants.",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {"name": "Authentication", "description": "Login and session identity"},
        {"name": "Catalog", "description": "Editions and courses"},
        {"name": "Categories", "description": "Quota categories, review requirements and fallback edges"},
        {"name": "Seats", "description": "Seat inventory per edition, course and category"},
        {"name": "Rounds", "description": "Selection round lifecycle: create, publish, close, reopen"},
        {"name": "Registrations", "description": "Candidate registrations and per-round status"},
        {"name": "Scores", "description": "Score ingestion for ranking"},
        {"name": "CallLists", "description": "Per-round call lists and their summoned entries"},
        {"name": "Interest", "description": "Candidate interest confirmation within a round"},
        {"name": "Reviews", "description": "Eligibility document reviews and appeals"},
        {"name": "Exports", "description": "Signed call-list export downloads"}
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
                    "200": {"description": "Ready"},
                    "503": {"description": "Degraded"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate and issue a JWT",
                "responses": {
                    "200": {"description": "Token issued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current authenticated identity",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Claims", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/editions": {
            "get": {
                "tags": ["Catalog"],
                "summary": "List editions",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Editions"}}
            },
            "post": {
                "tags": ["Catalog"],
                "summary": "Create an edition",
                "security": [{"BearerAuth": []}],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/courses": {
            "get": {
                "tags": ["Catalog"],
                "summary": "List courses",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Courses"}}
            },
            "post": {
                "tags": ["Catalog"],
                "summary": "Create a course",
                "security": [{"BearerAuth": []}],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/categories": {
            "get": {
                "tags": ["Categories"],
                "summary": "List quota categories",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Categories"}}
            },
            "post": {
                "tags": ["Categories"],
                "summary": "Create a quota category",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Created"},
                    "422": {"description": "Validation failed"}
                }
            }
        },
        "/categories/edges": {
            "get": {
                "tags": ["Categories"],
                "summary": "List fallback edges",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Edges"}}
            },
            "post": {
                "tags": ["Categories"],
                "summary": "Add a fallback edge",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Created"},
                    "422": {"description": "Edge would close a cycle"}
                }
            }
        },
        "/seats": {
            "post": {
                "tags": ["Seats"],
                "summary": "Create seats for an edition, course and category",
                "security": [{"BearerAuth": []}],
                "responses": {"201": {"description": "Seats created"}}
            }
        },
        "/rounds": {
            "post": {
                "tags": ["Rounds"],
                "summary": "Create a selection round",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Created"},
                    "422": {"description": "Validation failed"}
                }
            }
        },
        "/rounds/{id}/publish": {
            "post": {
                "tags": ["Rounds"],
                "summary": "Publish a round",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Published"}}
            }
        },
        "/rounds/{id}/close": {
            "post": {
                "tags": ["Rounds"],
                "summary": "Enqueue atomic round close",
                "security": [{"BearerAuth": []}],
                "responses": {"202": {"description": "Accepted"}}
            }
        },
        "/rounds/{id}/reopen": {
            "post": {
                "tags": ["Rounds"],
                "summary": "Enqueue round reopen",
                "security": [{"BearerAuth": []}],
                "responses": {"202": {"description": "Accepted"}}
            }
        },
        "/rounds/{id}/call-lists": {
            "get": {
                "tags": ["CallLists"],
                "summary": "List call lists for a round",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Call lists"}}
            },
            "post": {
                "tags": ["CallLists"],
                "summary": "Build a call list",
                "security": [{"BearerAuth": []}],
                "responses": {"201": {"description": "Built"}}
            }
        },
        "/rounds/{id}/registrations/{regID}/interest": {
            "post": {
                "tags": ["Interest"],
                "summary": "Confirm interest in a round",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Confirmed"},
                    "409": {"description": "Already confirmed in this round"}
                }
            },
            "delete": {
                "tags": ["Interest"],
                "summary": "Cancel a confirmation",
                "security": [{"BearerAuth": []}],
                "responses": {"204": {"description": "Cancelled"}}
            }
        },
        "/rounds/{id}/registrations/{regID}/review": {
            "put": {
                "tags": ["Reviews"],
                "summary": "Record a sub-review verdict",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Recorded"}}
            },
            "get": {
                "tags": ["Reviews"],
                "summary": "Fetch the review bundle",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Bundle"}}
            }
        },
        "/registrations": {
            "post": {
                "tags": ["Registrations"],
                "summary": "Create a registration",
                "security": [{"BearerAuth": []}],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/registrations/{id}/rounds/{roundID}/status": {
            "get": {
                "tags": ["Registrations"],
                "summary": "Derived per-round registration status",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Status"}}
            }
        },
        "/scores/import": {
            "post": {
                "tags": ["Scores"],
                "summary": "Import score rows",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Import result"}}
            }
        },
        "/exports/{token}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download an export by signed token",
                "responses": {
                    "200": {"description": "File"},
                    "401": {"description": "Token invalid or expired"}
                }
            }
        }
    },
    "definitions": {
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
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
