package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Editorial API",
        "description": "Journal submission, peer review, APC billing and certificate issuance",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Auth", "description": "Authentication"},
        {"name": "Articles", "description": "Submissions and editorial workflow"},
        {"name": "Invoices", "description": "APC billing"},
        {"name": "Certificates", "description": "Publication certificates"},
        {"name": "Journals", "description": "Journal catalogue"},
        {"name": "Webhooks", "description": "Payment gateway callbacks"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate with email and password",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Auth"],
                "summary": "Exchange a refresh token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RefreshTokenRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Auth"],
                "summary": "Revoke the current refresh token",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RefreshTokenRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/journals": {
            "get": {
                "tags": ["Journals"],
                "summary": "List active journals",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/journals/{id}": {
            "get": {
                "tags": ["Journals"],
                "summary": "Get one journal",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/articles": {
            "get": {
                "tags": ["Articles"],
                "summary": "List articles visible to the caller",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "journalId", "in": "query", "type": "string"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "offset", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Articles"],
                "summary": "Create a draft article",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateArticleRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/articles/{id}": {
            "get": {
                "tags": ["Articles"],
                "summary": "Get article detail",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Articles"],
                "summary": "Update a draft article",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateDraftRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/articles/{id}/manuscript": {
            "post": {
                "tags": ["Articles"],
                "summary": "Attach the initial manuscript",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ManuscriptUploadRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/articles/{id}/revisions": {
            "post": {
                "tags": ["Articles"],
                "summary": "Submit a revised manuscript",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ManuscriptUploadRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/articles/{id}/actions": {
            "post": {
                "tags": ["Articles"],
                "summary": "Perform an editorial workflow action",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/WorkflowActionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Concurrent status change, retry"},
                    "422": {"description": "Transition not allowed"}
                }
            }
        },
        "/articles/{id}/versions": {
            "get": {
                "tags": ["Articles"],
                "summary": "List manuscript versions",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/articles/{id}/timeline": {
            "get": {
                "tags": ["Articles"],
                "summary": "List the article audit timeline",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/articles/{id}/allowed-actions": {
            "get": {
                "tags": ["Articles"],
                "summary": "List reachable statuses for the caller",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/articles/{id}/invoice": {
            "get": {
                "tags": ["Invoices"],
                "summary": "Get the invoice attached to an article",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/articles/{id}/certificate": {
            "post": {
                "tags": ["Certificates"],
                "summary": "Issue the certificate for a published article",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/invoices": {
            "get": {
                "tags": ["Invoices"],
                "summary": "List invoices visible to the caller",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "offset", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/invoices/{id}": {
            "get": {
                "tags": ["Invoices"],
                "summary": "Get an invoice with payment attempts",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/invoices/{id}/pay": {
            "post": {
                "tags": ["Invoices"],
                "summary": "Start checkout for a pending invoice",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/InitiatePaymentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/invoices/{id}/mark-paid": {
            "post": {
                "tags": ["Invoices"],
                "summary": "Manually confirm an invoice as paid",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/MarkPaidRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/certificates/{certificateId}/verify": {
            "get": {
                "tags": ["Certificates"],
                "summary": "Verify a certificate by its public ID",
                "parameters": [
                    {"name": "certificateId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/certificates/{certificateId}/pdf": {
            "get": {
                "tags": ["Certificates"],
                "summary": "Download the certificate PDF",
                "security": [{"BearerAuth": []}],
                "produces": ["application/pdf"],
                "parameters": [
                    {"name": "certificateId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "PDF file"}
                }
            }
        },
        "/certificates/{certificateId}/revoke": {
            "post": {
                "tags": ["Certificates"],
                "summary": "Revoke a certificate",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "certificateId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RevokeCertificateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/webhooks/payments/{provider}": {
            "post": {
                "tags": ["Webhooks"],
                "summary": "Process a payment gateway webhook",
                "parameters": [
                    {"name": "provider", "in": "path", "required": true, "type": "string"},
                    {"name": "X-Signature", "in": "header", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Signature verification failed"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "RefreshTokenRequest": {
            "type": "object",
            "properties": {
                "refresh_token": {"type": "string"}
            },
            "required": ["refresh_token"]
        },
        "CreateArticleRequest": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "abstract": {"type": "string"},
                "keywords": {"type": "string"},
                "journal_id": {"type": "string"},
                "authors": {"type": "array", "items": {"type": "object"}},
                "ethics_declaration": {"type": "boolean"},
                "originality_declaration": {"type": "boolean"}
            },
            "required": ["title", "journal_id"]
        },
        "UpdateDraftRequest": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "abstract": {"type": "string"},
                "keywords": {"type": "string"},
                "authors": {"type": "array", "items": {"type": "object"}},
                "ethics_declaration": {"type": "boolean"},
                "originality_declaration": {"type": "boolean"}
            }
        },
        "ManuscriptUploadRequest": {
            "type": "object",
            "properties": {
                "manuscript_file": {"type": "string"},
                "notes": {"type": "string"}
            },
            "required": ["manuscript_file"]
        },
        "WorkflowActionRequest": {
            "type": "object",
            "properties": {
                "action": {"type": "string", "enum": ["submit", "desk_reject", "send_to_review", "request_revision", "accept", "reject", "move_to_production", "schedule", "publish", "archive"]},
                "comments": {"type": "string"},
                "revision_type": {"type": "string", "enum": ["MINOR", "MAJOR"]},
                "publication_url": {"type": "string"},
                "publication_date": {"type": "string"}
            },
            "required": ["action"]
        },
        "InitiatePaymentRequest": {
            "type": "object",
            "properties": {
                "provider": {"type": "string", "enum": ["PAYME", "CLICK"]}
            },
            "required": ["provider"]
        },
        "MarkPaidRequest": {
            "type": "object",
            "properties": {
                "transaction_id": {"type": "string"},
                "note": {"type": "string"}
            },
            "required": ["transaction_id"]
        },
        "RevokeCertificateRequest": {
            "type": "object",
            "properties": {
                "reason": {"type": "string"}
            },
            "required": ["reason"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
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
