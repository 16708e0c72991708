// Package docs holds the OpenAPI description served at /swagger when
// SWAGGER_ENABLED is set. The route annotations on the handlers are the
// source of truth; regenerate this file with `swag init -g internal/http/router.go -o internal/docs`.
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
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {"name": "Identity", "description": "Anonymous sessions, verification and quota"},
        {"name": "Chats", "description": "Tutoring conversations"},
        {"name": "Messages", "description": "User turns and assistant replies"},
        {"name": "Attachments", "description": "Files staged for the next message"},
        {"name": "Feedback", "description": "Reactions to assistant replies"},
        {"name": "Courses", "description": "Course creation wizard and generated courses"},
        {"name": "Topics", "description": "Topic and learning material generation"},
        {"name": "Account", "description": "Profile and settings"},
        {"name": "Subscription", "description": "Pricing plans and billing cycle"},
        {"name": "Contact", "description": "Contact form"}
    ],
    "paths": {}
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Tutor API",
	Description:      "AI tutoring chat, course wizard and learning material generation.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
