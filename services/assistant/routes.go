// Copyright (C) 2025 Carely Health (engineering@carely-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package assistant

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the chat API routes with the router.
//
// Description:
//
//	Registers the /v1 chat endpoints with the given Gin router group.
//	The router group should already have any required middleware
//	applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	POST /v1/chat - Route and answer a chat message
//	GET  /v1/health - Health check
//
// Example:
//
//	handlers := assistant.NewHandlers(service, logger)
//
//	v1 := router.Group("/v1")
//	assistant.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	rg.POST("/chat", handlers.HandleChat)
	rg.GET("/health", handlers.HandleHealth)
}
