package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "kultuurivoog/docs"
)

//go:generate swag init -g cmd/kultuurivoog/docs.go -o docs

// @title           Kultuurivoog API
// @version         0.1.0
// @description     Estonian cultural event listings, refresh status and manual refresh.
// @host            localhost:8080
// @BasePath        /
// @schemes         http

func registerDocs(engine *gin.Engine) {
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}
