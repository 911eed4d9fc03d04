package main

// General API documentation for swaggo. Run `make swagger-gen` to regenerate docs.
//
// @title           visiond API
// @version         1.0
// @description     OpenAI-compatible gateway and orchestrator admin API for memory-budgeted local model workers.
//
// @contact.name   visiond maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
//
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
