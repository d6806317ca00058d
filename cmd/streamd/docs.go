package main

// General API documentation for swaggo. Regenerate ./docs with
// `swag init -g cmd/streamd/docs.go -d ./,./internal/httpapi,./pkg/types`.
//
// @title           streamd API
// @version         1.0
// @description     Streaming text-generation API over server-sent events.
//
// @contact.name   streamd maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
