// Package api handles incoming HTTP requests, request validation and
// response formatting. It adapts the HTTP surface (auth, tasks, screen
// export and translation, imports) to the application services.
//
// Errors from the services are turned into status codes and client-safe
// messages in one place, HandleAPIError.
package api
