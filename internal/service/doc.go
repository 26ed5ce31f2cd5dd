// Package service contains the application use cases of the BPM API. It
// orchestrates domain objects and repositories (defined in internal/store)
// to fulfill application features.
//
// Key components:
//
//   - PortabilityService exports screens with their dependencies and imports
//     payloads produced by another installation.
//   - TaskService lists and completes the human tasks of process requests.
//     Completion goes through the WorkflowManager so that task data reaches
//     the process request.
//   - TranslationService enqueues and runs screen translation jobs.
//   - UserService registers users and authenticates them.
//
// Services receive dependencies through constructor injection. Operations
// that write more than one row run inside store.Transactor.WithinTx.
//
// Errors: expected conditions are returned as sentinel errors (ErrNotOwned,
// ErrInvalidStatus, ...) or as the store and portability sentinels wrapped
// with %w. Unexpected failures are wrapped in ServiceError. The API layer
// maps them to status codes with errors.Is and errors.As.
package service
