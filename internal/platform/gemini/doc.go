// Package gemini provides the generation.Model used for screen translation,
// backed by Google's Gemini API through the google.golang.org/genai client.
//
// Model sends one prompt per call with the configured sampling settings and
// stop sequence. Transient failures (rate limiting, server errors, network
// errors) are retried with exponential backoff and jitter; blocked or empty
// responses are returned at once as permanent errors.
package gemini
