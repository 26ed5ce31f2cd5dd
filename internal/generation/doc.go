// Package generation turns the user-facing strings of a screen into
// translations with a large language model.
//
// The Translator splits strings into HTML and plain text groups, renders one
// prompt per group from the embedded templates, and parses the model's JSON
// answer. The model itself sits behind the Model interface; the gemini
// package provides the production implementation.
package generation
