// Package gemini implements the generation boundary interfaces using
// Google's Gemini API. One generator serves text generation, image
// generation and editing, and layout captioning; all calls share the
// same retry policy.
package gemini
