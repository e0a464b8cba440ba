// Package generation provides interfaces and prompt assembly for
// interacting with external AI services. It abstracts the details of
// text/image model integration (Gemini) and document parsing, allowing
// the pipelines to generate slide content without coupling to specific
// external services.
package generation
