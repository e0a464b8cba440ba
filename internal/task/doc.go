// Package task manages background job queuing, processing, and lifecycle
// for slide deck generation. It provides the bounded worker pools, the
// per-page fan-out executor, progress tracking, and the staged pipelines
// behind the long-running operations (description generation, image
// generation, renovation, export) so they never block request handling.
package task
