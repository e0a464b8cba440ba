// Package service provides application-level services that coordinate
// stores, the filesystem, and transactions: versioned artifact
// persistence for page images and the project file layout.
package service
