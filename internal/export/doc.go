// Package export assembles generated slide images into an editable
// presentation document. Pages are analyzed into layered elements
// (background, text, images, tables) and rebuilt slide by slide through
// a DocumentBuilder.
package export
