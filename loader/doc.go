// Package loader reads source documents from a directory tree.
//
// Plain text and markdown files are read through langchaingo's text loader.
// PDF files are converted to plain text, one document per file.
package loader
