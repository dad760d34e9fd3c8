// Package extractors provides implementations of the Extractor interface
// for the upload formats a filing may arrive in. Each extractor knows how to
// turn one family of MIME types into normalised Markdown.
//
// Extractors are registered with the Registry at startup.
package extractors
