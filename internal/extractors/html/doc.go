// Package html converts HTML and XHTML filings, such as EDGAR primary
// documents, into Markdown.
package html
