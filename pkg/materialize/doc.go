// Package materialize turns collected image references into files.
//
// A reference is either inline (data:image/<subtype>;base64,<payload>) or
// remote (http:// or https://). Parse classifies it before anything
// branches on kind; everything else is rejected as unsupported.
//
// Files are named image_<n>.<ext> by 1-based position in the input. Inline
// images use their subtype as the extension, remote images always use jpg.
// A failed remote download removes whatever sits at its computed path.
package materialize
