// Package fetch retrieves remote image references over HTTP.
//
// Only a 200 response counts as success. Everything else, including other
// 2xx codes and redirects that end in an error, is reported as a transport
// error carrying the status so the caller can clean up and move on. There
// are no retries.
package fetch
