// Package manifest persists collected reference sets as JSON.
//
// `serpgrab links --save` writes the collected links so that
// `serpgrab urls --from` can visit them later, and `images --save` lets
// `download --from` materialize a set without a browser. Files are replaced
// atomically. By default they live under $XDG_DATA_HOME/serpgrab/manifests
// (~/.local/share on Linux, Application Support on macOS, %APPDATA% on
// Windows).
package manifest
