// Package templates holds the server-rendered HTML components. Edit the
// .templ sources and regenerate with `templ generate`.
package templates
