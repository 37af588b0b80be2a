// Package resolver orders pending migrations so every migration runs after
// the migrations it depends on. It walks dependency edges depth-first with
// an explicit stack and reports circular dependencies.
package resolver
