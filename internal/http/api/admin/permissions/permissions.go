// Package permissions lists the admin routes and the permission key of each.
package permissions

import "strings"

// Definition describes one admin route.
type Definition struct {
	Key    string
	Method string
	Path   string
	Label  string
	Module string
}

var definitions = []Definition{
	newDefinition("GET", "/v0/admin/users", "List users", "Users"),
	newDefinition("PUT", "/v0/admin/users/:id", "Update user", "Users"),
	newDefinition("GET", "/v0/admin/api-keys", "List API keys", "API Keys"),
	newDefinition("PUT", "/v0/admin/api-keys/:id", "Update API key", "API Keys"),
}

func newDefinition(method, path, label, module string) Definition {
	return Definition{Key: Key(method, path), Method: method, Path: path, Label: label, Module: module}
}

// Key builds the permission key for a method and gin route path.
func Key(method, path string) string {
	return strings.ToUpper(strings.TrimSpace(method)) + " " + strings.TrimSpace(path)
}

// Definitions returns every admin route definition.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// DefinitionMap indexes Definitions by key.
func DefinitionMap() map[string]Definition {
	out := make(map[string]Definition, len(definitions))
	for _, d := range definitions {
		out[d.Key] = d
	}
	return out
}
