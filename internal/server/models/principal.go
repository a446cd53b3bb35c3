package models

// Principal is the verified identity of the caller, resolved by the external
// session provider. The server treats it as opaque trusted input and never
// re-derives it.
type Principal struct {
	UserID string
	Email  string
}
