// Package model holds the entities persisted by the repository layer
// and the request/response payloads exchanged with clients.
//
// Each entity lives in its own subpackage (e.g. model/user).
package model

// HealthResponse is the body of the static liveness probe.
type HealthResponse struct {
	Status string `json:"status"`
}
