// Package services implements the driving port interfaces.
// Services contain the ingestion and audit logic and orchestrate
// calls to driven ports (adapters).
//
// Services are pure Go with no CGO.
package services
