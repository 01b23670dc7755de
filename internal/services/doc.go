// Package services defines the shared error taxonomy for the external
// service clients and the orchestration layers built on top of them.
package services
