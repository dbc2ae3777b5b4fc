// Package telemetry defines the memory-usage collaborator interface consumed
// by the pressure components, plus the sysinfo-backed implementation used in
// production.
package telemetry
