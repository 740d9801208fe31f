// Package buildinfo exposes version information.
//
// Version, Commit and BuildTime are set with ldflags:
//
//	go build -ldflags "-X github.com/yndnr/boxstore-go/internal/infra/buildinfo.Version=v1.0.0"
//
// Unset values fall back to the module and VCS data embedded by the Go
// toolchain.
package buildinfo
