// Package mocks provides mock implementations for testing the campaignsync
// orchestration core.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks
// for the core ports. The mocks are generated using go:generate directives
// and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	emitter := mocks.NewMockEmitter(ctrl)
//	emitter.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)
package mocks

// Generate mock for the Emitter port from internal/core.
// This creates MockEmitter with Connected and Emit.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=emitter_mock.go github.com/sendfleet/campaignsync/internal/core Emitter

// Generate mock for the SnapshotCache port from internal/core.
// This creates MockSnapshotCache with Store and Load.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=snapshot_cache_mock.go github.com/sendfleet/campaignsync/internal/core SnapshotCache

// Generate mock for the LogArchive port from internal/core.
// This creates MockLogArchive with Append.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=log_archive_mock.go github.com/sendfleet/campaignsync/internal/core LogArchive
