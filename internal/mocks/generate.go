// Package mocks provides mock implementations for testing the delivery coordinator.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our ports.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockRunner := mocks.NewMockAnalysisRunner(ctrl)
//	mockRunner.EXPECT().GetStatus(gomock.Any(), gomock.Any()).Return(model.RunnerStatusCompleted, nil)
package mocks

// Generate mock for AnalysisRunner interface from internal/core package.
// This creates MockAnalysisRunner with methods for all AnalysisRunner interface methods:
// Trigger, GetStatus, FetchArtifact
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=analysis_runner_mock.go github.com/boudydegeer/product-analysis-sub000/internal/core AnalysisRunner
