package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/solar-cli/internal/model"
	"github.com/sells-group/solar-cli/pkg/geocode"
)

// --- Geocoder Mock ---

type mockGeocoder struct {
	mock.Mock
}

func (m *mockGeocoder) Geocode(ctx context.Context, address string) (*geocode.Result, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*geocode.Result), args.Error(1)
}

// --- Roof Provider Mock ---

type mockRoofProvider struct {
	mock.Mock
}

func (m *mockRoofProvider) Name() string { return "mock" }

func (m *mockRoofProvider) Candidates(ctx context.Context, c model.Coordinates) ([]model.RoofCandidate, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.RoofCandidate), args.Error(1)
}
