package importer

import (
	"context"
	"errors"
	"testing"

	"coupon-engine/internal/metrics"
	"coupon-engine/internal/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockCreator is a mock implementation of Creator.
type MockCreator struct {
	mock.Mock
}

func (m *MockCreator) Create(ctx context.Context, req *model.CreateCouponRequest) (*model.Coupon, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Coupon), args.Error(1)
}

func byCode(code string) interface{} {
	return mock.MatchedBy(func(req *model.CreateCouponRequest) bool { return req.Code == code })
}

func staticLoader(files map[string][]model.CreateCouponRequest) Loader {
	return &mockLoader{
		loadFunc: func(ctx context.Context, path string) ([]model.CreateCouponRequest, error) {
			defs, ok := files[path]
			if !ok {
				return nil, errors.New("no such file")
			}
			return defs, nil
		},
	}
}

func TestImporter_Run(t *testing.T) {
	loader := staticLoader(map[string][]model.CreateCouponRequest{
		"a.yaml": {{Code: "NEW1"}, {Code: "TAKEN"}},
		"b.yaml": {{Code: "NEW2"}, {Code: "BAD"}},
	})

	creator := new(MockCreator)
	creator.On("Create", mock.Anything, byCode("NEW1")).Return(&model.Coupon{Code: "NEW1"}, nil)
	creator.On("Create", mock.Anything, byCode("NEW2")).Return(&model.Coupon{Code: "NEW2"}, nil)
	creator.On("Create", mock.Anything, byCode("TAKEN")).Return(nil, model.ErrCouponCodeTaken)
	creator.On("Create", mock.Anything, byCode("BAD")).
		Return(nil, &model.ValidationError{Field: "discountType", Message: "is invalid"})

	m := metrics.New(prometheus.NewRegistry())
	im := New(loader, creator, m, zerolog.Nop())

	summary, err := im.Run(context.Background(), []string{"a.yaml", "b.yaml"})

	require.NoError(t, err)
	assert.Equal(t, &Summary{Files: 2, Created: 2, Skipped: 1, Invalid: 1}, summary)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ImportedCoupons.WithLabelValues(metrics.ImportCreated)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ImportedCoupons.WithLabelValues(metrics.ImportSkipped)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ImportedCoupons.WithLabelValues(metrics.ImportInvalid)))
	creator.AssertExpectations(t)
}

func TestImporter_Run_NoPaths(t *testing.T) {
	creator := new(MockCreator)
	im := New(staticLoader(nil), creator, metrics.New(prometheus.NewRegistry()), zerolog.Nop())

	summary, err := im.Run(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, &Summary{}, summary)
	creator.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestImporter_Run_Errors(t *testing.T) {
	tests := []struct {
		name        string
		paths       []string
		setupMock   func(*MockCreator)
		errContains string
	}{
		{
			name:        "unreadable file",
			paths:       []string{"missing.yaml"},
			setupMock:   func(m *MockCreator) {},
			errContains: "failed to load coupon definitions missing.yaml",
		},
		{
			name:  "store failure",
			paths: []string{"a.yaml"},
			setupMock: func(m *MockCreator) {
				m.On("Create", mock.Anything, byCode("NEW1")).Return(nil, errors.New("connection refused"))
			},
			errContains: `failed to import coupon "NEW1" from a.yaml`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := staticLoader(map[string][]model.CreateCouponRequest{
				"a.yaml": {{Code: "NEW1"}, {Code: "NEW2"}},
			})
			creator := new(MockCreator)
			tt.setupMock(creator)

			im := New(loader, creator, metrics.New(prometheus.NewRegistry()), zerolog.Nop())

			_, err := im.Run(context.Background(), tt.paths)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
			creator.AssertNotCalled(t, "Create", mock.Anything, byCode("NEW2"))
		})
	}
}
