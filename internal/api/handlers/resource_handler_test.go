package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/arnabghosh/compute-matcher/internal/api/dto"
	"github.com/arnabghosh/compute-matcher/internal/capability"
	"github.com/arnabghosh/compute-matcher/internal/domain"
	"github.com/arnabghosh/compute-matcher/internal/storage/inmemory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testResource(id string) *domain.Resource {
	return &domain.Resource{
		ID:               id,
		ProviderID:       "prov-1",
		ComputationPower: 150,
		AvailableMemory:  64,
		PricePerUnit:     1,
		Location:         "eu-west",
		Reputation:       8,
		EnergyClass:      domain.EnergyGreen,
		Active:           true,
	}
}

func TestResourceHandler_ListResources(t *testing.T) {
	all := []*domain.Resource{testResource("r1"), testResource("r2")}
	repo := &MockResourceRepository{
		ListFunc:          func() ([]*domain.Resource, error) { return all, nil },
		ListAvailableFunc: func() ([]*domain.Resource, error) { return all[:1], nil },
	}

	handler := NewResourceHandler(repo, nil)

	tests := []struct {
		query string
		want  int
	}{
		{query: "", want: 2},
		{query: "?available=true", want: 1},
		{query: "?available=false", want: 2},
	}
	for _, tt := range tests {
		router, w := setupGinTest()
		router.GET("/resources", handler.ListResources)
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/resources"+tt.query, nil))

		require.Equal(t, http.StatusOK, w.Code)
		var response dto.ResourceListResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, tt.want, response.Total, tt.query)
	}
}

func TestResourceHandler_GetResource_NotFound(t *testing.T) {
	handler := NewResourceHandler(&MockResourceRepository{}, nil)
	router, w := setupGinTest()
	router.GET("/resources/:id", handler.GetResource)

	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/resources/ghost", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResourceHandler_RegisterResource(t *testing.T) {
	var stored *domain.Resource
	repo := &MockResourceRepository{
		StoreFunc: func(r *domain.Resource) error {
			stored = r
			return nil
		},
	}

	handler := NewResourceHandler(repo, capability.NewHardwareVerifier(10))
	router, w := setupGinTest()
	router.POST("/resources", handler.RegisterResource)

	body := `{"id":"node-3","provider_id":"prov-1","computation_power":150,"available_memory_gb":64,
		"price_per_unit":1.2,"location":"eu-west","reputation":5,"energy_class":"Green","verification":"benchmark"}`
	req := httptest.NewRequest(http.MethodPost, "/resources", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.NotNil(t, stored)
	assert.Equal(t, "node-3", stored.ID)
	assert.Equal(t, domain.EnergyGreen, stored.EnergyClass)
	assert.True(t, stored.Active)
	assert.False(t, stored.Busy)
}

func TestResourceHandler_RegisterResource_VerificationFails(t *testing.T) {
	stored := false
	repo := &MockResourceRepository{
		StoreFunc: func(*domain.Resource) error {
			stored = true
			return nil
		},
	}

	handler := NewResourceHandler(repo, capability.NewHardwareVerifier(10))
	router, w := setupGinTest()
	router.POST("/resources", handler.RegisterResource)

	// reputation 1 is below the verifier's floor of 3
	body := `{"provider_id":"prov-1","computation_power":150,"available_memory_gb":64,
		"price_per_unit":1,"location":"eu-west","reputation":1,"verification":"reputation"}`
	req := httptest.NewRequest(http.MethodPost, "/resources", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.False(t, stored)

	var response dto.VerificationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.False(t, response.Verified)
	assert.Equal(t, "reputation", response.Method)
}

func TestResourceHandler_RegisterResource_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		verifier capability.Verifier
		existing bool
		wantCode int
	}{
		{
			name:     "missing provider",
			body:     `{"computation_power":1,"available_memory_gb":1}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "reputation out of range",
			body:     `{"provider_id":"p","computation_power":1,"available_memory_gb":1,"reputation":11}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown verification method",
			body:     `{"provider_id":"p","computation_power":1,"available_memory_gb":1,"verification":"vibes"}`,
			verifier: capability.NewHardwareVerifier(10),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "verification without verifier",
			body:     `{"provider_id":"p","computation_power":1,"available_memory_gb":1,"verification":"benchmark"}`,
			wantCode: http.StatusNotImplemented,
		},
		{
			name:     "duplicate",
			body:     `{"id":"r1","provider_id":"p","computation_power":1,"available_memory_gb":1}`,
			existing: true,
			wantCode: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &MockResourceRepository{
				GetByIDFunc: func(id string) (*domain.Resource, error) {
					if tt.existing {
						return testResource(id), nil
					}
					return nil, domain.ErrResourceNotFound
				},
				StoreFunc: func(*domain.Resource) error {
					t.Fatal("store must not be called")
					return nil
				},
			}

			handler := NewResourceHandler(repo, tt.verifier)
			router, w := setupGinTest()
			router.POST("/resources", handler.RegisterResource)

			req := httptest.NewRequest(http.MethodPost, "/resources", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
		})
	}
}

func TestResourceHandler_UpdateResource(t *testing.T) {
	var stored *domain.Resource
	repo := &MockResourceRepository{
		GetByIDFunc: func(id string) (*domain.Resource, error) { return testResource(id), nil },
		StoreFunc: func(r *domain.Resource) error {
			stored = r
			return nil
		},
	}

	handler := NewResourceHandler(repo, nil)
	router, w := setupGinTest()
	router.PATCH("/resources/:id", handler.UpdateResource)

	req := httptest.NewRequest(http.MethodPatch, "/resources/r1",
		strings.NewReader(`{"price_per_unit":1.5,"location":"us-east"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, stored)
	assert.Equal(t, 1.5, stored.PricePerUnit)
	assert.Equal(t, "us-east", stored.Location)
	assert.Equal(t, 150.0, stored.ComputationPower)
}

func TestResourceHandler_UpdateResource_Invalid(t *testing.T) {
	repo := &MockResourceRepository{
		GetByIDFunc: func(id string) (*domain.Resource, error) { return testResource(id), nil },
		StoreFunc: func(*domain.Resource) error {
			t.Fatal("store must not be called")
			return nil
		},
	}

	handler := NewResourceHandler(repo, nil)
	router, w := setupGinTest()
	router.PATCH("/resources/:id", handler.UpdateResource)

	req := httptest.NewRequest(http.MethodPatch, "/resources/r1", strings.NewReader(`{"price_per_unit":-1}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResourceHandler_DeactivateResource(t *testing.T) {
	var stored *domain.Resource
	repo := &MockResourceRepository{
		GetByIDFunc: func(id string) (*domain.Resource, error) { return testResource(id), nil },
		StoreFunc: func(r *domain.Resource) error {
			stored = r
			return nil
		},
	}

	handler := NewResourceHandler(repo, nil)
	router, w := setupGinTest()
	router.POST("/resources/:id/deactivate", handler.DeactivateResource)

	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/resources/r1/deactivate", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, stored)
	assert.False(t, stored.Active)

	var response dto.ResourceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.False(t, response.Active)
}

func TestResourceHandler_VerifyResource(t *testing.T) {
	repo := &MockResourceRepository{
		GetByIDFunc: func(id string) (*domain.Resource, error) { return testResource(id), nil },
	}
	handler := NewResourceHandler(repo, capability.NewHardwareVerifier(10))

	tests := []struct {
		query     string
		wantCode  int
		wantMeth  string
		wantScore float64
	}{
		{query: "", wantCode: http.StatusOK, wantMeth: "benchmark", wantScore: 1},
		{query: "?method=reputation", wantCode: http.StatusOK, wantMeth: "reputation", wantScore: 0.8},
		{query: "?method=redundant", wantCode: http.StatusOK, wantMeth: "redundant", wantScore: 0.9},
		{query: "?method=astrology", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		router, w := setupGinTest()
		router.POST("/resources/:id/verify", handler.VerifyResource)
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/resources/r1/verify"+tt.query, nil))

		require.Equal(t, tt.wantCode, w.Code, tt.query)
		if tt.wantCode != http.StatusOK {
			continue
		}
		var response dto.VerificationResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.True(t, response.Verified, tt.query)
		assert.Equal(t, tt.wantMeth, response.Method)
		assert.Equal(t, "r1", response.ResourceID)
		assert.InDelta(t, tt.wantScore, response.Score, 1e-9)
	}
}

func TestResourceHandler_UpdateResource_KeepsReservation(t *testing.T) {
	repo := inmemory.NewResourceRepository()
	ctx := context.Background()
	require.NoError(t, repo.Store(ctx, testResource("r1")))

	handler := NewResourceHandler(repo, nil)
	router, _ := setupGinTest()
	router.PATCH("/resources/:id", handler.UpdateResource)
	router.POST("/resources/:id/deactivate", handler.DeactivateResource)

	// The settler books the resource while the provider edits its listing
	require.NoError(t, repo.Reserve(ctx, "r1"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/resources/r1", strings.NewReader(`{"price_per_unit":1.25}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	stored, err := repo.GetByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 1.25, stored.PricePerUnit)
	assert.True(t, stored.Busy)

	available, err := repo.ListAvailable(ctx)
	require.NoError(t, err)
	assert.Empty(t, available)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/resources/r1/deactivate", nil))
	require.Equal(t, http.StatusOK, w.Code)

	stored, _ = repo.GetByID(ctx, "r1")
	assert.False(t, stored.Active)
	assert.True(t, stored.Busy)
}

func TestResourceHandler_UpdateResource_NotFound(t *testing.T) {
	handler := NewResourceHandler(inmemory.NewResourceRepository(), nil)
	router, w := setupGinTest()
	router.PATCH("/resources/:id", handler.UpdateResource)

	req := httptest.NewRequest(http.MethodPatch, "/resources/missing", strings.NewReader(`{"price_per_unit":1}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
