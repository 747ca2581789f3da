package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRequireOrganization(t *testing.T) {
	orgID := uuid.New()

	var gotOrg uuid.UUID
	var gotActor, gotDevice string
	handler := RequireOrganization(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOrg, _ = GetOrganizationIDFromContext(r.Context())
		gotActor, gotDevice = GetActorFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	testCases := []struct {
		name         string
		headers      map[string]string
		expectedCode int
	}{
		{"missing header", nil, http.StatusUnauthorized},
		{"malformed header", map[string]string{OrganizationHeader: "acme"}, http.StatusUnauthorized},
		{"valid", map[string]string{OrganizationHeader: orgID.String(), ActorHeader: "referee-3", DeviceHeader: "tablet"}, http.StatusNoContent},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tc.expectedCode, rec.Code)
		})
	}

	assert.Equal(t, orgID, gotOrg)
	assert.Equal(t, "referee-3", gotActor)
	assert.Equal(t, "tablet", gotDevice)
}

func TestActorDefaults(t *testing.T) {
	actor, device := GetActorFromContext(context.Background())
	assert.Equal(t, "system", actor)
	assert.Empty(t, device)

	actor, _ = GetActorFromContext(WithActor(context.Background(), "", ""))
	assert.Equal(t, "anonymous", actor)

	_, ok := GetOrganizationIDFromContext(context.Background())
	assert.False(t, ok)
}
