// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

// setupTestRouter creates a gin router with resolver routes registered.
func setupTestRouter(t *testing.T) (*gin.Engine, *Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := NewService(DefaultServiceConfig())
	router := gin.New()
	v1 := router.Group("/v1")
	RegisterRoutes(v1, NewHandlers(svc))
	return router, svc
}

// resolveBody is a well-formed resolve request with one ambiguity and
// one unresolved component.
const resolveBody = `{
  "components": [
    {"type": "ImplA", "supertypes": ["Iface", "OnlyA"], "constructors": [{"params": []}]},
    {"type": "ImplB", "supertypes": ["Iface"], "constructors": [{"params": []}]},
    {"type": "Svc", "constructors": [{"params": ["Iface"]}]}
  ]
}`

// doResolve posts the fixture set and returns the decoded response.
func doResolve(t *testing.T, router *gin.Engine) ResolveResponse {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/resolver/resolve", strings.NewReader(resolveBody))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp ResolveResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return resp
}

func TestHandleResolve(t *testing.T) {
	router, _ := setupTestRouter(t)
	resp := doResolve(t, router)

	if resp.RunID == "" {
		t.Error("expected non-empty run ID")
	}
	if resp.Registry["ImplA"] != "ImplA" || resp.Registry["OnlyA"] != "ImplA" {
		t.Errorf("unexpected registry: %v", resp.Registry)
	}
	if _, ok := resp.Registry["Iface"]; ok {
		t.Error("ambiguous supertype must not be a registry key")
	}
	if len(resp.NotUniqueTypes) != 1 || resp.NotUniqueTypes[0] != "Iface" {
		t.Errorf("expected NotUniqueTypes=[Iface], got %v", resp.NotUniqueTypes)
	}
	if len(resp.Unresolved) != 1 || resp.Unresolved[0] != "Svc" {
		t.Errorf("expected unresolved [Svc], got %v", resp.Unresolved)
	}
	if len(resp.Diagnostics) != 1 || !resp.Diagnostics[0].Recoverable {
		t.Errorf("expected one recoverable diagnostic, got %+v", resp.Diagnostics)
	}
}

func TestHandleResolve_BadRequests(t *testing.T) {
	router, _ := setupTestRouter(t)

	cases := []struct {
		name string
		body string
		code string
	}{
		{"malformed json", `{"components": [`, "INVALID_BODY"},
		{"empty components", `{"components": []}`, "INVALID_BODY"},
		{"missing type", `{"components": [{"supertypes": ["X"]}]}`, "INVALID_DESCRIPTORS"},
		{"duplicate type", `{"components": [{"type": "A"}, {"type": "A"}]}`, "INVALID_DESCRIPTORS"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/v1/resolver/resolve", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			router.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
			var er ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
				t.Fatalf("decoding error response: %v", err)
			}
			if er.Code != tc.code {
				t.Errorf("expected code %s, got %s", tc.code, er.Code)
			}
		})
	}
}

func TestHandleLookup(t *testing.T) {
	router, _ := setupTestRouter(t)
	resp := doResolve(t, router)

	get := func(t *testing.T, url string) (*httptest.ResponseRecorder, ErrorResponse) {
		t.Helper()
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, url, nil))
		var er ErrorResponse
		_ = json.Unmarshal(w.Body.Bytes(), &er)
		return w, er
	}

	t.Run("unique supertype", func(t *testing.T) {
		w, _ := get(t, "/v1/resolver/runs/"+resp.RunID+"/lookup?type=OnlyA")
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		var lr LookupResponse
		if err := json.Unmarshal(w.Body.Bytes(), &lr); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if lr.Component != "ImplA" {
			t.Errorf("expected ImplA, got %q", lr.Component)
		}
	})

	t.Run("ambiguous supertype is a conflict", func(t *testing.T) {
		w, er := get(t, "/v1/resolver/runs/"+resp.RunID+"/lookup?type=Iface")
		if w.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", w.Code)
		}
		if er.Code != "NOT_UNIQUE" {
			t.Errorf("expected NOT_UNIQUE, got %s", er.Code)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		w, er := get(t, "/v1/resolver/runs/"+resp.RunID+"/lookup?type=Nowhere")
		if w.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", w.Code)
		}
		if er.Code != "UNKNOWN_TYPE" {
			t.Errorf("expected UNKNOWN_TYPE, got %s", er.Code)
		}
	})

	t.Run("missing type parameter", func(t *testing.T) {
		w, er := get(t, "/v1/resolver/runs/"+resp.RunID+"/lookup")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
		if er.Code != "MISSING_PARAMETER" {
			t.Errorf("expected MISSING_PARAMETER, got %s", er.Code)
		}
	})

	t.Run("latest alias", func(t *testing.T) {
		w, _ := get(t, "/v1/resolver/runs/latest/lookup?type=ImplB")
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
	})

	t.Run("unknown run", func(t *testing.T) {
		w, er := get(t, "/v1/resolver/runs/nope/lookup?type=ImplA")
		if w.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", w.Code)
		}
		if er.Code != "RUN_NOT_FOUND" {
			t.Errorf("expected RUN_NOT_FOUND, got %s", er.Code)
		}
	})
}

func TestHandleDiagnostics(t *testing.T) {
	router, _ := setupTestRouter(t)
	resp := doResolve(t, router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/resolver/runs/"+resp.RunID+"/diagnostics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var dr DiagnosticsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &dr); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(dr.Rendered) != 1 || !strings.Contains(dr.Rendered[0], "possible if disambiguated") {
		t.Errorf("expected rendered recoverable diagnostic, got %v", dr.Rendered)
	}
}

func TestHandlePlans_NoStore(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/resolver/plans", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a plan store, got %d", w.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/resolver/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
