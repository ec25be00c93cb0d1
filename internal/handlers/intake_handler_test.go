package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"revintake/internal/clients"
	"revintake/internal/models"
	"revintake/internal/repository"
	"revintake/internal/service"
	"revintake/internal/storage"
)

const testExportKey = "test-export-key"

func setupRouter(t *testing.T) (*gin.Engine, service.IntakeService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := filepath.Join(t.TempDir(), "intake.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(&models.IntakeRequest{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	blobs, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("file store: %v", err)
	}

	svc := service.NewIntakeService(
		repository.NewIntakeRepository(db),
		nil,
		clients.NewJiraClient(clients.JiraConfig{}),
		blobs,
	)
	handler := NewIntakeHandler(svc, testExportKey)

	router := gin.New()
	router.POST("/submit", handler.Submit)
	api := router.Group("/api")
	{
		api.GET("/intake", handler.List)
		api.GET("/intake/:id", handler.Get)
		api.PUT("/intake/:id", handler.UpdateStatus)
		api.DELETE("/intake/:id", handler.Delete)
		api.GET("/export", handler.Export)
		api.GET("/backlog", handler.Backlog)
		api.PUT("/update_status", handler.UpdateTriage)
	}

	return router, svc
}

func submitForm(t *testing.T, router *gin.Engine, fields map[string]string, files map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for k, v := range fields {
		writer.WriteField(k, v)
	}
	for name, content := range files {
		part, err := writer.CreateFormFile("attachments", name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		part.Write([]byte(content))
	}
	writer.Close()

	req := httptest.NewRequest("POST", "/submit", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func validFields() map[string]string {
	return map[string]string{
		"request_title":           "Reconcile invoice exports",
		"requestor_name":          "Priya N",
		"requestor_team":          "Finance Ops",
		"problem_statement":       "Exports drift out of sync weekly",
		"expected_outcome":        "Nightly automated reconciliation",
		"revenue_impact":          "High",
		"audit_risk":              "High",
		"complexity":              "Low",
		"cross_functional_effort": "Low",
		"timeline_pressure":       "High",
	}
}

func submitOne(t *testing.T, router *gin.Engine, svc service.IntakeService) string {
	t.Helper()

	rec := submitForm(t, router, validFields(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit status = %d: %s", rec.Code, rec.Body.String())
	}

	records, err := svc.List(context.Background(), repository.ListFilter{})
	if err != nil || len(records) == 0 {
		t.Fatalf("list after submit: %v (%d records)", err, len(records))
	}
	return records[0].ID
}

func TestSubmitEndpoint(t *testing.T) {
	router, _ := setupRouter(t)

	rec := submitForm(t, router, validFields(), map[string]string{"notes.txt": "hello"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Priority score: 3") {
		t.Errorf("body = %q", body)
	}
	if !strings.Contains(body, "1 attachment(s)") {
		t.Errorf("body = %q", body)
	}
}

func TestSubmitMissingField(t *testing.T) {
	router, _ := setupRouter(t)

	fields := validFields()
	delete(fields, "expected_outcome")

	rec := submitForm(t, router, fields, nil)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "Missing expected_outcome" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestSubmitRequiresMultipart(t *testing.T) {
	router, _ := setupRouter(t)

	req := httptest.NewRequest("POST", "/submit", strings.NewReader(`{"request_title":"x"}`))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "Expected multipart/form-data" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestGetEndpoint(t *testing.T) {
	router, svc := setupRouter(t)
	id := submitOne(t, router, svc)

	req := httptest.NewRequest("GET", "/api/intake/"+id, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var record models.IntakeRequest
	if err := json.Unmarshal(rec.Body.Bytes(), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record.RequestTitle != "Reconcile invoice exports" {
		t.Errorf("title = %q", record.RequestTitle)
	}
}

func TestGetNotFound(t *testing.T) {
	router, _ := setupRouter(t)

	req := httptest.NewRequest("GET", "/api/intake/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Not found") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestUpdateStatusEndpoint(t *testing.T) {
	router, svc := setupRouter(t)
	id := submitOne(t, router, svc)

	tests := []struct {
		name     string
		id       string
		body     string
		wantCode int
	}{
		{"valid", id, `{"status":"In Progress"}`, http.StatusOK},
		{"invalid status", id, `{"status":"Whatever"}`, http.StatusBadRequest},
		{"bad json", id, `{status`, http.StatusBadRequest},
		{"unknown id", "missing", `{"status":"Complete"}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("PUT", "/api/intake/"+tt.id, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.wantCode, rec.Body.String())
			}
		})
	}
}

func TestUpdateTriageEndpoint(t *testing.T) {
	router, svc := setupRouter(t)
	id := submitOne(t, router, svc)

	body := `{"id":"` + id + `","status":"Triage Review","triage_owner":"Dana"}`
	req := httptest.NewRequest("PUT", "/api/update_status", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["success"] != true {
		t.Errorf("success = %v", resp["success"])
	}
	if resp["triage_owner"] != "Dana" {
		t.Errorf("triage_owner = %v", resp["triage_owner"])
	}
}

func TestUpdateTriageInvalidStatusListsAllowed(t *testing.T) {
	router, svc := setupRouter(t)
	id := submitOne(t, router, svc)

	body := `{"id":"` + id + `","status":"Nope"}`
	req := httptest.NewRequest("PUT", "/api/update_status", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Error   string   `json:"error"`
		Allowed []string `json:"allowed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error != "Invalid status" {
		t.Errorf("error = %q", resp.Error)
	}
	if len(resp.Allowed) != len(models.AllowedStatuses) {
		t.Errorf("allowed = %v", resp.Allowed)
	}
}

func TestUpdateTriageMissingID(t *testing.T) {
	router, _ := setupRouter(t)

	req := httptest.NewRequest("PUT", "/api/update_status", strings.NewReader(`{"status":"Complete"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Missing id") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestDeleteEndpointAlwaysSucceeds(t *testing.T) {
	router, _ := setupRouter(t)

	req := httptest.NewRequest("DELETE", "/api/intake/never-existed", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "true") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestExportRequiresAPIKey(t *testing.T) {
	router, svc := setupRouter(t)
	submitOne(t, router, svc)

	tests := []struct {
		name     string
		key      string
		wantCode int
	}{
		{"missing key", "", http.StatusUnauthorized},
		{"wrong key", "not-it", http.StatusUnauthorized},
		{"correct key", testExportKey, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/export?format=csv", nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
		})
	}
}

func TestExportCSVResponse(t *testing.T) {
	router, svc := setupRouter(t)
	submitOne(t, router, svc)

	req := httptest.NewRequest("GET", "/api/export", nil)
	req.Header.Set("X-API-Key", testExportKey)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("content type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "requests.csv") {
		t.Errorf("content disposition = %q", cd)
	}
	if !strings.HasPrefix(rec.Body.String(), "id,request_title,") {
		t.Errorf("body = %q", rec.Body.String()[:60])
	}
}

func TestExportNoData(t *testing.T) {
	router, _ := setupRouter(t)

	req := httptest.NewRequest("GET", "/api/export?format=csv", nil)
	req.Header.Set("X-API-Key", testExportKey)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "No data to export" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestExportUnsupportedFormat(t *testing.T) {
	router, _ := setupRouter(t)

	req := httptest.NewRequest("GET", "/api/export?format=pdf", nil)
	req.Header.Set("X-API-Key", testExportKey)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestExportXLSXResponse(t *testing.T) {
	router, svc := setupRouter(t)
	submitOne(t, router, svc)

	req := httptest.NewRequest("GET", "/api/export?format=xlsx", nil)
	req.Header.Set("X-API-Key", testExportKey)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "requests.xlsx") {
		t.Errorf("content disposition = %q", cd)
	}
	// xlsx — это zip, первые два байта PK
	if body := rec.Body.Bytes(); len(body) < 2 || body[0] != 'P' || body[1] != 'K' {
		t.Error("body does not look like a zip archive")
	}
}

func TestListEndpointFilters(t *testing.T) {
	router, svc := setupRouter(t)
	submitOne(t, router, svc)

	req := httptest.NewRequest("GET", "/api/intake?team=Finance+Ops", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var records []models.IntakeRequest
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d", len(records))
	}

	req = httptest.NewRequest("GET", "/api/intake?team=Nobody", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("records = %d, want 0", len(records))
	}
}

func TestBacklogEndpoint(t *testing.T) {
	router, svc := setupRouter(t)
	submitOne(t, router, svc)

	req := httptest.NewRequest("GET", "/api/backlog", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Projects []models.BacklogItem `json:"projects"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Projects) != 1 {
		t.Fatalf("projects = %d", len(resp.Projects))
	}
	item := resp.Projects[0]
	if item.Name != "Reconcile invoice exports" {
		t.Errorf("name = %q", item.Name)
	}
	if item.Source != "Finance Ops" {
		t.Errorf("source = %q", item.Source)
	}
	if item.AuditCritical != "Yes" {
		t.Errorf("audit_critical = %q", item.AuditCritical)
	}
}
