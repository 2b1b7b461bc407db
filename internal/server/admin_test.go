package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/spinwisely/kbase/internal/store"
)

func TestAdminStats(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	handler := &AdminHandler{Store: &store.Store{DB: db}}

	mock.ExpectQuery(`SELECT`).
		WillReturnRows(sqlmock.NewRows([]string{"documents", "queries", "users"}).AddRow(12, 340, 5))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
	rec := httptest.NewRecorder()
	if err := handler.stats(e.NewContext(req, rec)); err != nil {
		t.Fatalf("stats: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}

	var resp struct {
		Success bool             `json:"success"`
		Stats   store.UsageStats `json:"stats"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.Stats.TotalDocuments != 12 || resp.Stats.TotalQueries != 340 || resp.Stats.ActiveUsers != 5 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestAdminCleanup(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	handler := &AdminHandler{Store: &store.Store{DB: db}}

	mock.ExpectExec(`DELETE FROM documents WHERE chunk_count = 0`).
		WillReturnResult(sqlmock.NewResult(0, 3))

	req := httptest.NewRequest(http.MethodDelete, "/api/admin/cleanup", nil)
	rec := httptest.NewRecorder()
	if err := handler.cleanup(e.NewContext(req, rec)); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	var resp struct {
		Success bool   `json:"success"`
		Deleted int64  `json:"deleted"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.Deleted != 3 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Message != "Cleaned up 3 orphaned documents" {
		t.Fatalf("message = %q", resp.Message)
	}
}
