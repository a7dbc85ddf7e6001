package db

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newEchoContext(headers map[string]string, query string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?"+query, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec)
}

func TestExtractClinicID_JWTClaimWins(t *testing.T) {
	c := newEchoContext(map[string]string{"X-Clinic-ID": "header_clinic"}, "clinic_id=query_clinic")
	c.Set("jwt_clinic_id", "jwt_clinic")
	if got := extractClinicID(c, "default"); got != "jwt_clinic" {
		t.Errorf("expected jwt claim to win, got %q", got)
	}
}

func TestExtractClinicID_Header(t *testing.T) {
	c := newEchoContext(map[string]string{"X-Clinic-ID": "northside"}, "")
	if got := extractClinicID(c, "default"); got != "northside" {
		t.Errorf("expected header clinic, got %q", got)
	}
}

func TestExtractClinicID_QueryParam(t *testing.T) {
	c := newEchoContext(nil, "clinic_id=westend")
	if got := extractClinicID(c, "default"); got != "westend" {
		t.Errorf("expected query clinic, got %q", got)
	}
}

func TestExtractClinicID_Default(t *testing.T) {
	c := newEchoContext(nil, "")
	if got := extractClinicID(c, "default"); got != "default" {
		t.Errorf("expected default clinic, got %q", got)
	}
}

func TestClinicIDPattern(t *testing.T) {
	valid := []string{"default", "clinic_01", "NORTH"}
	invalid := []string{"", "a-b", "x;DROP TABLE", "a b"}
	for _, v := range valid {
		if !clinicIDPattern.MatchString(v) {
			t.Errorf("expected %q to be valid", v)
		}
	}
	for _, v := range invalid {
		if clinicIDPattern.MatchString(v) {
			t.Errorf("expected %q to be rejected", v)
		}
	}
}

func TestClinicFromContext_Empty(t *testing.T) {
	if cid := ClinicFromContext(context.Background()); cid != "" {
		t.Errorf("expected empty clinic id, got %q", cid)
	}
}

func TestClinicFromContext_Set(t *testing.T) {
	ctx := context.WithValue(context.Background(), ClinicIDKey, "default")
	if cid := ClinicFromContext(ctx); cid != "default" {
		t.Errorf("expected default, got %q", cid)
	}
}

func TestTxFromContext_Nil(t *testing.T) {
	if tx := TxFromContext(context.Background()); tx != nil {
		t.Error("expected nil tx from empty context")
	}
}

func TestTxFromContext_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), DBTxKey, "not-a-tx")
	if tx := TxFromContext(ctx); tx != nil {
		t.Error("expected nil tx for wrong type")
	}
}

func TestConnFromContext_Nil(t *testing.T) {
	if conn := ConnFromContext(context.Background()); conn != nil {
		t.Error("expected nil conn from empty context")
	}
}

func TestCreateClinicSchema_RejectsBadID(t *testing.T) {
	err := CreateClinicSchema(context.Background(), nil, "bad-id;", "")
	if err == nil {
		t.Fatal("expected error for invalid clinic identifier")
	}
}
