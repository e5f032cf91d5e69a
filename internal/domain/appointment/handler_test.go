package appointment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carenest/carenest/internal/platform/auth"
	"github.com/carenest/carenest/pkg/pagination"
)

func newTestHandler() (*Handler, *Service, *fakeMothers, *echo.Echo) {
	svc, _, mothers := newTestService()
	return NewHandler(svc), svc, mothers, echo.New()
}

func motherContext(e *echo.Echo, method, target, body string, motherID uuid.UUID) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = req.WithContext(auth.WithUser(req.Context(), motherID.String(), auth.RoleMother))
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func expectHTTPError(t *testing.T, err error, code int) {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T (%v)", err, err)
	}
	if he.Code != code {
		t.Errorf("expected %d, got %d (%v)", code, he.Code, he.Message)
	}
}

const createBody = `{"type":"Ultrasound","date":"2025-04-20","time":"09:30","location":"CHUK"}`

func TestHandler_Create(t *testing.T) {
	h, _, _, e := newTestHandler()
	c, rec := motherContext(e, http.MethodPost, "/", createBody, uuid.New())
	if err := h.Create(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var body map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["date"] != "2025-04-20" || body["status"] != StatusUpcoming {
		t.Errorf("unexpected body %v", body)
	}
}

func TestHandler_Create_BadRequest(t *testing.T) {
	h, _, _, e := newTestHandler()
	c, _ := motherContext(e, http.MethodPost, "/", `{"type":"Ultrasound"}`, uuid.New())
	expectHTTPError(t, h.Create(c), http.StatusBadRequest)
}

func TestHandler_Create_Unauthenticated(t *testing.T) {
	h, _, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(createBody))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())
	expectHTTPError(t, h.Create(c), http.StatusUnauthorized)
}

func TestHandler_GetForeignAppointment(t *testing.T) {
	h, svc, _, e := newTestHandler()
	a, _ := svc.Create(context.Background(), uuid.New(), validInput("2025-04-20", "09:30"))

	c, _ := motherContext(e, http.MethodGet, "/", "", uuid.New())
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())
	expectHTTPError(t, h.Get(c), http.StatusForbidden)
}

func TestHandler_Get_NotFoundAndBadID(t *testing.T) {
	h, _, _, e := newTestHandler()
	c, _ := motherContext(e, http.MethodGet, "/", "", uuid.New())
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())
	expectHTTPError(t, h.Get(c), http.StatusNotFound)

	c, _ = motherContext(e, http.MethodGet, "/", "", uuid.New())
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")
	expectHTTPError(t, h.Get(c), http.StatusBadRequest)
}

func TestHandler_UpdateAndDelete(t *testing.T) {
	h, svc, _, e := newTestHandler()
	owner := uuid.New()
	a, _ := svc.Create(context.Background(), owner, validInput("2025-04-20", "09:30"))

	c, rec := motherContext(e, http.MethodPut, "/", `{"status":"completed"}`, owner)
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())
	if err := h.Update(c); err != nil {
		t.Fatalf("update: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	c, rec = motherContext(e, http.MethodDelete, "/", "", owner)
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())
	if err := h.Delete(c); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestHandler_List(t *testing.T) {
	h, svc, _, e := newTestHandler()
	owner := uuid.New()
	for _, d := range []string{"2025-04-20", "2025-05-04", "2025-05-18"} {
		svc.Create(context.Background(), owner, validInput(d, "09:30"))
	}

	c, rec := motherContext(e, http.MethodGet, "/api/v1/appointments?limit=2", "", owner)
	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp pagination.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 3 || !resp.HasMore {
		t.Errorf("unexpected page %+v", resp)
	}
	if resp.Next != "/api/v1/appointments?limit=2&offset=2" {
		t.Errorf("unexpected next link %q", resp.Next)
	}
}

func TestHandler_Upcoming(t *testing.T) {
	h, svc, _, e := newTestHandler()
	owner := uuid.New()
	svc.Create(context.Background(), owner, validInput("2025-04-01", "09:30"))
	svc.Create(context.Background(), owner, validInput("2025-04-20", "09:30"))

	c, rec := motherContext(e, http.MethodGet, "/", "", owner)
	if err := h.Upcoming(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var items []map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &items)
	if len(items) != 1 || items[0]["date"] != "2025-04-20" {
		t.Errorf("unexpected upcoming %v", items)
	}
}

func TestHandler_Recommended(t *testing.T) {
	h, _, mothers, e := newTestHandler()
	dated, undated := uuid.New(), uuid.New()
	mothers.lmps[dated] = "2024-10-29"
	mothers.lmps[undated] = ""

	c, rec := motherContext(e, http.MethodGet, "/", "", dated)
	if err := h.Recommended(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var r Recommendation
	json.Unmarshal(rec.Body.Bytes(), &r)
	if r.CurrentWeek != 24 || r.IntervalWeeks != 4 || r.WeeksUntil != 4 {
		t.Errorf("unexpected recommendation %+v", r)
	}

	c, _ = motherContext(e, http.MethodGet, "/", "", undated)
	expectHTTPError(t, h.Recommended(c), http.StatusUnprocessableEntity)

	c, _ = motherContext(e, http.MethodGet, "/", "", uuid.New())
	expectHTTPError(t, h.Recommended(c), http.StatusNotFound)
}

func TestHandler_Calendar(t *testing.T) {
	h, svc, mothers, e := newTestHandler()
	owner := uuid.New()
	mothers.lmps[owner] = "2024-10-29"
	svc.Create(context.Background(), owner, validInput("2025-04-20", "09:30"))

	c, rec := motherContext(e, http.MethodGet, "/", "", owner)
	if err := h.Calendar(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("unexpected content type %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "BEGIN:VCALENDAR") {
		t.Error("expected a calendar body")
	}
}

func TestHandler_RegisterRoutes(t *testing.T) {
	h, _, _, e := newTestHandler()
	h.RegisterRoutes(e.Group("/api/v1"))
	found := map[string]bool{}
	for _, r := range e.Routes() {
		found[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /api/v1/appointments",
		"POST /api/v1/appointments",
		"GET /api/v1/appointments/upcoming",
		"GET /api/v1/appointments/recommended",
		"GET /api/v1/appointments/calendar.ics",
		"GET /api/v1/appointments/:id",
		"PUT /api/v1/appointments/:id",
		"DELETE /api/v1/appointments/:id",
	} {
		if !found[want] {
			t.Errorf("route %s not registered", want)
		}
	}
}
