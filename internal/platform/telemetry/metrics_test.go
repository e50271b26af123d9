package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestMetricsExposed(t *testing.T) {
	m := New()
	m.Substitutions.Inc()
	m.SkipReverts.WithLabelValues("out_of_stock").Add(3)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := m.Handler()(c); err != nil {
		t.Fatal(err)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "fillsched_canister_substitutions_total 1") {
		t.Errorf("substitution counter missing from scrape:\n%s", body)
	}
	if !strings.Contains(body, `fillsched_skip_reverts_total{trigger="out_of_stock"} 3`) {
		t.Errorf("skip revert counter missing from scrape:\n%s", body)
	}
}
