package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type alertGroup struct {
	Name  string      `yaml:"name"`
	Rules []alertRule `yaml:"rules"`
}

type alertFile struct {
	Groups []alertGroup `yaml:"groups"`
}

var metricName = regexp.MustCompile(`shopledger_[a-z_]+`)

func loadShopGroup(t *testing.T) alertGroup {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "deploy", "prometheus", "alerts", "shopledger.yml"))
	require.NoError(t, err)
	var file alertFile
	require.NoError(t, yaml.Unmarshal(data, &file))
	for _, g := range file.Groups {
		if g.Name == "shopledger" {
			return g
		}
	}
	t.Fatal("shopledger alert group missing")
	return alertGroup{}
}

func TestShopAlertRules(t *testing.T) {
	group := loadShopGroup(t)
	expected := map[string]struct {
		severity string
		runbook  string
	}{
		"HighErrorRate":   {severity: "critical", runbook: "docs/runbook.md#high-error-rate"},
		"HighLatency":     {severity: "warning", runbook: "docs/runbook.md#high-latency"},
		"JobFailures":     {severity: "warning", runbook: "docs/runbook.md#job-failures"},
		"LowStockBacklog": {severity: "info", runbook: "docs/runbook.md#low-stock"},
	}
	require.Len(t, group.Rules, len(expected))

	runbook, err := os.ReadFile(filepath.Join("..", "..", "docs", "runbook.md"))
	require.NoError(t, err)

	for _, rule := range group.Rules {
		want, ok := expected[rule.Alert]
		require.True(t, ok, "unexpected rule %q", rule.Alert)
		require.Equal(t, want.severity, rule.Labels["severity"], rule.Alert)
		require.Equal(t, want.runbook, rule.Annotations["runbook"], rule.Alert)
		require.NotEmpty(t, rule.Annotations["summary"], rule.Alert)
		require.NotEmpty(t, rule.Annotations["description"], rule.Alert)
		require.NotEmpty(t, rule.Expr, rule.Alert)
		require.NotEmpty(t, rule.For, rule.Alert)

		anchor := want.runbook[strings.Index(want.runbook, "#")+1:]
		require.Contains(t, string(runbook), "## "+anchor, "runbook section for %s", rule.Alert)
	}
}

// Every series an alert queries must be one the process actually exports.
func TestAlertExpressionsUseExportedMetrics(t *testing.T) {
	m := NewMetrics()
	m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/sales", nil))
	_ = m.Jobs().Track("low_stock_scan").End(errors.New("boom"))
	m.Jobs().SetLowStock(1)

	families, err := m.registry.Gather()
	require.NoError(t, err)
	exported := map[string]bool{}
	for _, f := range families {
		exported[f.GetName()] = true
	}

	for _, rule := range loadShopGroup(t).Rules {
		for _, name := range metricName.FindAllString(rule.Expr, -1) {
			name = strings.TrimSuffix(name, "_bucket")
			require.True(t, exported[name], "rule %s queries unknown metric %s", rule.Alert, name)
		}
	}
}
