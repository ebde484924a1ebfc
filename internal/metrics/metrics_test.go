package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePath(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", "/"},
		{"/", "/"},
		{"/api/users", "/api/users"},
		{"/api/users/0b6f6a43-7c52-4d3e-9a51-1c1f1d0e2a11", "/api/users/:param"},
		{"/api/users/0b6f6a43-7c52-4d3e-9a51-1c1f1d0e2a11/restore", "/api/users/:param/restore"},
		{"/resetPassword?token=abc", "/resetPassword"},
		{"/acronyms/deadbeefdeadbeefdeadbeef/edit", "/acronyms/:param/edit"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, NormalizePath(c.in), c.in)
	}
}

func TestRegisterIgnoresDuplicates(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, registerCollector(reg, CSRFFailuresTotal))
	require.NoError(t, registerCollector(reg, CSRFFailuresTotal))
}

func TestDomainCounters(t *testing.T) {
	before := testutil.ToFloat64(LoginsTotal.WithLabelValues("basic", OutcomeSuccess))
	LoginsTotal.WithLabelValues("basic", OutcomeSuccess).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(LoginsTotal.WithLabelValues("basic", OutcomeSuccess)))
}
