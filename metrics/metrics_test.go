package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheus(reg).(*fsMetrics)

	m.RecordOperation("create", time.Millisecond, nil)
	m.RecordOperation("create", time.Millisecond, errors.New("full"))
	m.RecordOperation("create", time.Millisecond, nil)
	m.SetOpenFiles(3)
	m.SetFreeSectors(17)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("create", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("create", "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.openFiles))
	assert.Equal(t, 17.0, testutil.ToFloat64(m.freeSectors))
}

func TestNoop(t *testing.T) {
	m := NewNoop()
	assert.NotPanics(t, func() {
		m.RecordOperation("open", time.Second, nil)
		m.SetOpenFiles(1)
		m.SetFreeSectors(1)
	})
}
