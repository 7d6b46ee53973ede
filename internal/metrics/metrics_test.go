package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/notifyhub/user-mail-queue/internal/metrics"
)

func TestHooksUpdateCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	h := m.NotifierHooks()
	h.OnDelivered("en")
	h.OnDelivered("en")
	h.OnDeliveryFailed()
	h.OnBatchCompleted()
	m.WorkerHook()("processed", 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.MailsSent.WithLabelValues("en")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MailsFailed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchesCompleted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ItemsProcessed.WithLabelValues("processed")))
}

func TestRegisterBufferDepth(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.RegisterBufferDepth(func() int { return 3 })

	n, err := testutil.GatherAndCount(reg, "user_mail_buffer_depth")
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
}
