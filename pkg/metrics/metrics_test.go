package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(DeliveriesTotal.WithLabelValues("delivered"))
	DeliveriesTotal.WithLabelValues("delivered").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(DeliveriesTotal.WithLabelValues("delivered")))

	bytesBefore := testutil.ToFloat64(BytesDownloaded)
	BytesDownloaded.Add(512)
	assert.Equal(t, bytesBefore+512, testutil.ToFloat64(BytesDownloaded))
}
