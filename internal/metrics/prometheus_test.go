package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestGetIsSingleton(t *testing.T) {
	assert.Same(t, Get(), Get())
}

func TestRecordHelpers(t *testing.T) {
	r := Get()

	before := testutil.ToFloat64(r.Messages.WithLabelValues("new_route", "dump"))
	r.RecordMessage("new_route", "dump")
	assert.Equal(t, before+1, testutil.ToFloat64(r.Messages.WithLabelValues("new_route", "dump")))

	before = testutil.ToFloat64(r.DumpErrors.WithLabelValues("address", "ipv6"))
	r.RecordDumpError("address", "ipv6")
	assert.Equal(t, before+1, testutil.ToFloat64(r.DumpErrors.WithLabelValues("address", "ipv6")))

	r.RecordAPIRequest("GET", "/api/routes", 200, 0.01)
	assert.GreaterOrEqual(t, testutil.ToFloat64(r.APIRequests.WithLabelValues("GET", "/api/routes", "200")), 1.0)
}

func TestTableSize(t *testing.T) {
	r := Get()

	r.TableSize("route", "ipv4").Set(3)
	r.TableSize("address", "ipv4").Set(5)

	assert.Equal(t, 3.0, testutil.ToFloat64(r.Routes.WithLabelValues("ipv4")))
	assert.Equal(t, 5.0, testutil.ToFloat64(r.Addresses.WithLabelValues("ipv4")))
}
