package banner

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"conduithttp/pkg/config"
)

func TestPrintSummary(t *testing.T) {
	c := &config.Config{}
	c.Server.Workers = 2048
	c.RateLimit.RPS = 4
	c.Metrics.Enabled = true
	c.ApplyDefaults()

	var buf bytes.Buffer
	Print(&buf, config.EffectiveConfigResult{Config: c, Addr: c.Addr(), Source: "env"}, "v0.1.0")
	out := buf.String()
	assert.Contains(t, out, "Listen:   0.0.0.0:8080")
	assert.Contains(t, out, "Version:  v0.1.0")
	assert.Contains(t, out, "workers 2,048")
	assert.Contains(t, out, "Max body:  4.0 MiB")
	assert.Contains(t, out, "- TLS: disabled")
	assert.Contains(t, out, "4.00 rps, burst 10")
	assert.Contains(t, out, "- Metrics: /metrics")
}

func TestPrintWithoutConfig(t *testing.T) {
	var buf bytes.Buffer
	Print(&buf, config.EffectiveConfigResult{Addr: ":1"}, "")
	assert.Contains(t, buf.String(), "Listen:   :1")
	assert.Contains(t, buf.String(), "Config:   defaults")
	assert.NotContains(t, buf.String(), "Version")
}
