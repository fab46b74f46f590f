package appointment_test

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/constraint"
	"github.com/hackgods/clinic-scheduling/internal/dependency"
	"github.com/hackgods/clinic-scheduling/internal/domain"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
)

func TestServiceLogLinesCarryOneComponent(t *testing.T) {
	f := newFixture(t)
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	cfg := config.Config{HistoryLimit: 50, RetryBackoff: time.Millisecond}
	svc := appointment.NewService(f.store, redisclient.NewLocalResourceLocker(2*time.Second),
		constraint.NewValidator(f.store, cfg.HistoryLimit, logger),
		dependency.NewEngine(f.store, logger), cfg, logger)

	f.store.InjectTxErrors(domain.ConcurrentWrite("serialization failure"))
	_, err := svc.CreateAppointment(context.Background(), f.input(f.doctor, f.general, at(monday, 9, 0), f.clean))
	require.NoError(t, err)

	out := buf.String()
	lines := 0
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		lines++
		assert.Equal(t, 1, strings.Count(line, `"component"`), line)
	}
	require.Positive(t, lines)
	assert.Contains(t, out, `"component":"appointment"`)
}
