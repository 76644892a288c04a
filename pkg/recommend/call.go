package recommend

import (
	"context"

	"github.com/sirupsen/logrus"

	"Similar-Music-Go/pkg/metrics"
	"Similar-Music-Go/pkg/music"
)

// Role names attribute failures that were not already classified by an
// adapter.
const (
	rolePrimary   = "primary"
	roleSecondary = "secondary"
)

// callEnv collects the failures of the provider calls made for one tier or
// one resolution attempt.
type callEnv struct {
	log      logrus.FieldLogger
	stage    string
	failures []*music.Error
}

func newCallEnv(log logrus.FieldLogger, stage string) *callEnv {
	return &callEnv{log: log, stage: stage}
}

// attempt runs fn and demotes any failure to an empty result. The failure is
// logged, counted and kept on env so callers can report which call failed.
func attempt[T any](ctx context.Context, env *callEnv, role, op string, fn func(context.Context) (T, error)) music.Result[T] {
	v, err := fn(ctx)
	if err == nil {
		return music.Ok(v)
	}
	merr := music.AsError(role, op, err)
	env.failures = append(env.failures, merr)
	metrics.ProviderFailures.WithLabelValues(merr.Provider, merr.Op, merr.Kind.String()).Inc()

	entry := env.log.WithFields(logrus.Fields{
		"provider": merr.Provider,
		"op":       merr.Op,
		"kind":     merr.Kind.String(),
		"stage":    env.stage,
	}).WithError(merr.Err)
	if merr.Kind == music.KindNotFound {
		entry.Debug("provider call returned nothing")
	} else {
		entry.Warn("provider call failed")
	}
	return music.Fail[T](merr)
}
