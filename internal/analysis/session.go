package analysis

import (
	"context"
	"io"

	"github.com/nilomr/majorvocal/internal/conf"
	"github.com/nilomr/majorvocal/internal/datastore"
	"github.com/nilomr/majorvocal/internal/errors"
	"github.com/nilomr/majorvocal/internal/logger"
	"github.com/nilomr/majorvocal/internal/observability"
)

// Session owns the optional outputs of a command: the metrics registry, the
// /metrics endpoint and the database. Close releases them and writes the
// metrics textfile.
type Session struct {
	settings *conf.Settings
	metrics  *observability.Metrics
	endpoint *observability.Endpoint
	store    datastore.Interface
	log      logger.Logger
}

// OpenSession sets up the outputs enabled in settings.
func OpenSession(ctx context.Context, settings *conf.Settings) (*Session, error) {
	s := &Session{settings: settings, log: logger.Global().Module("analysis")}

	if settings.Metrics.Enabled {
		m, err := observability.NewMetrics()
		if err != nil {
			return nil, errors.New(err).
				Component("analysis").
				Category(errors.CategorySystem).
				Context("operation", "init_metrics").
				Build()
		}
		s.metrics = m

		if settings.Metrics.Listen != "" {
			s.endpoint = observability.NewEndpoint(settings.Metrics.Listen, m, nil)
			if _, err := s.endpoint.Start(ctx); err != nil {
				s.endpoint = nil
				return nil, errors.New(err).
					Component("analysis").
					Category(errors.CategorySystem).
					Context("operation", "start_metrics_endpoint").
					Context("listen", settings.Metrics.Listen).
					Build()
			}
		}
	}

	if store := datastore.New(settings); store != nil {
		if err := store.Open(); err != nil {
			if s.endpoint != nil {
				s.endpoint.Shutdown()
			}
			return nil, err
		}
		s.store = store
	}
	return s, nil
}

// Pipeline returns a pipeline wired to the session outputs. progress may be
// nil to disable progress bars.
func (s *Session) Pipeline(progress io.Writer) *Pipeline {
	return &Pipeline{
		Settings: s.settings,
		Store:    s.store,
		Metrics:  s.metrics.PipelineMetrics(),
		Logger:   s.log,
		Progress: progress,
		Probe:    true,
	}
}

// Close writes the metrics textfile, stops the endpoint and closes the
// database. Errors are joined.
func (s *Session) Close() error {
	var errs []error
	if err := s.metrics.WriteTextfile(s.settings.Metrics.Textfile); err != nil {
		errs = append(errs, err)
	} else if s.metrics != nil && s.settings.Metrics.Textfile != "" {
		s.log.Debug("wrote metrics textfile", logger.String("path", s.settings.Metrics.Textfile))
	}
	if s.endpoint != nil {
		s.endpoint.Shutdown()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
