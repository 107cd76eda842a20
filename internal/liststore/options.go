package liststore

import (
	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"

	"github.com/example/ec-admin-sync/internal/metrics"
	"github.com/example/ec-admin-sync/internal/notification"
)

// Options are the settings shared by every entity store of an application
type Options struct {
	PerPage  int
	Locale   language.Tag
	Logger   *logrus.Entry
	Metrics  *metrics.Collector
	Notifier notification.Notifier
}

// Apply copies o into cfg
func Apply[T Record](cfg Config[T], o Options) Config[T] {
	cfg.PerPage = o.PerPage
	cfg.Locale = o.Locale
	cfg.Logger = o.Logger
	cfg.Metrics = o.Metrics
	cfg.Notifier = o.Notifier
	return cfg
}
