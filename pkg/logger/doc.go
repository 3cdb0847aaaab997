// Package logger provides the structured logging interface used across serpgrab.
//
// It wraps zerolog behind a small Logger interface so components can carry
// their own fields (component, query, url) without depending on zerolog
// directly, and so tests can swap in a TestLogger or a no-op logger.
//
// Basic Usage:
//
//	err := logger.Initialize(&cfg.Logging)
//
//	logger.WithFields(map[string]interface{}{"version": version}).Info("serpgrab starting")
//	logger.GetLogger().WithError(err).Warn("Consent dialog not found")
//
// Component loggers:
//
//	log := logger.GetLogger().WithField("component", "traversal")
//	log.InfoWithFields("Traversal finished", map[string]interface{}{
//	    "cycles":    4,
//	    "collected": 113,
//	})
//
// When Logging.File is set, output goes to both the console and the file.
package logger
