// Package logger provides the structured logging interface used across snapbot.
//
// It wraps zerolog with a small interface so components can take a Logger in
// their constructors and tests can substitute NewNopLogger or NewTestLogger.
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	logger.GetLogger().WithField("username", "alice").Info("Delivery started")
//
// Console output is colourised; set logging.format to "json" for plain JSON
// lines, or logging.file to tee everything into a file.
package logger
