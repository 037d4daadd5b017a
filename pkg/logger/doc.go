// Package logger builds configured log/slog loggers for the application.
//
// It is a thin factory over the standard library handlers: pick a format and
// level, attach static service attributes, and pass the resulting
// *slog.Logger down to the components that need one.
package logger
