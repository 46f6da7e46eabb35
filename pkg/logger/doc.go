// Package logger builds the *slog.Logger used across notifykit.
//
// New applies functional options (format, level, static attributes,
// context extractors, redaction) and wraps the resulting handler with a
// decorator that pulls request-scoped values out of context.Context on every
// record.
//
// Attribute helpers in attr.go keep key names stable between components so
// that log queries like `channel_kind=dingtalk status=failed` work the same for
// the coordinator, the adapters and the real-time gateway.
//
// # Usage
//
//	log := logger.New(
//	    logger.WithEnvironment(cfg.Env, "notifyd"),
//	    logger.WithRedactedKeys("password", "secret", "token"),
//	)
//	logger.SetAsDefault(log)
//
//	log.LogAttrs(ctx, slog.LevelWarn, "channel dispatch failed",
//	    logger.ChannelID(ch.ID),
//	    logger.ChannelKind(string(ch.Kind)),
//	    logger.Error(err),
//	)
//
// Error and Errors return an empty attribute for nil errors, so callers never
// need a nil check before logging.
package logger
