// Package logger wraps a process-wide zap logger with request scoping.
//
// Init se llama una sola vez desde cmd/*. Los middlewares HTTP guardan en el
// contexto un logger con request_id, method y path; services y controllers lo
// recuperan con From(ctx) y agregan layer/op:
//
//	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("ResetService.RequestReset"))
//	log.Info("reset requested", logger.UserID(id))
//
// Sin contexto se usa el singleton:
//
//	logger.L().Info("listening", logger.String("addr", addr))
package logger
