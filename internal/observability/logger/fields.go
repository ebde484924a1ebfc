package logger

import (
	"time"

	"go.uber.org/zap"
)

// HTTP

func RequestID(v string) zap.Field       { return zap.String("request_id", v) }
func Method(v string) zap.Field          { return zap.String("method", v) }
func Path(v string) zap.Field            { return zap.String("path", v) }
func Status(v int) zap.Field             { return zap.Int("status", v) }
func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }
func Bytes(v int) zap.Field              { return zap.Int("bytes", v) }
func ClientIP(v string) zap.Field        { return zap.String("client_ip", v) }
func UserAgent(v string) zap.Field       { return zap.String("user_agent", v) }

// Identidad

func UserID(v string) zap.Field   { return zap.String("user_id", v) }
func TargetID(v string) zap.Field { return zap.String("target_id", v) }
func Username(v string) zap.Field { return zap.String("username", v) }
func Role(v string) zap.Field     { return zap.String("role", v) }

// Provider identifica el proveedor OAuth (google, github).
func Provider(v string) zap.Field { return zap.String("provider", v) }

// AuthMethod: basic | bearer | session | oauth.
func AuthMethod(v string) zap.Field { return zap.String("auth_method", v) }

// Email: usar solo en debug, es PII.
func Email(v string) zap.Field { return zap.String("email", v) }

// Sistema

func Component(v string) zap.Field { return zap.String("component", v) }
func Op(v string) zap.Field        { return zap.String("op", v) }

// Layer: controller | service | repository | middleware.
func Layer(v string) zap.Field { return zap.String("layer", v) }
func Err(err error) zap.Field  { return zap.Error(err) }

// Genéricos

func String(key, v string) zap.Field  { return zap.String(key, v) }
func Int(key string, v int) zap.Field { return zap.Int(key, v) }
func Bool(key string, v bool) zap.Field {
	return zap.Bool(key, v)
}
func Any(key string, v any) zap.Field { return zap.Any(key, v) }
