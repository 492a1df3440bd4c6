package xzap

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	ConsoleMode = "console"
	FileMode    = "file"

	defaultLogFile = "app.log"
)

// LogConf 日志配置
type LogConf struct {
	ServiceName string `toml:"service_name" mapstructure:"service_name" json:"service_name"` // 服务名, 作为每条日志的 service 字段
	Mode        string `toml:"mode" mapstructure:"mode" json:"mode"`                         // 输出模式: console / file
	Path        string `toml:"path" mapstructure:"path" json:"path"`                         // file 模式下的日志目录
	Level       string `toml:"level" mapstructure:"level" json:"level"`                      // debug / info / warn / error
	Compress    bool   `toml:"compress" mapstructure:"compress" json:"compress"`             // 是否压缩归档文件
	KeepDays    int    `toml:"keep_days" mapstructure:"keep_days" json:"keep_days"`          // 归档保留天数
	MaxSize     int    `toml:"max_size" mapstructure:"max_size" json:"max_size"`             // 单文件大小上限 (MB)
	MaxBackups  int    `toml:"max_backups" mapstructure:"max_backups" json:"max_backups"`    // 最多保留的归档数量
}

// ZapLogger 持有当前进程使用的 zap 实例
type ZapLogger struct {
	logger *zap.Logger
	conf   LogConf
}

// Logger 返回底层 zap.Logger
func (l *ZapLogger) Logger() *zap.Logger {
	return l.logger
}

// Sync 刷新缓冲区
func (l *ZapLogger) Sync() error {
	return l.logger.Sync()
}

// SetUp 根据配置初始化日志, 并替换 zap 的全局 logger
// 之后通过 WithContext 获取的 logger 都基于这里创建的实例
func SetUp(c LogConf) (*ZapLogger, error) {
	level := zapcore.InfoLevel
	if c.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(c.Level))); err != nil {
			return nil, errors.Wrapf(err, "invalid log level %q", c.Level)
		}
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "time"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var core zapcore.Core
	switch c.Mode {
	case FileMode:
		if c.Path == "" {
			return nil, errors.New("log path is required in file mode")
		}
		if err := os.MkdirAll(c.Path, 0o755); err != nil {
			return nil, errors.Wrap(err, "failed on create log dir")
		}
		// 文件模式使用 lumberjack 做切割归档
		writer := &lumberjack.Logger{
			Filename:   filepath.Join(c.Path, defaultLogFile),
			MaxSize:    c.MaxSize,
			MaxAge:     c.KeepDays,
			MaxBackups: c.MaxBackups,
			Compress:   c.Compress,
			LocalTime:  true,
		}
		core = zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(writer), level)
	case ConsoleMode, "":
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		core = zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.Lock(os.Stdout), level)
	default:
		return nil, errors.Errorf("unsupported log mode %q", c.Mode)
	}

	logger := zap.New(core, zap.AddCaller())
	if c.ServiceName != "" {
		logger = logger.With(zap.String("service", c.ServiceName))
	}
	zap.ReplaceGlobals(logger)

	return &ZapLogger{logger: logger, conf: c}, nil
}

// WithContext 返回带有链路信息 (trace_id / span_id) 的全局 logger
func WithContext(ctx context.Context) *zap.Logger {
	logger := zap.L()
	if ctx == nil {
		return logger
	}

	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.HasTraceID() {
		logger = logger.With(zap.String("trace_id", spanCtx.TraceID().String()))
	}
	if spanCtx.HasSpanID() {
		logger = logger.With(zap.String("span_id", spanCtx.SpanID().String()))
	}
	return logger
}
