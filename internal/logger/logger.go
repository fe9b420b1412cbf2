package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Logger *zap.Logger

// Options 日志配置
type Options struct {
	Env   string // development | production
	Level string // debug | info | warn | error
}

// OptionsFromEnv 从环境变量读取日志配置
func OptionsFromEnv() Options {
	return Options{
		Env:   os.Getenv("ENV"),
		Level: os.Getenv("LOG_LEVEL"),
	}
}

// New 按配置构建zap Logger
func New(opts Options) (*zap.Logger, error) {
	config := zap.NewProductionConfig()

	// 开发环境使用更详细的日志
	if opts.Env == "development" {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(opts.Level))); err != nil {
			level = zapcore.InfoLevel
		}
	}
	config.Level = zap.NewAtomicLevelAt(level)

	return config.Build()
}

// InitLogger 初始化全局日志系统
func InitLogger() error {
	l, err := New(OptionsFromEnv())
	if err != nil {
		return err
	}
	Logger = l
	zap.ReplaceGlobals(Logger)
	return nil
}

// GetLogger 获取Logger实例
func GetLogger() *zap.Logger {
	if Logger == nil {
		Logger, _ = zap.NewProduction()
	}
	return Logger
}

// Sync 同步日志缓冲区
func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}

func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	GetLogger().Fatal(msg, fields...)
}
