package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/calvinhus/statistics-project/src/config"
	"github.com/sirupsen/logrus"
)

// LogLevel 定义日志级别类型
type LogLevel int

// 日志级别常量定义
const (
	DEBUG   LogLevel = iota // 调试信息
	INFO                    // 普通信息
	WARNING                 // 警告信息
	ERROR                   // 错误信息
	FATAL                   // 致命错误，只记录不退出
)

// subscriberBuffer 每个订阅者通道的缓冲容量
const subscriberBuffer = 100

// Logger 日志记录器，底层使用logrus写文件，并把格式化后的条目广播给订阅者
type Logger struct {
	base     *logrus.Logger
	filename string
	file     *os.File
	mu       sync.Mutex // 保护file与filename

	subMu       sync.Mutex
	subscribers []chan string
}

// NewLogger 创建新的日志记录器
// 参数:
//
//	filename: 日志文件路径
//
// 返回值:
//
//	*Logger: 日志记录器实例
//	error: 创建过程中的错误
func NewLogger(filename string) (*Logger, error) {
	file, err := openLogFile(filename)
	if err != nil {
		return nil, err
	}

	base := logrus.New()
	base.SetOutput(file)
	base.SetLevel(logrus.DebugLevel)
	base.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	l := &Logger{
		base:     base,
		filename: filename,
		file:     file,
	}
	base.AddHook(&subscriberHook{logger: l})
	return l, nil
}

func openLogFile(filename string) (*os.File, error) {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("创建日志目录失败: %w", err)
		}
	}
	return os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

// SetLevel 按名称设置最低日志级别，例如 "info"
func (l *Logger) SetLevel(name string) error {
	level, err := logrus.ParseLevel(name)
	if err != nil {
		return err
	}
	l.base.SetLevel(level)
	return nil
}

// Close 关闭日志文件
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		// 先切走输出，logrus不再写已关闭的文件
		l.base.SetOutput(io.Discard)
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// Reopen 重新打开一个文件
// 参数：
// filename：新文件的路径
// 返回值：
// error：重建文件时的错误
func (l *Logger) Reopen(filename string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	file, err := openLogFile(filename)
	if err != nil {
		return err
	}
	l.base.SetOutput(file)

	if l.file != nil {
		_ = l.file.Close()
	}
	l.file = file
	l.filename = filename
	return nil
}

// Log 记录日志方法
// 参数:
//
//	level: 日志级别
//	message: 日志消息内容
func (l *Logger) Log(level LogLevel, message string) {
	l.base.Log(level.logrus(), message)
}

// WithFields 带结构化字段记录一条INFO日志
func (l *Logger) WithFields(fields map[string]interface{}, message string) {
	l.base.WithFields(logrus.Fields(fields)).Info(message)
}

// CheckRotate 日志文件超过 cfg.LogMaxSize 时轮转
func (l *Logger) CheckRotate(cfg *config.Config) error {
	maxSize, err := cfg.LogMaxBytes()
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	info, err := l.file.Stat()
	if err != nil {
		return fmt.Errorf("读取日志文件信息失败: %w", err)
	}
	if info.Size() <= maxSize {
		return nil
	}
	return l.rotateLog()
}

// rotateLog 调用方需持有 l.mu
func (l *Logger) rotateLog() error {
	ext := filepath.Ext(l.filename)
	stem := strings.TrimSuffix(l.filename, ext)
	if ext == "" {
		ext = ".log"
	}
	archived := fmt.Sprintf("%s.%s%s", stem, time.Now().Format("20060102150405"), ext)
	// 重命名不影响已打开的句柄，切换输出后再关闭旧文件
	if err := os.Rename(l.filename, archived); err != nil {
		return fmt.Errorf("日志轮转重命名失败: %w", err)
	}

	file, err := openLogFile(l.filename)
	if err != nil {
		return err
	}
	old := l.file
	l.base.SetOutput(file)
	l.file = file
	_ = old.Close()
	return nil
}

// Subscribe 订阅日志消息
// 返回值:
//
//	<-chan string: 只读通道，用于接收日志消息
func (l *Logger) Subscribe() <-chan string {
	l.subMu.Lock()
	defer l.subMu.Unlock()

	ch := make(chan string, subscriberBuffer)
	l.subscribers = append(l.subscribers, ch)
	return ch
}

// Unsubscribe 取消订阅
func (l *Logger) Unsubscribe(ch <-chan string) {
	l.subMu.Lock()
	defer l.subMu.Unlock()

	for i, sub := range l.subscribers {
		if sub == ch {
			l.subscribers = append(l.subscribers[:i], l.subscribers[i+1:]...)
			return
		}
	}
}

func (l *Logger) broadcast(entry string) {
	l.subMu.Lock()
	defer l.subMu.Unlock()

	for _, ch := range l.subscribers {
		select {
		case ch <- entry:
		default: // 通道已满则跳过
		}
	}
}

// subscriberHook 把每条日志转发给订阅者
type subscriberHook struct {
	logger *Logger
}

func (h *subscriberHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *subscriberHook) Fire(entry *logrus.Entry) error {
	line, err := entry.String()
	if err != nil {
		return err
	}
	h.logger.broadcast(line)
	return nil
}

// String 实现LogLevel的String方法
// 返回值:
//
//	string: 日志级别的字符串表示
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARNING:
		return "WARNING"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) logrus() logrus.Level {
	switch l {
	case DEBUG:
		return logrus.DebugLevel
	case WARNING:
		return logrus.WarnLevel
	case ERROR:
		return logrus.ErrorLevel
	case FATAL:
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}

// 以下是快捷日志方法
func (l *Logger) Debug(msg string)   { l.Log(DEBUG, msg) }   // 记录调试信息
func (l *Logger) Info(msg string)    { l.Log(INFO, msg) }    // 记录普通信息
func (l *Logger) Warning(msg string) { l.Log(WARNING, msg) } // 记录警告信息
func (l *Logger) Error(msg string)   { l.Log(ERROR, msg) }   // 记录错误信息
func (l *Logger) Fatal(msg string)   { l.Log(FATAL, msg) }   // 记录致命错误
