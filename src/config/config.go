package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix 环境变量前缀，例如 DASHBOARD_DATA_FILE
const EnvPrefix = "DASHBOARD"

// Config 结构体定义了应用程序的配置结构
type Config struct {
	DataFile       string   `json:"data_file" envconfig:"DATA_FILE" validate:"required"` // 源数据文件(csv或xlsx)
	SheetName      string   `json:"sheet_name" envconfig:"SHEET_NAME"`                   // xlsx数据源的工作表名，为空取第一个
	LogName        string   `json:"log_name" envconfig:"LOG_NAME" validate:"required"`
	LogLevel       string   `json:"log_level" envconfig:"LOG_LEVEL" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
	LogMaxSize     string   `json:"log_max_size" envconfig:"LOG_MAX_SIZE"`       // 例如 "10 * 1024 * 1024"
	RotateInterval Duration `json:"rotate_interval" envconfig:"ROTATE_INTERVAL"` // 日志轮转检查间隔
	WatchSource    bool     `json:"watch_source" envconfig:"WATCH_SOURCE"`       // 源文件变更时提示重启

	Server struct {
		Addr            string   `json:"addr" envconfig:"ADDR" validate:"required"`
		ReadTimeout     Duration `json:"read_timeout" envconfig:"READ_TIMEOUT"`
		WriteTimeout    Duration `json:"write_timeout" envconfig:"WRITE_TIMEOUT"`
		ShutdownTimeout Duration `json:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	} `json:"server" envconfig:"SERVER"`

	Mail struct {
		Enabled       bool   `json:"enabled" envconfig:"ENABLED"`
		Server        string `json:"server" envconfig:"SERVER" validate:"required_if=Enabled true"`                 // 邮件服务器地址
		Username      string `json:"username" envconfig:"USERNAME" validate:"required_if=Enabled true"`             // 邮箱用户名
		Password      string `json:"password" envconfig:"PASSWORD"`                                                 // 邮箱密码
		TargetSubject string `json:"target_subject" envconfig:"TARGET_SUBJECT" validate:"required_if=Enabled true"` // 需要匹配的邮件主题
	} `json:"mail" envconfig:"MAIL"`
}

// DataConfig 数据清洗与查询规则
type DataConfig struct {
	ExcludedCurricula []string `json:"excluded_curricula"`
	SearchingStatuses []string `json:"searching_statuses"`
	PartTimeMarker    string   `json:"part_time_marker"`
	AllCurricula      string   `json:"all_curricula"`
	AllFormats        string   `json:"all_formats"`
}

var (
	once               sync.Once
	instance           *Config
	dataConfigInstance *DataConfig
	loadErr            error
)

// LoadConfig 进程内只加载一次配置
func LoadConfig(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	once.Do(func() {
		instance, dataConfigInstance, loadErr = Load(jsonFolder, jsonFile, dataJsonFile)
	})
	return instance, dataConfigInstance, loadErr
}

// Load 读取两个配置文件，应用环境变量覆盖和默认值，并校验
func Load(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	configFile := filepath.Join(jsonFolder, jsonFile)
	dataConfigFile := filepath.Join(jsonFolder, dataJsonFile)

	configData, err := readFile(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 数据配置文件可选，缺失时使用默认规则
	dataConfigData := []byte("{}")
	if _, statErr := os.Stat(dataConfigFile); statErr == nil {
		if dataConfigData, err = readFile(dataConfigFile); err != nil {
			return nil, nil, fmt.Errorf("读取数据配置文件失败: %w", err)
		}
	}

	cfgChan := make(chan *Config, 1)
	dcfgChan := make(chan *DataConfig, 1)
	errChan := make(chan error, 2)

	go parseConfig(configData, cfgChan, errChan)
	go parseDataConfig(dataConfigData, dcfgChan, errChan)

	cfg, dcfg, err := waitForResults(cfgChan, dcfgChan, errChan)
	if err != nil {
		return nil, nil, err
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, nil, fmt.Errorf("环境变量覆盖失败: %w", err)
	}

	cfg.applyDefaults()
	dcfg.applyDefaults()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, nil, fmt.Errorf("配置校验失败: %w", err)
	}

	return cfg, dcfg, nil
}

func readFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("无法读取文件 %s: %w", filePath, err)
	}
	return data, nil
}

func parseConfig(data []byte, resultChan chan<- *Config, errChan chan<- error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		errChan <- fmt.Errorf("解析Config失败: %w", err)
		return
	}
	resultChan <- &cfg
}

func parseDataConfig(data []byte, resultChan chan<- *DataConfig, errChan chan<- error) {
	var dcfg DataConfig
	if err := json.Unmarshal(data, &dcfg); err != nil {
		errChan <- fmt.Errorf("解析DataConfig失败: %w", err)
		return
	}
	resultChan <- &dcfg
}

// ParseDataConfig 单独解析数据规则配置并补全默认值
func ParseDataConfig(data []byte) (*DataConfig, error) {
	var dcfg DataConfig
	if err := json.Unmarshal(data, &dcfg); err != nil {
		return nil, fmt.Errorf("解析DataConfig失败: %w", err)
	}
	dcfg.applyDefaults()
	return &dcfg, nil
}

func waitForResults(
	cfgChan <-chan *Config,
	dcfgChan <-chan *DataConfig,
	errChan <-chan error,
) (*Config, *DataConfig, error) {
	var (
		cfg    *Config
		dcfg   *DataConfig
		errors []error
	)

	for i := 0; i < 2; i++ {
		select {
		case c := <-cfgChan:
			cfg = c
		case d := <-dcfgChan:
			dcfg = d
		case err := <-errChan:
			errors = append(errors, err)
		}
	}

	if len(errors) > 0 {
		return nil, nil, combineErrors(errors)
	}

	if cfg == nil || dcfg == nil {
		return nil, nil, fmt.Errorf("部分配置未加载成功")
	}

	return cfg, dcfg, nil
}

func combineErrors(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}

	msg := "配置加载遇到多个错误:"
	for _, err := range errs {
		msg = fmt.Sprintf("%s\n- %v", msg, err)
	}
	return fmt.Errorf("%s", msg)
}

func (c *Config) applyDefaults() {
	if c.LogName == "" {
		c.LogName = "app.log"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSize == "" {
		c.LogMaxSize = "10 * 1024 * 1024"
	}
	if c.RotateInterval == 0 {
		c.RotateInterval = Duration(time.Minute)
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = Duration(15 * time.Second)
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = Duration(15 * time.Second)
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
}

func (dc *DataConfig) applyDefaults() {
	if dc.ExcludedCurricula == nil {
		dc.ExcludedCurricula = []string{"Cybersecurity"}
	}
	if len(dc.SearchingStatuses) == 0 {
		dc.SearchingStatuses = []string{"Actively Seeking", "Passively Seeking"}
	}
	if dc.PartTimeMarker == "" {
		dc.PartTimeMarker = "PT"
	}
	if dc.AllCurricula == "" {
		dc.AllCurricula = "all_values"
	}
	if dc.AllFormats == "" {
		dc.AllFormats = "all_format"
	}
}

// LogMaxBytes 解析 LogMaxSize 乘法表达式
func (c *Config) LogMaxBytes() (int64, error) {
	return eval(c.LogMaxSize)
}

// eval 计算形如 "10 * 1024 * 1024" 的乘积
func eval(expr string) (int64, error) {
	var result int64 = 1
	for _, part := range strings.Split(expr, "*") {
		num, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("无效的大小表达式 %q: %w", expr, err)
		}
		result *= num
	}
	return result, nil
}

// Duration 是time.Duration的自定义包装类型
// 用于支持JSON序列化和反序列化
type Duration time.Duration

// UnmarshalJSON 实现json.Unmarshaler接口
// 用于从JSON字符串解析Duration
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return d.Decode(s)
}

// MarshalJSON 实现json.Marshaler接口
// 用于将Duration序列化为JSON字符串
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Decode 实现envconfig.Decoder接口
func (d *Duration) Decode(value string) error {
	dur, err := time.ParseDuration(value)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// Std 返回标准库的time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}
