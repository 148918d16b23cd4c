package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"owl-haccp/common/config"
)

// Config HACCP 合规服务配置
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig

	// HACCP 服务特定配置
	HACCP struct {
		// 提交流配置（Redis Streams）
		Streams struct {
			CCPSubmissions  string // CCP 监控记录提交流，如 "haccp:ccp:submissions"
			PestSubmissions string // 防虫检查提交流，如 "haccp:pest:submissions"
			DeviationEvents string // 偏差事件输出流，如 "haccp:deviations"
			ConsumerGroup   string
			ConsumerName    string
			BatchSize       int // 每次读取消息数，默认 10
			BlockMillis     int // XREADGROUP 阻塞时间（毫秒），默认 2000
			// 未确认消息重试间隔（毫秒），默认 30000
			PendingRetryMillis int
		}

		// Redis 缓存配置
		Cache struct {
			CalibrationKeyPrefix string // 校准状态缓存键前缀，如 "haccp:calibration:"
			CalibrationTTL       int    // 校准状态缓存 TTL（秒），默认 86400
		}

		// 校准到期巡检
		Sweep struct {
			Interval int // 巡检间隔（秒），默认 3600
		}

		// 评估配置
		Evaluation struct {
			Workers int // 批量评估并发数，默认 4
		}

		// 季节划分：SummerStartMonth..SummerEndMonth（含）为 SUMMER，其余为 WINTER
		Season struct {
			SummerStartMonth int
			SummerEndMonth   int
		}

		// 计算“今天”使用的时区
		Timezone string

		// 偏差通知配置
		Notifier struct {
			Targets     []string // stream / mqtt / http
			TopicPrefix string   // MQTT 主题前缀，如 "haccp/deviations"
			HTTPBaseURL string   // 纠正措施系统 API 地址
			HTTPToken   string
			HTTPTimeout int // 秒，默认 10
		}
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	// 从环境变量加载（默认值）
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = 5432
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "haccp")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = 25
	cfg.Database.MaxIdle = 5
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "owl-haccp")
	cfg.MQTT.QoS = 1
	cfg.MQTT.LoadFromEnv("MQTT")

	// HACCP 服务配置
	cfg.HACCP.Streams.CCPSubmissions = getEnv("STREAM_CCP_SUBMISSIONS", "haccp:ccp:submissions")
	cfg.HACCP.Streams.PestSubmissions = getEnv("STREAM_PEST_SUBMISSIONS", "haccp:pest:submissions")
	cfg.HACCP.Streams.DeviationEvents = getEnv("STREAM_DEVIATION_EVENTS", "haccp:deviations")
	cfg.HACCP.Streams.ConsumerGroup = getEnv("STREAM_CONSUMER_GROUP", "haccp-compliance-group")
	cfg.HACCP.Streams.ConsumerName = getEnv("STREAM_CONSUMER_NAME", defaultConsumerName())
	cfg.HACCP.Streams.BatchSize = getEnvInt("STREAM_BATCH_SIZE", 10)
	cfg.HACCP.Streams.BlockMillis = getEnvInt("STREAM_BLOCK_MS", 2000)
	cfg.HACCP.Streams.PendingRetryMillis = getEnvInt("STREAM_PENDING_RETRY_MS", 30000)

	cfg.HACCP.Cache.CalibrationKeyPrefix = getEnv("CACHE_CALIBRATION_PREFIX", "haccp:calibration:")
	cfg.HACCP.Cache.CalibrationTTL = getEnvInt("CACHE_CALIBRATION_TTL", 86400)

	cfg.HACCP.Sweep.Interval = getEnvInt("CALIBRATION_SWEEP_INTERVAL", 3600)
	cfg.HACCP.Evaluation.Workers = getEnvInt("EVALUATION_WORKERS", 4)

	cfg.HACCP.Season.SummerStartMonth = getEnvInt("SUMMER_START_MONTH", 5)
	cfg.HACCP.Season.SummerEndMonth = getEnvInt("SUMMER_END_MONTH", 10)
	cfg.HACCP.Timezone = getEnv("HACCP_TIMEZONE", "UTC")

	cfg.HACCP.Notifier.Targets = config.SplitList(getEnv("NOTIFIER_TARGETS", "stream"))
	cfg.HACCP.Notifier.TopicPrefix = getEnv("NOTIFIER_MQTT_TOPIC_PREFIX", "haccp/deviations")
	cfg.HACCP.Notifier.HTTPBaseURL = getEnv("CORRECTIVE_ACTION_API_URL", "")
	cfg.HACCP.Notifier.HTTPToken = getEnv("CORRECTIVE_ACTION_API_TOKEN", "")
	cfg.HACCP.Notifier.HTTPTimeout = getEnvInt("CORRECTIVE_ACTION_API_TIMEOUT", 10)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Location 返回计算“今天”所用的时区
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.HACCP.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SummerMonths 返回夏季起止月份
func (c *Config) SummerMonths() (time.Month, time.Month) {
	return time.Month(c.HACCP.Season.SummerStartMonth), time.Month(c.HACCP.Season.SummerEndMonth)
}

func (c *Config) validate() error {
	s := c.HACCP.Season
	if s.SummerStartMonth < 1 || s.SummerStartMonth > 12 || s.SummerEndMonth < 1 || s.SummerEndMonth > 12 {
		return fmt.Errorf("invalid summer months: %d-%d", s.SummerStartMonth, s.SummerEndMonth)
	}
	if c.HACCP.Evaluation.Workers <= 0 {
		return fmt.Errorf("EVALUATION_WORKERS must be positive, got %d", c.HACCP.Evaluation.Workers)
	}
	if c.HACCP.Streams.BatchSize <= 0 {
		return fmt.Errorf("STREAM_BATCH_SIZE must be positive, got %d", c.HACCP.Streams.BatchSize)
	}
	if c.HACCP.Streams.PendingRetryMillis <= 0 {
		return fmt.Errorf("STREAM_PENDING_RETRY_MS must be positive, got %d", c.HACCP.Streams.PendingRetryMillis)
	}
	if c.HACCP.Sweep.Interval <= 0 {
		return fmt.Errorf("CALIBRATION_SWEEP_INTERVAL must be positive, got %d", c.HACCP.Sweep.Interval)
	}
	if c.HACCP.Cache.CalibrationTTL <= 0 {
		return fmt.Errorf("CACHE_CALIBRATION_TTL must be positive, got %d", c.HACCP.Cache.CalibrationTTL)
	}
	if c.HACCP.Notifier.HTTPTimeout <= 0 {
		return fmt.Errorf("CORRECTIVE_ACTION_API_TIMEOUT must be positive, got %d", c.HACCP.Notifier.HTTPTimeout)
	}
	if _, err := time.LoadLocation(c.HACCP.Timezone); err != nil {
		return fmt.Errorf("invalid HACCP_TIMEZONE %q: %w", c.HACCP.Timezone, err)
	}
	for _, target := range c.HACCP.Notifier.Targets {
		switch target {
		case "stream", "mqtt":
		case "http":
			if c.HACCP.Notifier.HTTPBaseURL == "" {
				return fmt.Errorf("CORRECTIVE_ACTION_API_URL is required for http notifier")
			}
		default:
			return fmt.Errorf("unknown notifier target: %s", target)
		}
	}
	return nil
}

func defaultConsumerName() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return "haccp-consumer"
	}
	return "haccp-consumer-" + hostname
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return defaultValue
}
