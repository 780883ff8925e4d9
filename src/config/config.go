package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Settings 全局配置结构，从 config/settings.yaml 加载，环境变量优先
type Settings struct {
	Database struct {
		DSN string `yaml:"dsn"` // MySQL 扫描归档，可为空（不归档）
	} `yaml:"database"`

	RPC struct {
		Base string `yaml:"base"` // Base 主网 RPC
	} `yaml:"rpc"`

	BaseScan struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
	} `yaml:"basescan"`

	AI struct {
		OpenRouter struct {
			APIKey  string `yaml:"api_key"`
			BaseURL string `yaml:"base_url"` // 默认 https://openrouter.ai/api/v1
			Model   string `yaml:"model"`    // 默认 google/gemini-3-flash-preview
		} `yaml:"openrouter"`
	} `yaml:"ai"`

	Pinion struct {
		APIKey  string `yaml:"api_key"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"pinion"`

	Attester struct {
		ContractAddress    string `yaml:"contract_address"`
		DeployerPrivateKey string `yaml:"deployer_private_key"`
	} `yaml:"attester"`

	Server struct {
		Listen         string   `yaml:"listen"`          // 默认 :8080
		AllowedOrigins []string `yaml:"allowed_origins"` // CORS 白名单，空=全放行
	} `yaml:"server"`

	Scan struct {
		SerializeByKey *bool `yaml:"serialize_by_key"` // 同地址并发扫描是否串行化，默认 true
		CacheTTLHours  int   `yaml:"cache_ttl_hours"`  // 默认 6
		RateLimit      bool  `yaml:"rate_limit"`       // 每 IP 限流开关
	} `yaml:"scan"`

	Proxy string `yaml:"proxy"` // 可选 HTTP 代理，例如 http://127.0.0.1:7897
}

var globalSettings *Settings

// LoadSettings 加载配置文件。文件缺失不是错误，全部走默认值 + 环境变量
func LoadSettings(configPath string) error {
	if configPath == "" {
		configPath = "config/settings.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			globalSettings = &Settings{}
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var settings Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	globalSettings = &settings
	return nil
}

func settings() *Settings {
	if globalSettings == nil {
		globalSettings = &Settings{}
	}
	return globalSettings
}

// GetRPCURL 返回 Base RPC 地址
func GetRPCURL() string {
	if v := os.Getenv("BASE_RPC_URL"); v != "" {
		return v
	}
	if s := settings().RPC.Base; s != "" {
		return s
	}
	return "https://mainnet.base.org"
}

// GetBaseScanBaseURL BaseScan API 地址
func GetBaseScanBaseURL() string {
	if s := settings().BaseScan.BaseURL; s != "" {
		return s
	}
	return "https://api.basescan.org/api"
}

// GetBaseScanKey BaseScan API key，可为空（免 key 低速额度）
func GetBaseScanKey() string {
	if v := os.Getenv("BASESCAN_API_KEY"); v != "" {
		return v
	}
	return settings().BaseScan.APIKey
}

// GetOpenRouterKey 获取 OpenRouter API Key
func GetOpenRouterKey() (string, error) {
	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
		return key, nil
	}
	if key := settings().AI.OpenRouter.APIKey; key != "" {
		return key, nil
	}
	return "", fmt.Errorf("OpenRouter API key not found in config or environment variable OPENROUTER_API_KEY")
}

// GetOpenRouterBaseURL OpenRouter Base URL
func GetOpenRouterBaseURL() string {
	if s := settings().AI.OpenRouter.BaseURL; s != "" {
		return s
	}
	return "https://openrouter.ai/api/v1"
}

// GetOpenRouterModel 模型名称
func GetOpenRouterModel() string {
	if s := settings().AI.OpenRouter.Model; s != "" {
		return s
	}
	return "google/gemini-3-flash-preview"
}

// GetPinionKey Pinion 私钥/凭证，可为空（价格与余额查询降级）
func GetPinionKey() string {
	if v := os.Getenv("PINION_PRIVATE_KEY"); v != "" {
		return v
	}
	return settings().Pinion.APIKey
}

// GetPinionBaseURL Pinion API 地址
func GetPinionBaseURL() string {
	if s := settings().Pinion.BaseURL; s != "" {
		return s
	}
	return "https://api.pinion-os.xyz/v1"
}

// GetContractAddress 账本合约地址，未配置返回空串（跳过上链）
func GetContractAddress() string {
	if v := strings.TrimSpace(os.Getenv("PINIOSCAN_CONTRACT_ADDRESS")); v != "" {
		return v
	}
	return strings.TrimSpace(settings().Attester.ContractAddress)
}

// GetDeployerKey 签名私钥，未配置返回空串（跳过上链）
func GetDeployerKey() string {
	if v := strings.TrimSpace(os.Getenv("DEPLOYER_PRIVATE_KEY")); v != "" {
		return v
	}
	return strings.TrimSpace(settings().Attester.DeployerPrivateKey)
}

// GetDatabaseDSN 归档数据库 DSN，可为空
func GetDatabaseDSN() string {
	if v := os.Getenv("PINIOSCAN_DB_DSN"); v != "" {
		return v
	}
	return settings().Database.DSN
}

// GetSerializeByKey 同地址并发扫描策略，默认串行
func GetSerializeByKey() bool {
	if s := settings().Scan.SerializeByKey; s != nil {
		return *s
	}
	return true
}

// GetCacheTTLHours 缓存 TTL（小时），默认 6
func GetCacheTTLHours() int {
	if s := settings().Scan.CacheTTLHours; s > 0 {
		return s
	}
	return 6
}

// GetRateLimitEnabled 是否启用每 IP 限流
func GetRateLimitEnabled() bool {
	return settings().Scan.RateLimit
}

// GetListenAddr HTTP 服务监听地址
func GetListenAddr() string {
	if v := os.Getenv("PINIOSCAN_LISTEN"); v != "" {
		return v
	}
	if s := settings().Server.Listen; s != "" {
		return s
	}
	return ":8080"
}

// GetAllowedOrigins CORS 白名单
func GetAllowedOrigins() []string {
	return settings().Server.AllowedOrigins
}

// GetProxy 可选 HTTP 代理
func GetProxy() string {
	if v := os.Getenv("PINIOSCAN_PROXY"); v != "" {
		return v
	}
	return settings().Proxy
}
