package cmd

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
)

// CLIConfig 保存解析好的 CLI 选项
type CLIConfig struct {
	Serve        bool   // -serve 启动 HTTP 服务
	Listen       string // -listen 监听地址，覆盖配置文件
	ScanAddress  string // -scan 单次扫描的代币地址
	History      bool   // -history 打印最近的扫描归档
	HistoryLimit int    // -limit 历史条数
	ConfigPath   string // -config 配置文件路径
	Proxy        string // -proxy HTTP 代理 (例如 http://127.0.0.1:7897)
	Verbose      bool   // -v 调试日志
}

// Validate 检查 CLIConfig 的必需/一致性输入
func (c *CLIConfig) Validate() error {
	modes := 0
	if c.Serve {
		modes++
	}
	if c.ScanAddress != "" {
		modes++
	}
	if c.History {
		modes++
	}
	if modes == 0 {
		return errors.New("需要指定运行模式: -serve | -scan <address> | -history")
	}
	if modes > 1 {
		return errors.New("-serve / -scan / -history 只能选一个")
	}
	if c.ScanAddress != "" {
		if len(c.ScanAddress) != 42 || !strings.HasPrefix(c.ScanAddress, "0x") {
			return fmt.Errorf("无效的代币地址: %s", c.ScanAddress)
		}
	}
	if c.HistoryLimit <= 0 || c.HistoryLimit > 100 {
		c.HistoryLimit = 20
	}
	return nil
}

// showHelp 显示帮助信息
func showHelp(topic string) {
	switch topic {
	case "serve":
		showServeHelp()
	case "scan":
		showScanHelp()
	case "history":
		showHistoryHelp()
	default:
		showGeneralHelp()
	}
}

// showGeneralHelp 显示通用帮助
func showGeneralHelp() {
	fmt.Println("🛡️  Pinioscan - Base 代币安全扫描服务")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  pinioscan [命令] [选项]")
	fmt.Println()
	fmt.Println("主要命令:")
	fmt.Println("  -serve            启动 HTTP 扫描服务 (SSE + WebSocket)")
	fmt.Println("  -scan <address>   对单个代币执行一次扫描并打印报告")
	fmt.Println("  -history          打印最近的扫描归档记录")
	fmt.Println()
	fmt.Println("通用选项:")
	fmt.Println("  -config <path>    配置文件路径 (默认 src/config/settings.yaml)")
	fmt.Println("  -proxy <url>      HTTP 代理")
	fmt.Println("  -v                调试日志")
	fmt.Println()
	fmt.Println("获取特定命令的帮助:")
	fmt.Println("  pinioscan -serve --help")
	fmt.Println("  pinioscan -scan --help")
	fmt.Println("  pinioscan -history --help")
	fmt.Println()
	fmt.Println("示例:")
	fmt.Println("  pinioscan -serve -listen :8080")
	fmt.Println("  pinioscan -scan 0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	fmt.Println("  pinioscan -history -limit 10")
}

// showServeHelp 显示服务模式帮助
func showServeHelp() {
	fmt.Println("🚀 服务模式 (-serve)")
	fmt.Println()
	fmt.Println("功能: 启动 HTTP 服务，对外提供扫描与查询端点")
	fmt.Println()
	fmt.Println("端点:")
	fmt.Println("  GET /api/scan-stream?address=0x...   SSE 扫描进度流")
	fmt.Println("  GET /ws/scan                         WebSocket 扫描进度流")
	fmt.Println("  GET /api/history?limit=20            最近扫描归档")
	fmt.Println("  GET /api/attestations?address=0x...  链上认证历史")
	fmt.Println("  GET /api/total-scans                 全网累计扫描次数")
	fmt.Println("  GET /metrics                         Prometheus 指标")
	fmt.Println()
	fmt.Println("选项:")
	fmt.Println("  -listen <addr>    监听地址 (默认 :8080)")
	fmt.Println()
	fmt.Println("示例:")
	fmt.Println("  pinioscan -serve")
	fmt.Println("  pinioscan -serve -listen 127.0.0.1:9000")
	fmt.Println()
	fmt.Println("配置:")
	fmt.Println("  在 src/config/settings.yaml 中设置 API 密钥")
	fmt.Println("  或使用环境变量: OPENROUTER_API_KEY, BASESCAN_API_KEY, PINION_PRIVATE_KEY,")
	fmt.Println("  PINIOSCAN_CONTRACT_ADDRESS, DEPLOYER_PRIVATE_KEY, PINIOSCAN_DB_DSN")
}

// showScanHelp 显示单次扫描帮助
func showScanHelp() {
	fmt.Println("🔍 单次扫描 (-scan)")
	fmt.Println()
	fmt.Println("功能: 对单个 Base 代币执行完整扫描，进度打印到控制台，报告输出为 JSON")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  pinioscan -scan <address> [选项]")
	fmt.Println()
	fmt.Println("示例:")
	fmt.Println("  pinioscan -scan 0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	fmt.Println("  pinioscan -scan 0x4200000000000000000000000000000000000006 -v")
}

// showHistoryHelp 显示历史查询帮助
func showHistoryHelp() {
	fmt.Println("📜 扫描历史 (-history)")
	fmt.Println()
	fmt.Println("功能: 从归档数据库读取最近的扫描记录")
	fmt.Println()
	fmt.Println("选项:")
	fmt.Println("  -limit <n>        返回条数 (1-100, 默认 20)")
	fmt.Println()
	fmt.Println("示例:")
	fmt.Println("  pinioscan -history")
	fmt.Println("  pinioscan -history -limit 50")
	fmt.Println()
	fmt.Println("注意: 需要配置 PINIOSCAN_DB_DSN 或 database.dsn")
}

// ParseFlags 解析 os.Args 并返回 CLIConfig 或错误
func ParseFlags() (*CLIConfig, error) {
	if len(os.Args) > 1 {
		// 处理特定命令的帮助请求 (如 -serve --help)
		for i := 1; i < len(os.Args)-1; i++ {
			if os.Args[i+1] == "--help" || os.Args[i+1] == "-h" {
				topic := strings.TrimLeft(os.Args[i], "-")
				showHelp(topic)
				os.Exit(0)
			}
		}

		// 处理通用帮助请求
		for _, arg := range os.Args[1:] {
			if arg == "--help" || arg == "-h" {
				showGeneralHelp()
				os.Exit(0)
			}
		}
	}

	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.Usage = func() {
		showGeneralHelp()
	}

	serve := fs.Bool("serve", false, "启动 HTTP 扫描服务")
	listen := fs.String("listen", "", "监听地址，覆盖配置文件 (例如 :8080)")
	scan := fs.String("scan", "", "单次扫描的代币地址")
	history := fs.Bool("history", false, "打印最近的扫描归档记录")
	limit := fs.Int("limit", 20, "历史记录条数 (1-100)")
	configPath := fs.String("config", "src/config/settings.yaml", "配置文件路径")
	proxy := fs.String("proxy", "", "可选 HTTP 代理，例如 http://127.0.0.1:7897")
	verbose := fs.Bool("v", false, "调试日志")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, err
	}

	cfg := &CLIConfig{
		Serve:        *serve,
		Listen:       strings.TrimSpace(*listen),
		ScanAddress:  strings.TrimSpace(*scan),
		History:      *history,
		HistoryLimit: *limit,
		ConfigPath:   strings.TrimSpace(*configPath),
		Proxy:        strings.TrimSpace(*proxy),
		Verbose:      *verbose,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Run 解析 flags 并分派到相应处理器
func Run() error {
	cfg, err := ParseFlags()
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	return Execute(cfg)
}

// PrintFatal 将错误打印到 stderr 并以非零代码退出
func PrintFatal(err error) {
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "错误:", err)
	os.Exit(1)
}
