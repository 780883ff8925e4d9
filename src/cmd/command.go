package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/pinio-labs/pinioscan/src/config"
	"github.com/pinio-labs/pinioscan/src/internal/ai"
	"github.com/pinio-labs/pinioscan/src/internal/analyzer"
	"github.com/pinio-labs/pinioscan/src/internal/attester"
	"github.com/pinio-labs/pinioscan/src/internal/cache"
	"github.com/pinio-labs/pinioscan/src/internal/chain"
	logging "github.com/pinio-labs/pinioscan/src/internal/common"
	"github.com/pinio-labs/pinioscan/src/internal/fetcher"
	"github.com/pinio-labs/pinioscan/src/internal/scanner"
	"github.com/pinio-labs/pinioscan/src/internal/server"
)

// Execute 按 CLI 配置分派到对应处理器
func Execute(cfg *CLIConfig) error {
	// .env 不存在也没关系，只是本地开发的便利
	_ = godotenv.Load()

	if err := config.LoadSettings(cfg.ConfigPath); err != nil {
		fmt.Printf("⚠️  警告: 无法加载配置文件: %v\n", err)
		fmt.Println("将尝试从环境变量读取配置...")
	}

	if cfg.Verbose {
		logging.SetLogLevel("debug")
	}

	switch {
	case cfg.Serve:
		return ExecuteServe(cfg)
	case cfg.ScanAddress != "":
		return ExecuteScan(cfg)
	case cfg.History:
		return ExecuteHistory(cfg)
	}
	return nil
}

// runtime 一次进程生命周期内共享的组件集合
type runtime struct {
	scanner *scanner.Scanner
	archive *config.ScanArchive
	reader  *attester.Reader
	closers []func()
}

func (rt *runtime) Close() {
	for _, c := range rt.closers {
		c()
	}
}

// buildRuntime 组装扫描流水线：链上读取、BaseScan、Pinion、AI、认证、缓存、归档
func buildRuntime(cfg *CLIConfig) (*runtime, error) {
	rt := &runtime{}
	proxy := cfg.Proxy
	if proxy == "" {
		proxy = config.GetProxy()
	}

	fmt.Println("🔗 正在连接 Base RPC...")
	client, err := chain.Dial(config.GetRPCURL())
	if err != nil {
		return nil, fmt.Errorf("连接 Base RPC 失败: %w", err)
	}
	rt.closers = append(rt.closers, client.Close)

	explorer, err := fetcher.NewBaseScanClient(fetcher.BaseScanConfig{
		APIKey:  config.GetBaseScanKey(),
		BaseURL: config.GetBaseScanBaseURL(),
		Proxy:   proxy,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 BaseScan 客户端失败: %w", err)
	}
	rt.closers = append(rt.closers, explorer.Close)

	pinion, err := fetcher.NewPinionClient(fetcher.PinionConfig{
		PrivateKey: config.GetPinionKey(),
		BaseURL:    config.GetPinionBaseURL(),
		Proxy:      proxy,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 Pinion 客户端失败: %w", err)
	}

	apiKey, err := config.GetOpenRouterKey()
	if err != nil {
		return nil, err
	}
	aiClient, err := ai.NewOpenRouterClient(ai.OpenRouterConfig{
		APIKey:  apiKey,
		BaseURL: config.GetOpenRouterBaseURL(),
		Model:   config.GetOpenRouterModel(),
		Proxy:   proxy,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 AI 客户端失败: %w", err)
	}
	rt.closers = append(rt.closers, func() { aiClient.Close() })
	fmt.Printf("🤖 AI 就绪: %s\n", aiClient.GetName())

	// 认证器是可选能力，配置不全就降级为跳过
	var submitter scanner.Submitter
	var skipReason string
	att, err := attester.NewAttester(client, attester.Config{
		ContractAddress: config.GetContractAddress(),
		DeployerKey:     config.GetDeployerKey(),
	})
	switch {
	case err == nil:
		submitter = att
		fmt.Println("⛓️  链上认证已启用")
	case err == attester.ErrNoContractAddress:
		skipReason = scanner.ReasonNoContractAddress
		fmt.Println("⚠️  未配置认证合约地址，跳过链上认证")
	case err == attester.ErrNoDeployerKey:
		skipReason = scanner.ReasonNoDeployerKey
		fmt.Println("⚠️  未配置部署者私钥，跳过链上认证")
	default:
		return nil, fmt.Errorf("初始化认证器失败: %w", err)
	}

	if addr := config.GetContractAddress(); addr != "" {
		reader, err := attester.NewReader(client, addr)
		if err == nil {
			rt.reader = reader
		}
	}

	// MySQL 归档是可选能力
	var archiver scanner.Archiver
	if dsn := config.GetDatabaseDSN(); dsn != "" {
		fmt.Println("📊 正在连接 MySQL 归档库...")
		db, err := config.InitDB(dsn)
		if err != nil {
			fmt.Printf("⚠️  归档库不可用，本次不归档: %v\n", err)
		} else {
			rt.closers = append(rt.closers, func() { db.Close() })
			rt.archive = config.NewScanArchive(db)
			archiver = rt.archive
			fmt.Println("✅ 归档库连接成功!")
		}
	}

	store := cache.NewMemoryStore(time.Duration(config.GetCacheTTLHours()) * time.Hour)
	collector := fetcher.NewFetcher(client, explorer, pinion)
	synth := analyzer.NewAnalyzer(aiClient)

	rt.scanner = scanner.NewScanner(collector, synth, submitter, store, archiver,
		scanner.NewMetrics(), scanner.Options{
			SerializeByKey:   config.GetSerializeByKey(),
			SkipAttestReason: skipReason,
		})
	return rt, nil
}

// ExecuteServe 启动 HTTP 服务
func ExecuteServe(cfg *CLIConfig) error {
	fmt.Println("🚀 启动 Pinioscan 服务...")

	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	listen := cfg.Listen
	if listen == "" {
		listen = config.GetListenAddr()
	}

	// 接口对 nil 归档/读取器有显式降级，这里按实际可用性传入
	var archive server.Archive
	if rt.archive != nil {
		archive = rt.archive
	}
	var chainView server.ChainView
	if rt.reader != nil {
		chainView = rt.reader
	}

	srv := server.NewServer(server.Config{
		ListenAddr:     listen,
		AllowedOrigins: config.GetAllowedOrigins(),
		EnableRateLim:  config.GetRateLimitEnabled(),
	}, rt.scanner, archive, chainView, rt.scanner.Metrics().Handler())

	return srv.ListenAndServe()
}

// ExecuteScan 对单个代币执行一次扫描，报告打印为 JSON
func ExecuteScan(cfg *CLIConfig) error {
	fmt.Printf("🔍 扫描代币: %s\n", cfg.ScanAddress)

	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	fmt.Println("\n" + strings.Repeat("=", 50))

	ctx := context.Background()
	for event := range rt.scanner.Scan(ctx, cfg.ScanAddress) {
		switch event.Status {
		case scanner.StatusFetching:
			fmt.Println("📡 采集链上与浏览器数据...")
		case scanner.StatusFetchingDone:
			fmt.Printf("✅ 采集完成: %s (%s)\n", event.TokenName, event.TokenSymbol)
		case scanner.StatusAnalyzing:
			fmt.Println("🤖 AI 分析中...")
		case scanner.StatusAnalyzingDone:
			fmt.Println("✅ 分析完成")
		case scanner.StatusAttesting:
			fmt.Println("⛓️  提交链上认证...")
		case scanner.StatusAttestationSkipped:
			fmt.Printf("⏭️  跳过链上认证 (%s)\n", event.Reason)
		case scanner.StatusAttestationError:
			fmt.Printf("⚠️  链上认证失败: %s\n", event.Error)
		case scanner.StatusError:
			return fmt.Errorf("扫描失败: %s", event.Error)
		case scanner.StatusComplete:
			fmt.Println(strings.Repeat("=", 50) + "\n")
			out, err := json.MarshalIndent(event.Data, "", "  ")
			if err != nil {
				return fmt.Errorf("序列化报告失败: %w", err)
			}
			fmt.Println(string(out))
			fmt.Printf("\n🎯 总分: %d/100  风险等级: %s\n", event.Data.OverallScore, event.Data.RiskLevel)
		}
	}
	return nil
}

// ExecuteHistory 打印最近的扫描归档
func ExecuteHistory(cfg *CLIConfig) error {
	dsn := config.GetDatabaseDSN()
	if dsn == "" {
		return fmt.Errorf("未配置归档数据库 (PINIOSCAN_DB_DSN 或 database.dsn)")
	}

	db, err := config.InitDB(dsn)
	if err != nil {
		return fmt.Errorf("连接归档库失败: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	records, err := config.GetRecentScans(ctx, db, cfg.HistoryLimit)
	if err != nil {
		return fmt.Errorf("读取扫描历史失败: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("📭 还没有扫描记录")
		return nil
	}

	fmt.Printf("📜 最近 %d 条扫描记录:\n\n", len(records))
	for _, r := range records {
		att := ""
		if r.AttestationTx != "" {
			att = "  ⛓️ " + r.AttestationTx
		}
		fmt.Printf("  %s  %-12s %3d/100  %-8s  %s%s\n",
			r.CreatedAt.Format("2006-01-02 15:04"), r.Symbol, r.Score, r.RiskLevel, r.Address, att)
	}
	return nil
}
