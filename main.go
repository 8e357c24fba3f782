package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/any-hub/math-hub/internal/cache"
	"github.com/any-hub/math-hub/internal/config"
	"github.com/any-hub/math-hub/internal/delivery"
	"github.com/any-hub/math-hub/internal/handler"
	"github.com/any-hub/math-hub/internal/logging"
	"github.com/any-hub/math-hub/internal/metrics"
	"github.com/any-hub/math-hub/internal/render"
	"github.com/any-hub/math-hub/internal/server"
	"github.com/any-hub/math-hub/internal/server/routes"
	"github.com/any-hub/math-hub/internal/typeset"
	"github.com/any-hub/math-hub/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
	// flags 保留解析后的 FlagSet，由 config.Load 叠加显式设置的标志。
	flags *pflag.FlagSet
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

const configEnv = "MATH_HUB_CONFIG"

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath, opts.flags)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(*cfg)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["routes"] = len(cfg.RouteSpecs())
		fields["delivery"] = cfg.DeliveryMode()
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	srv, err := buildServer(cfg, logger, opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化服务失败: %v\n", err)
		return 1
	}
	defer srv.shutdown()

	logger.WithFields(logrus.Fields{
		"action":  "listen",
		"address": cfg.ListenAddress(),
	}).Info("Fiber 服务启动")

	if err := srv.app.Listen(cfg.ListenAddress()); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数：唯一的位置参数为监听端口，配置路径可由 MATH_HUB_CONFIG 提供。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := pflag.NewFlagSet("mathhub", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SetNormalizeFunc(normalizeFlagName)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（可被 "+configEnv+" 提供）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	fs.Int("port", 0, "监听端口，通常以位置参数给出")
	_ = fs.MarkHidden("port")
	fs.String("host", "", "监听地址（默认 127.0.0.1）")
	fs.String("font", "", "排版字体，例如 TeX 或 STIX")
	fs.String("inline-path", "", "行内公式 SVG 路径")
	fs.String("display-path", "", "独立公式 SVG 路径")
	fs.String("inline-png-path", "", "行内公式 PNG 路径")
	fs.String("display-png-path", "", "独立公式 PNG 路径")
	fs.String("cache-dir", "", "缓存目录")
	fs.String("redirect-prefix", "", "启用 X-Accel-Redirect 时的内部路径前缀")
	fs.Bool("no-optimize", false, "跳过 SVG 优化")
	fs.String("log-level", "", "日志级别")
	fs.String("metrics", "", "指标导出器：none、prometheus 或 stdout")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	switch fs.NArg() {
	case 0:
	case 1:
		if err := fs.Set("port", fs.Arg(0)); err != nil {
			return cliOptions{}, fmt.Errorf("端口参数无效: %s", fs.Arg(0))
		}
	default:
		return cliOptions{}, fmt.Errorf("参数过多: %v", fs.Args())
	}

	path := os.Getenv(configEnv)
	if configFlag != "" {
		path = configFlag
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
		flags:       fs,
	}, nil
}

// normalizeFlagName 兼容早期的下划线写法，例如 --inline_path。
func normalizeFlagName(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

type appServer struct {
	app      *fiber.App
	provider *metrics.Provider
}

func (s *appServer) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.provider.Shutdown(ctx)
}

// buildServer 按 “工具探测 → 磁盘缓存 → 指标 → 渲染管线 → 路由表 → Fiber app” 的顺序装配服务，
// 所有请求共享同一份缓存与工具实例。
func buildServer(cfg *config.Config, logger *logrus.Logger, configPath string) (*appServer, error) {
	tools, err := typeset.Probe(cfg)
	if err != nil {
		return nil, fmt.Errorf("探测排版引擎失败: %w", err)
	}
	logMissingTools(logger, tools.Missing)

	store, err := cache.NewStore(cfg.CachePath)
	if err != nil {
		return nil, fmt.Errorf("初始化缓存目录失败: %w", err)
	}

	provider, err := metrics.Setup(cfg.MetricsExporter)
	if err != nil {
		return nil, fmt.Errorf("初始化指标失败: %w", err)
	}

	pipeline, err := render.NewPipeline(render.Options{
		Engine:     tools.Engine,
		Optimizer:  tools.Optimizer,
		Rasterizer: tools.Rasterizer,
		Store:      store,
		Logger:     logger,
		Metrics:    provider.Recorder,
	})
	if err != nil {
		return nil, err
	}

	strategy, err := delivery.New(store, cfg.RedirectPrefix)
	if err != nil {
		return nil, err
	}

	table, err := server.NewRouteTable(cfg, tools.Capabilities)
	if err != nil {
		return nil, fmt.Errorf("构建路由表失败: %w", err)
	}
	for _, skipped := range table.Skipped() {
		logger.WithFields(logrus.Fields{
			"action": "route_skipped",
			"path":   skipped.Path,
			"mode":   skipped.Mode,
			"format": skipped.Format,
			"reason": skipped.Reason,
		}).Warn("route_skipped")
	}

	mathHandler, err := handler.NewHandler(handler.Options{
		Pipeline: pipeline,
		Delivery: strategy,
		Store:    store,
		Logger:   logger,
		Metrics:  provider.Recorder,
	})
	if err != nil {
		return nil, err
	}

	app, err := server.NewApp(server.AppOptions{
		Logger:  logger,
		Routes:  table,
		Handler: mathHandler,
	})
	if err != nil {
		return nil, err
	}
	routes.RegisterDiagnosticRoutes(app, table, routes.DiagnosticsInfo{
		Version:        version.Full(),
		DeliveryMode:   strategy.Mode(),
		Capabilities:   tools.Capabilities,
		MetricsHandler: provider.Handler,
	})

	fields := logging.BaseFields("startup", configPath)
	fields["routes"] = len(table.List())
	fields["delivery"] = strategy.Mode()
	fields["font"] = cfg.Font
	fields["cache_path"] = cfg.CachePath
	fields["optimizer"] = tools.Capabilities.HasOptimizer
	fields["rasterizer"] = tools.Capabilities.HasRasterizer
	fields["metrics"] = cfg.MetricsExporter
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	return &appServer{app: app, provider: provider}, nil
}

func logMissingTools(logger *logrus.Logger, missing map[string]error) {
	names := make([]string, 0, len(missing))
	for name := range missing {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		logger.WithError(missing[name]).WithFields(logrus.Fields{
			"action": "probe",
			"tool":   name,
		}).Warn("tool_unavailable")
	}
}
