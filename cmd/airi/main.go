package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/John-Robertt/airi/internal/app"
	"github.com/John-Robertt/airi/internal/catalog"
	"github.com/John-Robertt/airi/internal/config"
	"github.com/John-Robertt/airi/internal/diff"
	"github.com/John-Robertt/airi/internal/enrich"
	"github.com/John-Robertt/airi/internal/infra/httpx"
	"github.com/John-Robertt/airi/internal/infra/thumbs"
	"github.com/John-Robertt/airi/internal/libpath"
	"github.com/John-Robertt/airi/internal/logging"
	"github.com/John-Robertt/airi/internal/provider"
	"github.com/John-Robertt/airi/internal/provider/javdb"
	"github.com/John-Robertt/airi/internal/provider/nanojav"
	"github.com/John-Robertt/airi/internal/scan"
	"github.com/John-Robertt/airi/internal/session"
	"github.com/John-Robertt/airi/internal/translate"
	"github.com/John-Robertt/airi/internal/watch"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage()
		return
	}

	var code int
	switch args[0] {
	case "run":
		code = runCmd(args[1:], false)
	case "watch":
		code = runCmd(args[1:], true)
	case "crawl":
		code = crawlCmd(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage()
		code = 2
	}
	if code != 0 {
		os.Exit(code)
	}
}

func runCmd(args []string, watchMode bool) int {
	a, eff, ok := setup(args)
	if !ok {
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := a.ScanCycle(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "扫描失败：%v\n", err)
		return 1
	}

	if !watchMode {
		a.Queue.Wait()
		fmt.Fprintln(os.Stderr, a.Summary())
		return 0
	}

	resolver := libpath.Resolver{BaseDir: eff.Path}
	var roots []string
	for _, t := range a.TargetRoots() {
		if p := resolver.Abs(t); p != "" {
			roots = append(roots, p)
		}
	}

	w := &watch.Watcher{
		Debounce: eff.WatchDebounce,
		OnChange: func(ctx context.Context) {
			if _, err := a.ScanCycle(ctx); err != nil && ctx.Err() == nil {
				fmt.Fprintf(os.Stderr, "重扫失败：%v\n", err)
			}
		},
		Log: a.Log,
	}

	fmt.Fprintln(os.Stderr, a.Summary())
	if err := w.Run(ctx, roots); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "监听失败：%v\n", err)
		return 1
	}
	a.Queue.Wait()
	return 0
}

func crawlCmd(args []string) int {
	a, _, ok := setup(args)
	if !ok {
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := a.ScanCycle(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "扫描失败：%v\n", err)
		return 1
	}
	a.Queue.Wait()

	if err := a.StartSession(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "启动浏览器会话失败：%v\n", err)
		return 1
	}
	defer a.StopSession()

	if err := a.FetchMissingViaSession(ctx); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "批量补全失败：%v\n", err)
		return 1
	}

	fmt.Fprintln(os.Stderr, a.Summary())
	return 0
}

// setup 解析参数、加载配置并装配整套应用。
func setup(args []string) (*app.App, config.EffectiveConfig, bool) {
	cli, err := parseArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printUsage()
		return nil, config.EffectiveConfig{}, false
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return nil, config.EffectiveConfig{}, false
	}

	eff, err := config.LoadEffective(cwd, cli)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return nil, config.EffectiveConfig{}, false
	}

	log := logging.New(eff.LogLevel, eff.LogJSON)

	metaClient, err := httpx.NewMetaClient(eff.ProxyURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化 HTTP client 失败：%v\n", err)
		return nil, config.EffectiveConfig{}, false
	}
	imageClient, err := httpx.NewImageClient(eff.ProxyURL, eff.ImageProxy)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化图片 client 失败：%v\n", err)
		return nil, config.EffectiveConfig{}, false
	}

	var svc translate.Service = translate.Disabled{}
	if eff.DeepLAuthKey != "" {
		svc = &translate.DeepL{AuthKey: eff.DeepLAuthKey, Client: metaClient, Log: log}
	}

	var sources []provider.Source
	for _, name := range eff.Providers {
		switch name {
		case "nanojav":
			sources = append(sources, nanojav.Source{Client: metaClient, ImageClient: imageClient})
		case "javdb":
			sources = append(sources, javdb.Source{BaseURL: eff.JavDBBaseURL, Client: metaClient, ImageClient: imageClient})
		}
	}

	resolver := libpath.Resolver{BaseDir: eff.Path}
	thumbStore := thumbs.New(eff.Path)
	obs := newStatusObserver(os.Stderr)

	a := &app.App{
		Store: &catalog.Store{FilePath: eff.CatalogFile, Resolver: resolver, Log: log},
		Engine: &diff.Engine{
			Scanner: &scan.Scanner{Resolver: resolver, Log: log},
			Log:     log,
		},
		Chain: &provider.Chain{
			Sources:    sources,
			Thumbs:     thumbStore,
			Translate:  svc,
			TargetLang: eff.TargetLang,
			Log:        log,
		},
		Queue: &enrich.Queue{Log: log},
		Session: &session.Manager{
			SeedURL:    eff.SeedURL,
			Translate:  svc,
			TargetLang: eff.TargetLang,
			Log:        log,
		},
		ImageClient: imageClient,
		Thumbs:      thumbStore,
		KeepMissing: eff.KeepMissing,
		SearchURL:   strings.TrimRight(eff.SeedURL, "/") + "/search/",
		Obs:         obs,
		Log:         log,
	}
	if err := a.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "加载目录失败：%v\n", err)
		return nil, config.EffectiveConfig{}, false
	}
	return a, eff, true
}

func parseArgs(args []string) (config.CLIArgs, error) {
	cli := config.CLIArgs{}

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--log-level":
			if i+1 >= len(args) {
				return config.CLIArgs{}, fmt.Errorf("--log-level 需要一个值")
			}
			i++
			cli.LogLevel = args[i]
			cli.LogLevelSet = true
		case strings.HasPrefix(a, "--log-level="):
			cli.LogLevel = strings.TrimPrefix(a, "--log-level=")
			cli.LogLevelSet = true
		case strings.HasPrefix(a, "-"):
			return config.CLIArgs{}, fmt.Errorf("未知参数 %q", a)
		default:
			if cli.Path != "" {
				return config.CLIArgs{}, fmt.Errorf("重复的 path：%q 与 %q", cli.Path, a)
			}
			cli.Path = a
		}
	}
	return cli, nil
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage() {
	fmt.Fprint(os.Stdout, `用法：
  airi run   [path] [--log-level debug|info|warn|error]
  airi watch [path] [--log-level ...]
  airi crawl [path] [--log-level ...]

命令：
  run    扫描一轮并补全新条目的元数据
  watch  常驻监听目标目录，文件变化后自动重扫
  crawl  启动浏览器会话，批量补全缺失的元数据

path 未指定时读取当前目录下 airi.json 的 path 字段。
`)
}
