package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/BaSui01/mediagen/api"
	"github.com/BaSui01/mediagen/media"
	"go.uber.org/zap"
)

// dispatch 退出码
const (
	exitOK         = 0
	exitSetup      = 1
	exitDispatched = 2 // 调度完成但结果为 ERROR
)

// runDispatch 执行一次生成（或 --resume 一次状态检查），把 AdapterResponse
// 以 JSON 写到 stdout。日志写 stderr，以便结果可以直接管道给其它工具。
func runDispatch(args []string, stdin io.Reader, stdout io.Writer) int {
	fs := flag.NewFlagSet("dispatch", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to config file")
	file := fs.String("file", "-", "Request JSON file, - for stdin")
	resume := fs.String("resume", "", "Task id to check instead of submitting")
	if err := fs.Parse(args); err != nil {
		return exitSetup
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return exitSetup
	}
	cfg.Log.OutputPaths = []string{"stderr"}
	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	req, err := readGenerateRequest(*file, stdin)
	if err != nil {
		logger.Error("Invalid request file", zap.Error(err))
		return exitSetup
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	comps, err := buildComponents(ctx, cfg, logger, nil)
	if err != nil {
		logger.Error("Failed to init components", zap.Error(err))
		return exitSetup
	}
	defer func() { _ = comps.Close() }()

	var resp *media.AdapterResponse
	if *resume != "" {
		resp, err = comps.service.Resume(ctx, req.Config, *resume)
	} else {
		resp, err = comps.service.Generate(ctx, req.Config, &req.Request)
	}
	if err != nil {
		logger.Error("Dispatch setup failed", zap.Error(err))
		return exitSetup
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		logger.Error("Failed to write response", zap.Error(err))
		return exitSetup
	}
	if resp.Status == media.StatusError {
		return exitDispatched
	}
	return exitOK
}

func readGenerateRequest(path string, stdin io.Reader) (*api.GenerateRequest, error) {
	var r io.Reader = stdin
	if path != "-" && path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var req api.GenerateRequest
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	return &req, nil
}
