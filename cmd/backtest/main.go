package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	osSignal "os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/assist-by/phoenix-backtest/internal/api"
	"github.com/assist-by/phoenix-backtest/internal/backtest"
	"github.com/assist-by/phoenix-backtest/internal/config"
	"github.com/assist-by/phoenix-backtest/internal/domain"
	"github.com/assist-by/phoenix-backtest/internal/logger"
	"github.com/assist-by/phoenix-backtest/internal/market"
	"github.com/assist-by/phoenix-backtest/internal/metrics"
	"github.com/assist-by/phoenix-backtest/internal/notification"
	"github.com/assist-by/phoenix-backtest/internal/notification/discord"
	"github.com/assist-by/phoenix-backtest/internal/scheduler"
	"github.com/assist-by/phoenix-backtest/internal/store"
	"github.com/assist-by/phoenix-backtest/internal/strategy"
	"github.com/assist-by/phoenix-backtest/internal/strategy/builtin"
)

// app은 한 번의 프로세스 실행에 필요한 의존성을 묶습니다
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *strategy.Registry
	recorder *metrics.Recorder
	observer backtest.RunObserver
	store    *store.Store

	outPath string
	sweep   []float64
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

// run은 플래그와 설정을 읽어 모드에 맞게 실행합니다. 종료 처리는 반환 전에 모두 끝납니다.
func run(args []string) error {
	// 명령줄 플래그 정의
	fs := flag.NewFlagSet("backtest", flag.ContinueOnError)
	dataFlag := fs.String("data", "", "캔들 데이터 파일 (.csv 또는 .json), BACKTEST_DATA_FILE 대체")
	strategyFlag := fs.String("strategy", "", "실행할 전략 이름, BACKTEST_STRATEGY 대체")
	outFlag := fs.String("out", "-", "결과 JSON 저장 경로 (-는 표준 출력)")
	serveFlag := fs.Bool("serve", false, "HTTP API 서버 모드로 실행")
	sweepFlag := fs.String("sweep", "", "쉼표로 구분한 거래당 리스크 값들을 병렬 실행 (예: 0.01,0.02)")
	everyFlag := fs.Duration("every", 0, "지정 간격마다 반복 실행, SCHEDULE_INTERVAL 대체")
	listFlag := fs.Bool("list", false, "등록된 전략 목록 출력 후 종료")

	// 플래그 파싱
	if err := fs.Parse(args); err != nil {
		return err
	}

	sweep, err := parseSweep(*sweepFlag)
	if err != nil {
		return fmt.Errorf("sweep 값 파싱 실패: %w", err)
	}

	// 설정 로드
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("설정 로드 실패: %w", err)
	}
	if *dataFlag != "" {
		cfg.Backtest.DataFile = *dataFlag
	}
	if *strategyFlag != "" {
		cfg.Backtest.Strategy = *strategyFlag
	}
	if *everyFlag > 0 {
		cfg.Schedule.Interval = *everyFlag
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return fmt.Errorf("로거 생성 실패: %w", err)
	}
	defer func() { _ = log.Sync() }()

	registry := builtin.NewRegistry()
	if *listFlag {
		for _, name := range registry.ListStrategies() {
			fmt.Println(name)
		}
		return nil
	}

	// 시그널 처리
	ctx, stop := osSignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{
		cfg:      cfg,
		logger:   log,
		registry: registry,
		recorder: metrics.NewRecorder(),
		outPath:  *outFlag,
		sweep:    sweep,
	}

	observers := notification.MultiObserver{a.recorder}
	if cfg.Discord.ReportWebhook != "" {
		client := discord.NewClient(cfg.Discord.ReportWebhook,
			discord.WithTimeout(cfg.Discord.Timeout),
			discord.WithLogger(log))
		observers = append(observers, notification.NewObserver(client, cfg.Discord.Timeout, log))
	}
	a.observer = observers

	if cfg.Store.DSN != "" {
		s, err := store.Open(cfg.Store.DSN, store.WithLogger(log))
		if err != nil {
			log.Error("저장소 열기 실패", zap.Error(err))
			return err
		}
		defer func() { _ = s.Close() }()
		a.store = s
	}

	if *serveFlag {
		err = a.serve(ctx)
	} else {
		err = a.runScheduled(ctx)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("실행 실패", zap.Error(err))
		return err
	}
	log.Info("종료")
	return nil
}

// serve는 HTTP API 서버를 실행하고 시그널을 받으면 정상 종료합니다
func (a *app) serve(ctx context.Context) error {
	opts := []api.Option{api.WithRecorder(a.recorder), api.WithLogger(a.logger)}
	if a.store != nil {
		opts = append(opts, api.WithStore(a.store))
	}

	server := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           api.NewRouter(api.NewHandler(a.registry, opts...)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP 서버 시작", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("HTTP 서버 종료 중")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// runScheduled는 반복 간격이 있으면 스케줄러로, 없으면 한 번만 백테스트를 실행합니다
func (a *app) runScheduled(ctx context.Context) error {
	if a.cfg.Schedule.Interval <= 0 {
		return a.runOnce(ctx)
	}

	s, err := scheduler.NewScheduler(a.cfg.Schedule.Interval, scheduler.TaskFunc(a.runOnce),
		scheduler.WithRunOnStart(),
		scheduler.WithLogger(a.logger))
	if err != nil {
		return err
	}
	return s.Start(ctx)
}

// runOnce는 데이터 파일을 읽어 백테스트(또는 sweep)를 실행하고 결과를 기록합니다
func (a *app) runOnce(ctx context.Context) error {
	b := a.cfg.Backtest
	if b.DataFile == "" {
		return errors.New("데이터 파일이 지정되지 않았습니다 (-data 또는 BACKTEST_DATA_FILE)")
	}

	candles, err := market.LoadFile(b.DataFile, b.Symbol, domain.TimeInterval(b.Interval))
	if err != nil {
		return err
	}
	a.logger.Info("캔들 데이터 로드", zap.String("file", b.DataFile), zap.Int("candles", len(candles)))

	btCfg, err := a.cfg.ToBacktestConfig()
	if err != nil {
		return err
	}

	if len(a.sweep) > 0 {
		return a.runSweep(ctx, btCfg, candles)
	}

	strat, err := a.registry.Create(b.Strategy, a.cfg.StrategyConfig())
	if err != nil {
		return err
	}

	name := fmt.Sprintf("%s-%s-%s", b.Symbol, b.Interval, strat.GetName())
	engine, err := backtest.NewEngine(btCfg, strat, candles,
		backtest.WithName(name),
		backtest.WithLogger(a.logger),
		backtest.WithObserver(a.observer),
		backtest.WithProgress(func(percent float64, current, total int) {
			a.logger.Debug("진행률", zap.Float64("percent", percent), zap.Int("bar", current), zap.Int("total", total))
		}))
	if err != nil {
		return err
	}

	result, err := engine.Run(ctx)
	if err != nil {
		return err
	}

	if err := a.persist(ctx, name, strat.GetName(), result); err != nil {
		return err
	}
	return a.writeOutput(result)
}

// runSweep은 거래당 리스크 값만 바꾼 백테스트들을 병렬로 실행합니다
func (a *app) runSweep(ctx context.Context, base backtest.Config, candles domain.CandleList) error {
	b := a.cfg.Backtest
	params := a.cfg.StrategyConfig()

	jobs := make([]backtest.Job, 0, len(a.sweep))
	for _, risk := range a.sweep {
		cfg := base
		cfg.RiskPerTrade = risk
		jobs = append(jobs, backtest.Job{
			Name:    fmt.Sprintf("%s-%s-risk%g", b.Symbol, b.Strategy, risk),
			Config:  cfg,
			Candles: candles,
			NewStrategy: func() (strategy.Strategy, error) {
				return a.registry.Create(b.Strategy, params)
			},
		})
	}

	runner := backtest.NewRunner(a.cfg.Batch.Workers, a.logger, a.observer)
	results := runner.Run(ctx, jobs)

	var failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
			a.logger.Error("sweep 실행 실패", zap.String("name", r.Name), zap.Error(r.Err))
			continue
		}
		if err := a.persist(ctx, r.Name, b.Strategy, r.Result); err != nil {
			return err
		}
	}

	if err := a.writeOutput(results); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("sweep %d건 중 %d건 실패", len(results), failed)
	}
	return nil
}

func (a *app) persist(ctx context.Context, name, strategyName string, result *backtest.Result) error {
	if a.store == nil {
		return nil
	}
	id, err := a.store.Save(ctx, name, strategyName, result)
	if err != nil {
		return err
	}
	a.logger.Info("결과 저장", zap.String("name", name), zap.Uint("id", id))
	return nil
}

// writeOutput은 결과를 JSON으로 기록합니다
func (a *app) writeOutput(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("결과 마샬링 실패: %w", err)
	}
	data = append(data, '\n')

	if a.outPath == "" || a.outPath == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(a.outPath, data, 0o644); err != nil {
		return fmt.Errorf("결과 파일 저장 실패: %w", err)
	}
	a.logger.Info("결과 파일 저장", zap.String("path", a.outPath))
	return nil
}

// parseSweep은 "0.01,0.02" 형식을 파싱합니다
func parseSweep(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	values := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("잘못된 값 %q: %w", p, err)
		}
		values = append(values, v)
	}
	return values, nil
}
