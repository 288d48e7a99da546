// Command geonear 通过 HTTP 提供最近格点检索服务，或对本地 CSV 格点场执行一次性查询。
//
// 用法:
//
//	geonear serve [-config geonear.toml] [-env .env]
//	geonear query -data grid.csv [-brute] [-leaf 8] [-json] <lat> <lon> [<lat> <lon> ...]
//
// 示例:
//
//	geonear serve -config /etc/geonear/geonear.toml
//	geonear query -data stations.csv 39.64 -106.37
//	geonear query -data stations.csv -json 39.64 -106.37 40.71 -74.01
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/wyfcoding/geonear/breaker"
	"github.com/wyfcoding/geonear/cache"
	"github.com/wyfcoding/geonear/config"
	"github.com/wyfcoding/geonear/geo"
	"github.com/wyfcoding/geonear/gridfield"
	"github.com/wyfcoding/geonear/health"
	"github.com/wyfcoding/geonear/idgen"
	"github.com/wyfcoding/geonear/limiter"
	"github.com/wyfcoding/geonear/logging"
	"github.com/wyfcoding/geonear/metrics"
	"github.com/wyfcoding/geonear/nearest"
	"github.com/wyfcoding/geonear/registry"
	"github.com/wyfcoding/geonear/server"
	"github.com/wyfcoding/geonear/storage"
	"github.com/wyfcoding/geonear/tracing"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"
)

// version 构建时通过 -ldflags "-X main.version=..." 注入。
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(os.Args[2:])
	case "query":
		err = runQuery(os.Args[2:], os.Stdout)
	case "-h", "-help", "--help", "help":
		usage(os.Stdout)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "geonear:", err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage:")
	fmt.Fprintln(w, "  geonear serve [-config geonear.toml] [-env .env]")
	fmt.Fprintln(w, "  geonear query -data grid.csv [-brute] [-leaf 8] [-json] <lat> <lon> [<lat> <lon> ...]")
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	path := fs.String("config", "geonear.toml", "path to the TOML config file")
	envFile := fs.String("env", ".env", "optional dotenv file with GEONEAR_* overrides")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", *envFile, err)
	}

	var cfg config.Config
	if err := config.Load(*path, &cfg); err != nil {
		return err
	}
	if cfg.Version == "" {
		cfg.Version = version
	}

	logger := logging.Init(logging.Config{
		Service:    cfg.Server.Name,
		Module:     "main",
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})
	config.PrintWithMask(&cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracing.InitTracer(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(sctx); err != nil {
			logger.Error("tracer shutdown failed", "error", err)
		}
	}()

	if err := idgen.Init(cfg.Server.RequestID); err != nil {
		return fmt.Errorf("init request id generator: %w", err)
	}

	var m *metrics.Metrics
	metricsPath := ""
	if cfg.Metrics.Enabled {
		m = metrics.NewMetrics(cfg.Server.Name)
		m.RegisterBuildInfo(cfg.Server.Name, cfg.Version)
		if cfg.Metrics.Port != "" {
			defer m.ExposeHttp(cfg.Metrics.Port)()
		} else {
			metricsPath = cfg.Metrics.Path
		}
	}

	hs := health.NewService(cfg.Server.Name, 2*time.Second)
	sources := map[string]storage.Storage{"file": storage.NewFileStorage(cfg.Storage.Root)}
	if cfg.Storage.Minio.Enabled() {
		client, err := storage.NewMinIOClient(cfg.Storage.Minio)
		if err != nil {
			return fmt.Errorf("init minio: %w", err)
		}
		storage.RegisterReloadHook(client)
		b := breaker.NewBreaker(breaker.Settings{
			Name:         "minio",
			Config:       cfg.Storage.Breaker,
			IsSuccessful: storage.IsSourceHealthy,
		}, m)
		sources["minio"] = storage.WithBreaker(client, b)
		hs.Register("minio", health.MinioChecker(client))
	}

	reg := registry.New(
		registry.WithIndexOptions(registry.IndexOptionsFromConfig(cfg.Index)),
		registry.WithMetrics(m),
		registry.WithLogger(logger.Named("registry")),
	)
	defer reg.Close()

	if err := reg.LoadDatasets(ctx, sources, cfg.Datasets); err != nil {
		return fmt.Errorf("load datasets: %w", err)
	}
	want := make([]string, 0, len(cfg.Datasets))
	for _, ds := range cfg.Datasets {
		want = append(want, ds.Name)
	}
	hs.Register("fields", health.FieldsChecker(reg, want))

	apiOpts := []server.APIOption{
		server.WithMetrics(m),
		server.WithHealth(hs),
		server.WithDatasets(sources, cfg.Datasets),
		server.WithMaxBatchPoints(cfg.Server.HTTP.MaxBatchPoints),
		server.WithLogger(logger.Named("api")),
	}
	if cfg.Cache.Enabled {
		c, err := cache.NewBigCache(cfg.Cache.TTL, cfg.Cache.MaxMB)
		if err != nil {
			return err
		}
		defer c.Close()
		apiOpts = append(apiOpts, server.WithCache(c, cfg.Cache.TTL))
	}

	var lim limiter.Limiter
	keyed := limiter.FromConfig(cfg.RateLimit)
	if keyed != nil {
		lim = keyed
	}

	config.RegisterReloadHook(func(next *config.Config) {
		reg.SetIndexOptions(registry.IndexOptionsFromConfig(next.Index))
		if keyed != nil {
			keyed.Update(rate.Limit(next.RateLimit.RPS), next.RateLimit.Burst)
		}
	})

	engine := server.NewEngine(server.EngineOptions{
		Config:  cfg,
		Metrics: m,
		Limiter: lim,
		Logger:  logger.Logger,
	})
	server.NewAPI(reg, apiOpts...).Register(engine, metricsPath)

	srv := server.NewGinServer(engine, cfg.Server.HTTP, logger.Logger)
	if err := srv.Start(ctx); err != nil {
		return err
	}
	logger.Info("geonear stopped")
	return nil
}

type queryOutput struct {
	Query  geo.Point        `json:"query"`
	Sample gridfield.Sample `json:"sample"`
}

func runQuery(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	data := fs.String("data", "", "CSV file with lat, lon and value columns")
	brute := fs.Bool("brute", false, "scan every gridpoint instead of building an index")
	leaf := fs.Int("leaf", nearest.DefaultLeafSize, "k-d tree leaf size")
	asJSON := fs.Bool("json", false, "print results as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *data == "" {
		return errors.New("-data is required")
	}
	points, err := parsePairs(fs.Args())
	if err != nil {
		return err
	}

	fh, err := os.Open(*data)
	if err != nil {
		return err
	}
	defer fh.Close()
	field, err := gridfield.DecodeCSV(fh, *data)
	if err != nil {
		return err
	}

	var s nearest.Searcher
	if *brute {
		s = nearest.NewBruteForce(field.Coords)
	} else if s, err = nearest.Build(field.Coords, nearest.WithLeafSize(*leaf)); err != nil {
		return err
	}

	samples, err := field.Lookup(s, points)
	if err != nil {
		return err
	}

	if *asJSON {
		res := make([]queryOutput, len(samples))
		for i := range samples {
			res[i] = queryOutput{Query: points[i], Sample: samples[i]}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	for i, sm := range samples {
		fmt.Fprintf(out, "%9.4f %10.4f -> #%d (%.4f, %.4f) %s m  value %s\n",
			points[i].Lat, points[i].Lon, sm.Index, sm.Point.Lat, sm.Point.Lon,
			formatNum(sm.Distance, 1), formatNum(sm.Value, 4))
	}
	return nil
}

func parsePairs(args []string) ([]geo.Point, error) {
	if len(args) == 0 || len(args)%2 != 0 {
		return nil, errors.New("expected one or more <lat> <lon> pairs")
	}
	points := make([]geo.Point, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		lat, err := strconv.ParseFloat(args[i], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid latitude %q", args[i])
		}
		lon, err := strconv.ParseFloat(args[i+1], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid longitude %q", args[i+1])
		}
		points = append(points, geo.Point{Lat: lat, Lon: lon})
	}
	return points, nil
}

func formatNum(v float64, prec int) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}
