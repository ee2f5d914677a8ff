package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/san-kum/gridmarch/internal/analysis"
	"github.com/san-kum/gridmarch/internal/config"
	"github.com/san-kum/gridmarch/internal/expr"
	"github.com/san-kum/gridmarch/internal/grid"
	"github.com/san-kum/gridmarch/internal/logging"
	"github.com/san-kum/gridmarch/internal/march"
	"github.com/san-kum/gridmarch/internal/metrics"
	"github.com/san-kum/gridmarch/internal/scenario"
	"github.com/san-kum/gridmarch/internal/solver"
	"github.com/san-kum/gridmarch/internal/storage"
	"github.com/san-kum/gridmarch/internal/store"
	"github.com/san-kum/gridmarch/internal/store/sqlitestore"
	"github.com/san-kum/gridmarch/internal/viz"
)

// session is everything needed to march one scenario.
type session struct {
	scen      *scenario.Scenario
	shape     grid.Shape
	params    expr.ParamSource
	overrides map[string]float64
	field     store.Store
	close     func() error
	driver    *march.Driver
	observer  *march.MetricObserver
	registry  *prometheus.Registry
	log       *logrus.Logger
}

// resolveConfig layers the preset, the config file and the changed flags,
// in that order.
func resolveConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if len(args) > 0 {
		cfg.Scenario = args[0]
	}

	if preset != "" {
		p := config.GetPreset(cfg.Scenario, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(cfg.Scenario))
		}
		cfg = p
	}

	if configFile != "" {
		fileCfg, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		if len(args) > 0 {
			fileCfg.Scenario = args[0]
		}
		cfg = fileCfg
	}

	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("swatch") {
		cfg.Swatch = swatch
	}
	if flags.Changed("extents") {
		cfg.Grid.Extents = extents
	}
	if flags.Changed("steps") {
		cfg.Grid.Steps = steps
	}
	if flags.Changed("periodic") {
		cfg.Grid.Periodic = periodic
	}
	if flags.Changed("iterations") {
		cfg.Solver.MaxIterations = iterations
	}
	if flags.Changed("backtrack") {
		cfg.Solver.MaxBacktrack = backtrack
	}
	if flags.Changed("singular") {
		cfg.Solver.Singular = singular
	}
	if flags.Changed("pc") {
		cfg.Solver.PredictorCorrector = corrector
	}
	if flags.Changed("viscosity") {
		cfg.Solver.Viscosity.Enabled = viscosity
	}
	if flags.Changed("store") {
		cfg.Store.Backend = backend
	}
	if flags.Changed("db") {
		cfg.Store.Path = dbPath
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("json-log") {
		cfg.Log.JSON = jsonLog
	}
	if len(params) > 0 {
		merged := make(map[string]float64, len(cfg.Params)+len(params))
		for k, v := range cfg.Params {
			merged[k] = v
		}
		for k, raw := range params {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("param %s: %w", k, err)
			}
			merged[k] = v
		}
		cfg.Params = merged
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (store.Store, func() error, error) {
	if cfg.Store.Backend == "sqlite" {
		db, err := sqlitestore.Open(cfg.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	}
	return store.NewMemory(), func() error { return nil }, nil
}

func newSession(cmd *cobra.Command, args []string, extra ...march.Observer) (*session, error) {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return nil, err
	}
	logger := logging.New(os.Stderr, cfg.LogOptions(verbose))

	scen, err := scenario.NewRegistry().Get(cfg.Scenario)
	if err != nil {
		return nil, err
	}
	if len(cfg.Grid.SecondOrderScale) > 0 {
		scen.Options.SecondOrderScale = cfg.Grid.SecondOrderScale
	}
	shape := scen.WithShape(cfg.Grid.Extents, cfg.Grid.Steps, cfg.Grid.Periodic)
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	eq, err := scen.Compile(shape)
	if err != nil {
		return nil, err
	}
	ps := scen.ParamSource(shape, cfg.Params)

	field, closeFn, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	observer := &march.MetricObserver{Store: field, Shape: shape, Metrics: scen.Metrics()}
	driver, err := march.New(march.Config{
		Workers:    cfg.Workers,
		SwatchSize: cfg.SwatchSize(),
		Solver:     cfg.SolverConfig(),
		Logger:     logger,
		Recorder:   metrics.NewRecorder(reg),
		Observers:  append([]march.Observer{observer}, extra...),
	}, eq, shape, field, scen.Boundary(shape, ps), ps)
	if err != nil {
		closeFn()
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"scenario": scen.Name,
		"extents":  shape.Extents,
		"depth":    driver.Depth(),
		"store":    cfg.Store.Backend,
	}).Debug("session ready")

	return &session{
		scen:      scen,
		shape:     shape,
		params:    ps,
		overrides: cfg.Params,
		field:     field,
		close:     closeFn,
		driver:    driver,
		observer:  observer,
		registry:  reg,
		log:       logger,
	}, nil
}

func (s *session) seed(ctx context.Context) error {
	return s.driver.Seed(ctx, s.driver.Depth(), s.scen.Initial(s.shape, s.params))
}

func (s *session) march(ctx context.Context, to int) (march.Summary, error) {
	if err := s.seed(ctx); err != nil {
		return march.Summary{}, err
	}
	return s.driver.Run(ctx, s.driver.Depth(), to)
}

func serveMetrics(addr string, reg *prometheus.Registry, log *logrus.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Warn("metrics server stopped")
		}
	}()
	log.WithField("addr", addr).Info("serving metrics")
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func runMarch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	s, err := newSession(cmd, args)
	if err != nil {
		return err
	}
	defer s.close()

	if metricsAddr != "" {
		defer serveMetrics(metricsAddr, s.registry, s.log)()
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	last := s.shape.Extents[grid.Time]
	fmt.Printf("marching %s on %v...\n", s.scen.Name, s.shape.Extents)
	sum, err := s.march(ctx, last)
	if err != nil {
		return err
	}

	meta := storage.RunMetadata{
		Scenario:   s.scen.Name,
		Extents:    s.shape.Extents,
		Steps:      s.shape.Steps,
		Periodic:   s.shape.Periodic,
		Components: s.scen.Components,
		Workers:    len(s.driver.Workspaces()),
		Params:     s.overrides,
		Elapsed:    sum.Duration.Seconds(),
		Metrics:    s.observer.Values(),
	}
	runID, err := st.Save(ctx, meta, s.field, storage.SelectSlices(0, last-1, saveEvery))
	if err != nil {
		return err
	}

	t := sum.Totals
	fmt.Println(viz.Title.Render("run " + runID))
	fmt.Println(viz.Panel.Render(viz.MetricTable(map[string]float64{
		"slices":        float64(sum.Slices),
		"points":        float64(t.Points),
		"shift refills": float64(t.ShiftRefills),
		"full refills":  float64(t.FullRefills),
		"pinned":        float64(t.Pinned),
		"backtracks":    float64(t.Backtracks),
		"clamps":        float64(t.Clamps),
		"max residual":  t.MaxResidual,
		"seconds":       sum.Duration.Seconds(),
	})))
	fmt.Println(viz.Separator(40))
	fmt.Println(viz.MetricTable(meta.Metrics))
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	updates := make(chan tea.Msg, 16)
	var s *session
	feed := march.ObserverFunc(func(ctx context.Context, r march.SliceReport) error {
		values, err := store.ReadSlice(ctx, s.field, s.shape, r.T)
		if err != nil {
			return err
		}
		line := analysis.Parts(analysis.Line(values, s.shape, 1, gridCenter(s.shape, r.T), 0), analysis.Re)
		select {
		case updates <- viz.SliceMsg{Report: r, Profile: line, Metrics: s.observer.Values()}:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})

	var err error
	s, err = newSession(cmd, args, feed)
	if err != nil {
		return err
	}
	defer s.close()
	// The live view owns the terminal.
	s.log.SetLevel(logrus.WarnLevel)

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		defer close(updates)
		sum, err := s.march(ctx, s.shape.Extents[grid.Time])
		select {
		case updates <- viz.DoneMsg{Summary: sum, Err: err}:
		case <-ctx.Done():
		}
	}()

	model := viz.NewModel(s.scen.Name, s.driver.Depth(), s.shape.Extents[grid.Time], updates)
	_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
	// Quitting early abandons the run; wait for the workers before the
	// store is closed.
	cancel()
	<-finished
	return err
}

func solvePoint(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := newSession(cmd, args)
	if err != nil {
		return err
	}
	defer s.close()

	rank := s.shape.Rank()
	if len(at) != rank {
		return fmt.Errorf("--at needs %d coordinates, got %d", rank, len(at))
	}
	var c grid.Coord
	copy(c[:], at)
	if c[grid.Time] < s.driver.Depth() {
		return fmt.Errorf("slice %d is seeded; solve from slice %d on", c[grid.Time], s.driver.Depth())
	}

	if _, err := s.march(ctx, c[grid.Time]); err != nil {
		return err
	}
	res, err := s.driver.Solve(ctx, c)
	if err != nil {
		return err
	}

	fmt.Println(viz.Title.Render("solve " + c.Format(rank)))
	fmt.Println(viz.Panel.Render(viz.MetricTable(map[string]float64{
		"residual":    res.Residual,
		"iterations":  float64(res.Iterations),
		"evaluations": float64(res.Evaluations),
		"backtracks":  float64(res.Backtracks),
		"clamped":     float64(res.Clamped),
	})))
	for k, v := range res.Value {
		fmt.Printf("  u%d = %g\n", k, v)
	}
	if res.Status != solver.StatusOK {
		fmt.Println(viz.StatusFailed.Render(res.Status.String()))
		return res.Err()
	}
	fmt.Println(viz.StatusOK.Render(res.Status.String()))
	return nil
}
