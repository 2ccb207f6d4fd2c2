// Package daemon wires the farm subsystems together and serves their API.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/reef-pi/farmer/controller"
	"github.com/reef-pi/farmer/controller/link"
	"github.com/reef-pi/farmer/controller/modules/actuator"
	"github.com/reef-pi/farmer/controller/modules/registry"
	"github.com/reef-pi/farmer/controller/modules/relocation"
	"github.com/reef-pi/farmer/controller/modules/telemetry"
	"github.com/reef-pi/farmer/controller/storage"
	"github.com/reef-pi/farmer/pkg/log"
)

// SerialConfig names a serial device.
type SerialConfig struct {
	Device string
	Baud   int
}

// Config is everything New needs to build a farm.
type Config struct {
	// DevMode replaces the serial links with in-memory ports and the PWM
	// board with a logging driver.
	DevMode         bool
	HTTPAddr        string
	ShutdownTimeout time.Duration
	DBPath          string
	RegistryPath    string
	Positions       int
	Robot           SerialConfig
	Sensor          SerialConfig
	Relocation      relocation.Config
	Actuator        actuator.Config
	Telemetry       telemetry.Config
}

// Farm owns the store, the serial links and every subsystem.
type Farm struct {
	cfg        Config
	store      storage.Store
	robot      *link.Link
	sensor     *link.Link
	registry   *registry.Registry
	subsystems []namedSubsystem
	router     *mux.Router
	log        log.Logger
}

type namedSubsystem struct {
	name string
	controller.Subsystem
}

// New opens the store and the links and sets every subsystem up. Nothing
// runs until Run is called.
func New(cfg Config) (*Farm, error) {
	f := &Farm{cfg: cfg, router: mux.NewRouter(), log: log.WithName("farm")}
	ok := false
	defer func() {
		if !ok {
			f.close()
		}
	}()

	store, err := storage.NewBolt(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	f.store = store
	c := controller.New(store)

	if f.robot, err = openLink(cfg.DevMode, cfg.Robot, devRobot); err != nil {
		return nil, fmt.Errorf("robot link: %w", err)
	}
	if f.sensor, err = openLink(cfg.DevMode, cfg.Sensor, nil); err != nil {
		return nil, fmt.Errorf("sensor link: %w", err)
	}
	driver, err := actuator.NewDriver(cfg.DevMode, cfg.Actuator)
	if err != nil {
		return nil, fmt.Errorf("actuator driver: %w", err)
	}

	f.registry = registry.New(cfg.RegistryPath, cfg.Positions)
	f.subsystems = []namedSubsystem{
		{"registry", f.registry},
		{"relocation", relocation.New(c, cfg.Relocation, f.robot, f.registry)},
		{"actuator", actuator.New(c, cfg.Actuator, driver)},
		{"telemetry", telemetry.New(c, cfg.Telemetry, f.sensor)},
	}
	for _, s := range f.subsystems {
		if err := s.Setup(); err != nil {
			return nil, fmt.Errorf("setup %s: %w", s.name, err)
		}
		s.LoadAPI(f.router)
	}
	f.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	ok = true
	return f, nil
}

// devRobot acknowledges every command immediately.
func devRobot(p *link.FakePort) {
	p.OnWrite = func([]byte) { p.Feed("Success\n") }
}

func openLink(devMode bool, cfg SerialConfig, dev func(*link.FakePort)) (*link.Link, error) {
	if !devMode {
		return link.Open(cfg.Device, cfg.Baud)
	}
	p := link.NewFakePort()
	if dev != nil {
		dev(p)
	}
	return link.New(cfg.Device, p), nil
}

// Handler is the farm's HTTP API.
func (f *Farm) Handler() http.Handler {
	return f.router
}

// Run starts every subsystem and serves HTTP until ctx is done.
func (f *Farm) Run(ctx context.Context) error {
	for _, s := range f.subsystems {
		s.Start(ctx)
	}
	defer f.stop()

	srv := &http.Server{
		Addr:              f.cfg.HTTPAddr,
		Handler:           f.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		f.log.Info("Serving API", "addr", f.cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		f.log.Warn("sd_notify ready failed", "err", err)
	} else if sent {
		f.log.Debug("Notified systemd")
	}
	return g.Wait()
}

func (f *Farm) stop() {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	for i := len(f.subsystems) - 1; i >= 0; i-- {
		f.subsystems[i].Stop()
	}
	f.close()
	f.log.Info("Farm stopped")
}

func (f *Farm) close() {
	for _, l := range []*link.Link{f.robot, f.sensor} {
		if l != nil {
			_ = l.Close()
		}
	}
	if f.store != nil {
		if err := f.store.Close(); err != nil {
			f.log.Error(err, "Failed to close store")
		}
	}
}
