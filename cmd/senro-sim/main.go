// Command senro-sim builds a small network with the planner and runs trains on it.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"
	"nyiyui.ca/hato/senro/config"
	"nyiyui.ca/hato/senro/geom"
	"nyiyui.ca/hato/senro/graph"
	"nyiyui.ca/hato/senro/kujo"
	"nyiyui.ca/hato/senro/rail"
	"nyiyui.ca/hato/senro/rail/plan"
	"nyiyui.ca/hato/senro/train"
)

func main() {
	defer zap.S().Sync()
	level := zap.LevelFlag("log-level", zap.DebugLevel, "set log level")
	configPath := flag.String("config", "", "path to config json (defaults are used if empty)")
	ticks := flag.Int("ticks", 600, "number of ticks to simulate")
	tick := flag.Duration("tick", 50*time.Millisecond, "simulated time per tick")
	realtime := flag.Bool("realtime", false, "sleep for each tick")
	flag.Parse()
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(*level)
	dev, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(dev)

	conf := config.Default()
	if *configPath != "" {
		conf, err = config.Load(*configPath)
		if err != nil {
			zap.S().Fatalf("load config: %s", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	n, err := rail.NewNetwork(conf.Rail)
	if err != nil {
		zap.S().Fatalf("network: %s", err)
	}
	defer n.Close()

	follower := graph.NewFollower(n.Snapshot(), n.Changes)
	go follower.Run(ctx)

	var kujoServer *kujo.Server
	if conf.Kujo.Addr != "" {
		zap.S().Infof("starting kujo on %s…", conf.Kujo.Addr)
		kujoServer = kujo.NewServer(n.Snapshot(), n.Changes, conf.Kujo.AllowedOrigins)
		defer kujoServer.Close()
		go kujoServer.Run(ctx)
		srv := &http.Server{Addr: conf.Kujo.Addr, Handler: kujoServer}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zap.S().Errorw("kujo stopped", "err", err)
			}
		}()
		defer srv.Close()
	}

	store, err := train.OpenStore(conf.Train.CalibrationDB)
	if err != nil {
		zap.S().Fatalf("%s", err)
	}
	defer store.Close()
	for _, cal := range conf.Train.Calibration {
		if _, err := store.Add(cal.Form, cal.Points...); err != nil {
			zap.S().Fatalf("%s", err)
		}
	}

	routes := train.NewRouteSelector(train.NewRandomSelector(conf.Train.Seed))
	engine := train.NewEngine(n, routes)
	engine.Spacing = conf.Train.Spacing
	if err := store.Apply(engine); err != nil {
		zap.S().Fatalf("%s", err)
	}

	updated := follower.Updated()
	built, err := build(n, plan.New(conf.Plan, n, engine))
	if err != nil {
		zap.S().Fatalf("build: %s", err)
	}
	if _, ok := n.Flush(); ok {
		select {
		case <-updated:
		case <-time.After(time.Second):
			zap.S().Warnf("graph not rebuilt in time, routing on a possibly stale graph")
		}
	}
	zap.S().Infow("built", "rails", n.RailIDs(), "intersections", n.IntersectionIDs(), "stations", n.StationIDs())

	t, err := engine.Place(built.first, geom.V(10, 0, 0), geom.V(1, 0, 0))
	if err != nil {
		zap.S().Fatalf("place: %s", err)
	}
	if len(conf.Train.Calibration) > 0 {
		t.Form = conf.Train.Calibration[0].Form
		cal, ok, err := store.Get(t.Form)
		if err != nil {
			zap.S().Fatalf("%s", err)
		}
		zap.S().Infow("calibrated formation", "form", t.Form, "found", ok, "coeffs", cal.Relation.Coeffs)
	}
	if err := engine.SetTargetSpeed(t.ID, conf.Train.Speed); err != nil {
		zap.S().Warnw("target speed", "train", t.ID, "err", err)
		t.Speed = conf.Train.Speed
	}
	route(follower, routes, t, built.station)

	for i := 0; i < *ticks; i++ {
		if ctx.Err() != nil {
			break
		}
		engine.Tick(*tick)
		n.Flush()
		if kujoServer != nil {
			kujoServer.PublishTrains(engine.Trains())
		}
		if i%20 == 0 {
			for _, t := range engine.Trains() {
				zap.S().Infow("tick", "i", i, "train", t.String())
			}
		}
		for _, id := range n.StationIDs() {
			st, _ := n.Station(id)
			for _, t := range engine.AtStation(st) {
				zap.S().Debugw("at station", "i", i, "station", st.Name, "train", t.ID)
			}
		}
		if *realtime {
			time.Sleep(*tick)
		}
	}

	if kujoServer != nil && ctx.Err() == nil {
		zap.S().Infof("simulation done; serving kujo until interrupted")
		<-ctx.Done()
	}
}

func route(f *graph.Follower, routes *train.RouteSelector, t *train.Train, to rail.StationID) {
	g, seq := f.Graph()
	p, err := g.PathToStation(graph.Position{Rail: t.Rail, T: t.T, Forward: t.Forward}, to)
	if err != nil {
		zap.S().Warnw("no route", "train", t.ID, "to", to, "seq", seq, "err", err)
		return
	}
	zap.S().Infow("routing", "train", t.ID, "steps", p.Steps, "length", p.Length)
	routes.SetRoute(t.ID, p.Rails())
}

type builtRails struct {
	first   rail.RailID
	branch  rail.RailID
	station rail.StationID
}

// build lays a main line and a branch off its first rail, with a station on the branch.
func build(n *rail.Network, p *plan.Planner) (builtRails, error) {
	var b builtRails
	do := func(in plan.Input) (plan.Result, error) {
		res, err := p.Update(in)
		if err != nil {
			return res, err
		}
		zap.S().Debugw("planner", "outcome", res.Outcome.String(), "status", p.Status().String(), "planner", p.String())
		return res, nil
	}
	mainLine := []plan.Input{
		{Cursor: geom.V(0, 0, 0), Confirm: true},
		{Cursor: geom.V(20, 0, 0), Confirm: true},
		{Cursor: geom.V(80, 0, 0), Confirm: true},
		{Cursor: geom.V(150, 0, 30), Confirm: true},
		{Cancel: true},
	}
	for _, in := range mainLine {
		res, err := do(in)
		if err != nil {
			return b, err
		}
		if res.Outcome == plan.Committed && b.first == 0 {
			b.first = res.Rail
		}
	}
	if b.first == 0 {
		return b, errors.New("main line not built")
	}

	hit := &plan.RailHit{Rail: b.first, Pos: geom.V(40, 0, 0)}
	branch := []plan.Input{
		{Cursor: hit.Pos, Hit: hit, Flip: true, Confirm: true},
		{Cursor: geom.V(100, 0, -30), Confirm: true},
		{Cancel: true},
	}
	for _, in := range branch {
		res, err := do(in)
		if err != nil {
			return b, err
		}
		if res.Outcome == plan.Committed {
			b.branch = res.Rail
		}
	}
	if b.branch == 0 {
		return b, errors.New("branch not built")
	}
	var err error
	b.station, err = n.AddStation(b.branch, "branch", geom.V(90, 0, -20))
	if err != nil {
		return b, err
	}
	return b, nil
}
