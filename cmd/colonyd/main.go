package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/NeruoDissident/FracturedCity/internal/persistence/indexdb"
	ticklog "github.com/NeruoDissident/FracturedCity/internal/persistence/log"
	"github.com/NeruoDissident/FracturedCity/internal/persistence/snapshot"
	"github.com/NeruoDissident/FracturedCity/internal/protocol"
	"github.com/NeruoDissident/FracturedCity/internal/sim/catalogs"
	"github.com/NeruoDissident/FracturedCity/internal/sim/jobs"
	"github.com/NeruoDissident/FracturedCity/internal/sim/tuning"
	"github.com/NeruoDissident/FracturedCity/internal/sim/world"
	"github.com/NeruoDissident/FracturedCity/internal/sim/world/kernel/model"
	"github.com/NeruoDissident/FracturedCity/internal/transport/ws"
)

func main() {
	var (
		addr      = flag.String("addr", ":8080", "observer websocket listen address")
		configDir = flag.String("config", "configs", "catalog and tuning directory")
		dataDir   = flag.String("data", "data", "snapshot, log and index directory")
		colonyID  = flag.String("colony", "FC-1", "colony identifier on the observer stream")
		maxTicks  = flag.Uint64("ticks", 0, "stop after this many ticks (0 = run until signalled)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[colonyd] ", log.LstdFlags|log.Lmsgprefix)

	if err := run(logger, *addr, *configDir, *dataDir, *colonyID, *maxTicks); err != nil {
		logger.Fatalf("fatal: %v", err)
	}
}

func run(logger *log.Logger, addr, configDir, dataDir, colonyID string, maxTicks uint64) error {
	cfg, err := tuning.Load(filepath.Join(configDir, "tuning.yaml"))
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		logger.Printf("no tuning.yaml, using defaults")
		cfg = tuning.Defaults()
	}
	cats, err := catalogs.Load(configDir)
	if err != nil {
		return fmt.Errorf("catalogs: %w", err)
	}
	logger.Printf("catalogs loaded: %d resources, %d recipes, %d nodes",
		len(cats.Resources.Defs), len(cats.Recipes.ByID), len(cats.Nodes.Defs))

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}
	idx, err := indexdb.Open(filepath.Join(dataDir, "index.db"))
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}
	defer idx.Close()

	w := world.New(cfg, cats, world.GridPathfinder{})

	if ref, ok, err := idx.LatestSnapshot(); err != nil {
		return err
	} else if ok {
		hdr, state, err := snapshot.Read(ref.Path)
		if err != nil {
			return fmt.Errorf("snapshot %s: %w", ref.Path, err)
		}
		if err := w.ImportSnapshot(state); err != nil {
			return err
		}
		if got := w.StateDigest(); got != hdr.Digest {
			return fmt.Errorf("snapshot digest mismatch at tick %d: %s != %s", hdr.Tick, got, hdr.Digest)
		}
		logger.Printf("restored tick %d from %s", hdr.Tick, ref.Path)
	} else {
		seedColony(w)
		logger.Printf("seeded new colony")
	}

	tlog, err := ticklog.NewWriter(filepath.Join(dataDir, fmt.Sprintf("ticks-%d.jsonl.zst", w.Tick())))
	if err != nil {
		return err
	}
	defer tlog.Close()

	hub := ws.NewHub(colonyID, cfg.TickRateHz, logger)
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Printf("observer stream on ws://%s/ws", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("http: %v", err)
		}
	}()
	defer srv.Close()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	interval := time.Second / time.Duration(cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	start := w.Tick()
	for {
		select {
		case <-stop:
			logger.Printf("signalled, saving at tick %d", w.Tick())
			return saveSnapshot(w, idx, dataDir, logger)
		case <-ticker.C:
			w.Step()
			digest := w.StateDigest()
			stats := w.JobStats()

			if err := tlog.Append(ticklog.Entry{
				Tick:   w.Tick(),
				Digest: digest,
				Stats:  stats,
				Events: w.TakeEvents(),
			}); err != nil {
				return err
			}
			idx.RecordJobStats(w.Tick(), stats)

			hub.PublishTick(
				protocol.TickSummaryMsg{
					Type:   protocol.TypeTickSummary,
					Tick:   w.Tick(),
					Digest: digest,
					Jobs:   stats,
					Agents: len(w.Agents()),
				},
				protocol.JobListMsg{Type: protocol.TypeJobList, Tick: w.Tick(), Jobs: w.BlockedJobs()},
			)

			if cfg.SnapshotEveryTicks > 0 && w.Tick()%uint64(cfg.SnapshotEveryTicks) == 0 {
				if err := saveSnapshot(w, idx, dataDir, logger); err != nil {
					return err
				}
			}
			if maxTicks > 0 && w.Tick()-start >= maxTicks {
				logger.Printf("tick budget reached at %d", w.Tick())
				return saveSnapshot(w, idx, dataDir, logger)
			}
		}
	}
}

func saveSnapshot(w *world.World, idx *indexdb.DB, dataDir string, logger *log.Logger) error {
	path := snapshot.Filename(dataDir, w.Tick())
	digest := w.StateDigest()
	if err := snapshot.Write(path, w.Tick(), digest, w.ExportSnapshot()); err != nil {
		return fmt.Errorf("snapshot write: %w", err)
	}
	idx.RecordSnapshot(w.Tick(), path, digest)
	logger.Printf("snapshot tick %d -> %s", w.Tick(), path)
	return nil
}

// seedColony lays out a small starting settlement: a stockpile, three
// colonists, nearby resource nodes, a wreck and some wildlife.
func seedColony(w *world.World) {
	var tiles []jobs.Vec3i
	for x := 0; x < 3; x++ {
		for y := 0; y < 2; y++ {
			tiles = append(tiles, jobs.Vec3i{X: x, Y: y})
		}
	}
	if _, err := w.Store.CreateZone("main stockpile", tiles); err != nil {
		return
	}

	w.AddAgent("Mara", model.Vec3i{X: 4, Y: 1})
	w.AddAgent("Okoye", model.Vec3i{X: 4, Y: 2})
	w.AddAgent("Finch", model.Vec3i{X: 5, Y: 1})

	if _, err := w.SpawnNode("WOOD_PILE", model.Vec3i{X: 8, Y: 2}); err == nil {
		_ = w.DesignateHarvest(model.Vec3i{X: 8, Y: 2})
	}
	if _, err := w.SpawnNode("SCRAP_HEAP", model.Vec3i{X: 9, Y: 5}); err == nil {
		_ = w.DesignateHarvest(model.Vec3i{X: 9, Y: 5})
	}
	if _, err := w.SpawnNode("BERRY_BUSH", model.Vec3i{X: 2, Y: 7}); err == nil {
		_ = w.DesignateHarvest(model.Vec3i{X: 2, Y: 7})
	}
	if _, err := w.PlaceWreck("WRECKED_CAR", model.Vec3i{X: 12, Y: 3}); err == nil {
		_ = w.DesignateSalvage(model.Vec3i{X: 12, Y: 3})
	}
	_, _ = w.SpawnAnimal("RAT", model.Vec3i{X: 15, Y: 8})
}
