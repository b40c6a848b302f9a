package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/marabu/node/app/services/node/handlers"
	"github.com/marabu/node/foundation/blockchain/database"
	"github.com/marabu/node/foundation/blockchain/database/storage/disk"
	"github.com/marabu/node/foundation/blockchain/database/storage/level"
	"github.com/marabu/node/foundation/blockchain/database/storage/memory"
	"github.com/marabu/node/foundation/blockchain/genesis"
	"github.com/marabu/node/foundation/blockchain/p2p"
	"github.com/marabu/node/foundation/blockchain/peer"
	"github.com/marabu/node/foundation/blockchain/state"
	"github.com/marabu/node/foundation/blockchain/worker"
	"github.com/marabu/node/foundation/events"
	"github.com/marabu/node/foundation/logger"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("NODE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	// This is all the configuration for the application and the default values.
	// Configuration values will be passed through the application as individual
	// values.
	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
			Origins         []string      `conf:"default:*"`
		}
		P2P struct {
			Host        string        `conf:"default:0.0.0.0:18018"`
			Agent       string        `conf:"default:Marabu-Go Node 0.9"`
			DialTimeout time.Duration `conf:"default:5s"`
			IdleTimeout time.Duration `conf:"default:3s"`
			RateWindow  time.Duration `conf:"default:250ms"`
			RateLimit   int           `conf:"default:100"`
			MaxBuffer   int           `conf:"default:1000000"`
			MaxErrors   int           `conf:"default:50"`
			MaxOutbound int           `conf:"default:8"`
		}
		State struct {
			DBType        string        `conf:"default:bolt"`
			DBPath        string        `conf:"default:zblock/objects.db"`
			PeersFile     string        `conf:"default:zblock/peers.json"`
			KnownPeers    []string      `conf:"default:45.63.84.226:18018;45.63.89.228:18018;144.202.122.8:18018"`
			GenesisFile   string
			RetryInterval time.Duration `conf:"default:300ms"`
			RetryAttempts int           `conf:"default:20"`
			PeerInterval  time.Duration `conf:"default:1m"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "Marabu peer to peer node",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "NODE"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	fmt.Println(`  __  __    _    ____      _    ____  _   _  `)
	fmt.Println(` |  \/  |  / \  |  _ \    / \  | __ )| | | | `)
	fmt.Println(` | |\/| | / _ \ | |_) |  / _ \ |  _ \| | | | `)
	fmt.Println(` | |  | |/ ___ \|  _ <  / ___ \| |_) | |_| | `)
	fmt.Println(` |_|  |_/_/   \_\_| \_\/_/   \_\____/ \___/  `)
	fmt.Print("\n")

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Blockchain Support

	// The genesis parameters describe the network. A genesis file replaces
	// the Marabu network with another one.
	params := genesis.Default()
	if cfg.State.GenesisFile != "" {
		if params, err = genesis.Load(cfg.State.GenesisFile); err != nil {
			return fmt.Errorf("unable to load genesis file: %w", err)
		}
	}
	log.Infow("startup", "status", "genesis", "id", params.GenesisID(), "target", params.Target)

	// Construct the storage backend holding the objects and UTXO records.
	objects, utxos, err := openStorage(cfg.State.DBType, cfg.State.DBPath)
	if err != nil {
		return err
	}

	db, err := database.New(objects, utxos, params.Genesis)
	if err != nil {
		return fmt.Errorf("unable to open database: %w", err)
	}

	// A peer set is a collection of known nodes in the network so objects
	// can be shared. The peers learned in earlier runs are added to the
	// configured bootstrap peers.
	peerSet := peer.NewPeerSet()
	for _, host := range cfg.State.KnownPeers {
		peerSet.Add(peer.New(host))
	}

	saved, err := peer.Load(cfg.State.PeersFile)
	if err != nil {
		return fmt.Errorf("unable to load peers file: %w", err)
	}
	for _, p := range saved {
		peerSet.Add(p)
	}

	// The blockchain packages accept a function of this signature to allow the
	// application to log. For now, these raw messages are sent to any websocket
	// client that is connected into the system through the events package.
	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	// The state value represents the blockchain node and manages the chain
	// tip, the mempool and the connections.
	st, err := state.New(state.Config{
		Params:        params,
		Database:      db,
		KnownPeers:    peerSet,
		PeersFile:     cfg.State.PeersFile,
		Host:          cfg.P2P.Host,
		RetryAttempts: cfg.State.RetryAttempts,
		EvHandler:     ev,
	})
	if err != nil {
		return err
	}
	defer st.Shutdown()

	// The p2p server registers itself as the network of the state so
	// learned peers get dialed.
	srv := p2p.New(p2p.Config{
		Agent:       cfg.P2P.Agent,
		DialTimeout: cfg.P2P.DialTimeout,
		IdleTimeout: cfg.P2P.IdleTimeout,
		RateWindow:  cfg.P2P.RateWindow,
		RateLimit:   cfg.P2P.RateLimit,
		MaxBuffer:   cfg.P2P.MaxBuffer,
		MaxErrors:   cfg.P2P.MaxErrors,
		MaxOutbound: cfg.P2P.MaxOutbound,
	}, st, ev)

	if err := srv.Listen(cfg.P2P.Host); err != nil {
		return fmt.Errorf("unable to listen for peers: %w", err)
	}
	log.Infow("startup", "status", "p2p listener started", "host", srv.Addr())

	// The worker package implements the retry rounds of pending objects and
	// the peer discovery. The worker will register itself with the state.
	worker.Run(st, worker.Config{
		RetryInterval: cfg.State.RetryInterval,
		PeerInterval:  cfg.State.PeerInterval,
	}, ev)

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	// The Debug function returns a mux to listen and serve on for all the debug
	// related endpoints. This includes the standard library endpoints.

	// Construct the mux for the debug calls.
	debugMux := handlers.DebugMux(build, log, st)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing V1 public API support")

	// Construct the mux for the public API calls.
	publicMux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		State:    st,
		Evts:     evts,
		Origins:  cfg.Web.Origins,
	})

	// Construct a server to service the requests against the mux.
	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      publicMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		srv.Shutdown()
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Stop accepting and close every peer connection before the state
		// closes the storage.
		defer srv.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancelPub := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancelPub()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown public API started")
		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("could not stop public service gracefully: %w", err)
		}
	}

	return nil
}

// openStorage constructs the object and UTXO stores for the backend type.
func openStorage(dbType string, path string) (database.Storage, database.Storage, error) {
	switch dbType {
	case "memory":
		return memory.New(), memory.New(), nil

	case "bolt":
		d, err := disk.Open(path, "objects", "utxos")
		if err != nil {
			return nil, nil, fmt.Errorf("unable to open bolt db: %w", err)
		}
		return d.Bucket("objects"), d.Bucket("utxos"), nil

	case "leveldb":
		l, err := level.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to open leveldb: %w", err)
		}
		return l.Prefix("objects"), l.Prefix("utxos"), nil
	}

	return nil, nil, fmt.Errorf("unknown db type %q", dbType)
}
