package testbed

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/coocood/freecache"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/javking07/cleanbench/conf"
)

// Server is the self-contained service under test.
type Server struct {
	HTTPServer *http.Server
	Router     *chi.Mux
	Store      *Store
	Cache      *freecache.Cache
	Logger     *zerolog.Logger
	Config     *conf.Config
}

// Bootstrap wires the server up from config: logger, scheduler width,
// cache, fixture store, router.
func Bootstrap(config *conf.Config) (*Server, error) {
	log.Info().Msg("bootstrapping benchmark target")
	s := &Server{Config: config}

	s.InitLogger()
	if workers := config.Server.Workers; workers > 0 {
		runtime.GOMAXPROCS(workers)
		s.Logger.Info().Msgf("limiting scheduler to %d workers", workers)
	}
	s.InitCache()
	if err := s.InitStore(); err != nil {
		return nil, err
	}
	s.InitServer()
	return s, nil
}

func (s *Server) InitLogger() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	level := strings.ToLower(s.Config.Logging.Level)
	if parsed, err := zerolog.ParseLevel(level); err != nil {
		// unparseable level falls back to warn
		log.Warn().Msgf("error creating logger: %s", err.Error())
		logger = logger.Level(zerolog.WarnLevel)
	} else {
		logger = logger.Level(parsed)
	}

	s.Logger = &logger
	s.Logger.Info().Msgf("initializing logger to level `%s`", level)
}

func (s *Server) InitCache() {
	cacheSize := s.Config.Cache.Size
	s.Logger.Info().Msgf("initializing cache with size of `%d` bytes", cacheSize)
	s.Cache = freecache.NewCache(cacheSize)
}

func (s *Server) InitStore() error {
	store, err := OpenStore(s.Config.Server.DatabasePath)
	if err != nil {
		return err
	}
	s.Store = store
	s.Logger.Info().Msgf("opened fixture store at %s", s.Config.Server.DatabasePath)
	return nil
}

// InitServer mounts every manifest route and builds the http server.
func (s *Server) InitServer() {
	s.Router = chi.NewRouter()

	s.Router.Use(middleware.RequestID)
	s.Router.Use(middleware.RealIP)
	s.Router.Use(middleware.Recoverer)
	// no request logging middleware: per-request log lines distort
	// latency at benchmark rates
	s.Router.Use(middleware.Timeout(60 * time.Second))

	handlers := map[string]http.HandlerFunc{
		"root":         s.Root,
		"health":       s.Health,
		"db_seed":      s.Seed,
		"simple_sleep": s.SimpleSleep,
		"simple_busy":  s.SimpleBusy,
		"simple_json":  s.SimpleJSON,
		"db_read":      s.DBRead,
		"db_write":     s.DBWrite,
		"cache_read":   s.CacheRead,
	}

	for _, e := range Manifest() {
		if e.Name == "metrics" {
			s.Router.Handle(e.Path, promhttp.Handler())
			continue
		}
		h, ok := handlers[e.Name]
		if !ok {
			log.Fatal().Msgf("no handler registered for manifest entry `%s`", e.Name)
		}
		switch e.Method {
		case http.MethodGet:
			s.Router.Get(e.Path, h)
		case http.MethodPost:
			s.Router.Post(e.Path, h)
		default:
			log.Fatal().Msgf("unsupported method %s for manifest entry `%s`", e.Method, e.Name)
		}
	}

	addr := net.JoinHostPort(s.Config.Server.Host, s.Config.Server.Port)
	s.HTTPServer = &http.Server{
		Addr:    addr,
		Handler: s.Router,
	}

	if s.Config.Server.TLS {
		cert, err := tls.LoadX509KeyPair(
			s.Config.Server.Cert,
			s.Config.Server.Key)

		if err != nil {
			log.Fatal().Msgf("Unable to load cert/key: %s", err)
		}

		cfg := &tls.Config{
			MinVersion:               tls.VersionTLS12,
			CurvePreferences:         []tls.CurveID{tls.CurveP521, tls.CurveP384, tls.CurveP256},
			PreferServerCipherSuites: true,
			CipherSuites: []uint16{
				tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
				tls.TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA,
				tls.TLS_RSA_WITH_AES_256_GCM_SHA384,
				tls.TLS_RSA_WITH_AES_256_CBC_SHA,
			},
			Certificates: []tls.Certificate{cert},
		}
		s.HTTPServer.TLSConfig = cfg
	}

	s.Logger.Info().Msgf("initialized %d routes and server on %s", len(Manifest()), addr)
}

// Run serves until SIGTERM or SIGINT, then drains in-flight requests
// and closes the store. The orchestrator relies on this exiting well
// inside its kill grace window.
func (s *Server) Run() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)

	errCh := make(chan error, 1)
	go func() {
		if s.Config.Server.TLS {
			errCh <- s.HTTPServer.ListenAndServeTLS("", "")
			return
		}
		errCh <- s.HTTPServer.ListenAndServe()
	}()
	s.Logger.Info().Msgf("serving on %s", s.HTTPServer.Addr)

	select {
	case sig := <-stop:
		s.Logger.Info().Msgf("caught sig: %+v, shutting down server", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.HTTPServer.Shutdown(ctx)
		if s.Store != nil {
			_ = s.Store.Close()
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}
