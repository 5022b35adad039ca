package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sufield/fincert/internal/bulletins"
	"github.com/sufield/fincert/internal/config"
	"github.com/sufield/fincert/internal/debug"
	"github.com/sufield/fincert/internal/feeds"
	"github.com/sufield/fincert/internal/fincert"
	"github.com/sufield/fincert/internal/identity"
	"github.com/sufield/fincert/internal/mirror"
	"github.com/sufield/fincert/internal/tlsverify"
)

// logoutTimeout bounds the logout sent by Close, which still runs after
// the run context was cancelled.
const logoutTimeout = 30 * time.Second

// Options carries what does not come from the configuration file.
type Options struct {
	// Version is reported in the User-Agent header.
	Version string

	// LogOut receives the console log; os.Stderr when nil.
	LogOut io.Writer

	// Clock replaces the wall clock of the request executor.
	Clock fincert.Clock

	// Mirror replaces the mirror built from the configuration.
	Mirror mirror.Mirror
}

// Application holds the components of one run.
type Application struct {
	Config    *config.Config
	Logger    zerolog.Logger
	RunID     string
	Client    *fincert.Client
	Feeds     *feeds.Loader
	Bulletins *bulletins.Engine

	logCloser io.Closer
}

// Bootstrap validates cfg, builds every component and logs in.
//
// Errors match config.ErrInvalidConfig, the identity errors or the fincert
// errors; see ExitCode.
func Bootstrap(ctx context.Context, cfg *config.Config, opts Options) (_ *Application, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Step 1: logger, tagged with a fresh run id
	if err := debug.Init(); err != nil {
		return nil, fmt.Errorf("%w: debug: %w", config.ErrInvalidConfig, err)
	}
	logger, logCloser, err := debug.NewLogger(debug.LogOptions{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
		Out:    opts.LogOut,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: logging: %w", config.ErrInvalidConfig, err)
	}
	runID := uuid.NewString()
	logger = logger.With().Str("run_id", runID).Logger()
	defer func() {
		if err != nil {
			logger.Error().Err(err).Msg("Startup failed")
			_ = logCloser.Close()
		}
	}()

	// Step 2: client certificate from the local store
	cert, err := identity.NewStore(cfg.TLS.CertStore).Find(cfg.TLS.ClientThumbprint)
	if err != nil {
		return nil, err
	}
	logger.Info().
		Str("thumbprint", cert.Thumbprint()).
		Str("subject", cert.Leaf().Subject.String()).
		Time("not_after", cert.Leaf().NotAfter).
		Int("chain_length", len(cert.Chain())).
		Msg("Client certificate selected")

	// Step 3: account
	creds, err := identity.ResolveCredentials(cfg.Credentials)
	if err != nil {
		return nil, err
	}

	// Step 4: server identity policy
	verifier, err := newVerifier(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Step 5: download mirror
	m := opts.Mirror
	if m == nil {
		m, err = newMirror(ctx, cfg.Mirror, logger)
		if err != nil {
			return nil, err
		}
	}

	// Step 6: session
	proxy := ""
	if cfg.Proxy.Enabled {
		proxy = cfg.Proxy.Address
	}
	userAgent := cfg.API.UserAgent
	if userAgent == "" {
		userAgent = "fincert/" + opts.Version
	}
	var faults *debug.FaultProfile
	if debug.Active.Faults {
		faults = debug.Faults
		logger.Warn().Fields(faults.Snapshot()).Msg("Fault injection enabled")
	}

	client, err := fincert.Open(ctx, fincert.Options{
		BaseURL:        cfg.API.BaseURL,
		Certificate:    cert,
		Credentials:    creds,
		Verifier:       verifier,
		Proxy:          proxy,
		PacingInterval: cfg.Retry.PacingInterval,
		Retry: fincert.RetryPolicy{
			BackoffUnit: cfg.Retry.BackoffUnit,
			WaitBudget:  cfg.Retry.WaitBudget,
		},
		RequestTimeout: cfg.Retry.RequestTimeout,
		UserAgent:      userAgent,
		Logger:         logger,
		Clock:          opts.Clock,
		Faults:         faults,
		VerboseClient:  cfg.TLS.VerboseClient || debug.Active.VerboseClient,
	})
	if err != nil {
		return nil, err
	}

	// Step 7: downloaders
	return &Application{
		Config: cfg,
		Logger: logger,
		RunID:  runID,
		Client: client,
		Feeds:  feeds.NewLoader(client, feeds.Config{Mirror: m, Logger: logger}),
		Bulletins: bulletins.NewEngine(client, bulletins.Config{
			Root:           cfg.Bulletins.Downloads,
			RequireMarker:  cfg.Bulletins.RequireMarker,
			ArchiveTargets: cfg.FeedsArchive.Targets,
			Mirror:         m,
			Logger:         logger,
		}),
		logCloser: logCloser,
	}, nil
}

// Close logs out and releases the log file. The logout gets its own
// deadline so it is still sent after an interrupt.
func (a *Application) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), logoutTimeout)
	defer cancel()

	err := a.Client.Close(ctx)
	a.Logger.Info().Msg("Run finished")
	return errors.Join(err, a.logCloser.Close())
}

func newVerifier(cfg *config.Config, logger zerolog.Logger) (*tlsverify.Verifier, error) {
	v := &tlsverify.Verifier{
		Policy: tlsverify.Policy{
			ValidateChain: cfg.TLS.ValidateChain,
			PinThumbprint: cfg.TLS.PinThumbprint,
			Thumbprint:    cfg.TLS.ServerThumbprint,
		},
		Verbose: cfg.TLS.VerboseServer || debug.Active.VerboseServer,
		Logger:  logger,
	}

	if cfg.TLS.TrustBundle != "" {
		roots, err := tlsverify.LoadTrustBundle(cfg.TLS.TrustBundle)
		if err != nil {
			return nil, fmt.Errorf("%w: tls: %w", config.ErrInvalidConfig, err)
		}
		v.Roots = roots
	}

	// IP endpoints carry no SNI; match the certificate against the host.
	u, err := url.Parse(cfg.API.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: api: %w", config.ErrInvalidConfig, err)
	}
	v.ServerName = u.Hostname()

	if !cfg.TLS.ValidateChain {
		logger.Warn().Msg("Server certificate chain is not enforced")
	}
	return v, nil
}

func newMirror(ctx context.Context, cfg config.MirrorConfig, logger zerolog.Logger) (mirror.Mirror, error) {
	if cfg.S3Bucket == "" {
		return mirror.Nop{}, nil
	}
	m, err := mirror.NewS3(ctx, mirror.S3Config{
		Bucket:       cfg.S3Bucket,
		Prefix:       cfg.S3Prefix,
		Region:       cfg.Region,
		Profile:      cfg.Profile,
		UsePathStyle: cfg.UsePathStyle,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: mirror: %w", config.ErrInvalidConfig, err)
	}
	logger.Info().Str("bucket", cfg.S3Bucket).Str("prefix", cfg.S3Prefix).Msg("Mirroring downloads to S3")
	return m, nil
}
