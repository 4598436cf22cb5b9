// Package command implements the msig command line: configuration management
// and the multisig lifecycle commands.
package command

import (
	"crypto"
	"crypto/ed25519"
	"io"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/solfarm/multisig-cli/pkg/app"
	"github.com/solfarm/multisig-cli/pkg/lock/file"
	"github.com/solfarm/multisig-cli/pkg/msig/config"
	"github.com/solfarm/multisig-cli/pkg/msig/request"
	"github.com/solfarm/multisig-cli/pkg/msig/signer"
	"github.com/solfarm/multisig-cli/pkg/rate"
	"github.com/solfarm/multisig-cli/pkg/solana"
)

// ClientFactory returns the RPC client for an endpoint.
type ClientFactory func(rpcURL string, log *logrus.Entry) solana.Client

// SignerResolver loads the signer named by a keypair specifier.
type SignerResolver func(specifier string) (crypto.Signer, error)

type Option func(*Handler)

// WithClientFactory replaces the JSON-RPC client used to reach the cluster.
func WithClientFactory(f ClientFactory) Option {
	return func(h *Handler) {
		h.newClient = f
	}
}

func WithSignerResolver(r SignerResolver) Option {
	return func(h *Handler) {
		if r != nil {
			h.resolveSigner = r
		}
	}
}

// Handler runs commands for a single invocation. Settings, the logger and
// the configuration store are set up from the parsed flags before the
// command runs.
type Handler struct {
	stdout io.Writer
	stderr io.Writer

	newClient     ClientFactory
	resolveSigner SignerResolver

	settings app.Config
	log      *app.Logger
	cmdLog   *logrus.Entry
	store    *config.Store
}

func NewHandler(stdout, stderr io.Writer, opts ...Option) *Handler {
	h := &Handler{
		stdout:        stdout,
		stderr:        stderr,
		resolveSigner: signer.Resolve,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// setup resolves the process settings from flags and environment.
func (h *Handler) setup(cmd *cobra.Command) error {
	v := app.NewViper()
	if err := app.BindFlags(v, cmd.Flags()); err != nil {
		return err
	}

	settings, err := app.LoadConfig(v)
	if err != nil {
		return err
	}

	log, err := app.NewLogger(settings, h.stderr)
	if err != nil {
		return err
	}

	h.settings = settings
	h.log = log
	h.cmdLog = log.Component("msig/command").WithField("command", cmd.CommandPath())
	h.store = config.NewStore(settings.ConfigPath, file.NewLockManager(0), log.Component("msig/config"))
	h.store.SetLockTimeout(settings.LockTimeout)
	return nil
}

func (h *Handler) close() {
	if h.log != nil {
		h.log.Close()
	}
}

// applyDocument applies the logging settings stored in the configuration
// file. Flags and environment take precedence.
func (h *Handler) applyDocument(c *config.Configuration) {
	if c.DebugLog {
		h.log.EnableDebug()
	}

	if h.settings.LogFile != "" || c.LogFile == "" {
		return
	}

	path := c.LogFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(filepath.Dir(h.store.Path()), path)
	}
	if err := h.log.OpenFile(path); err != nil {
		h.cmdLog.WithError(err).Warn("failed to open log file, continuing without it")
	}
}

// load reads the configuration for commands that do not modify it.
func (h *Handler) load() (*config.Configuration, error) {
	c, err := h.store.Load()
	if err != nil {
		return nil, err
	}

	h.applyDocument(c)
	return c, nil
}

func (h *Handler) payer(c *config.Configuration) (crypto.Signer, ed25519.PublicKey, error) {
	specifier := h.settings.Keypair
	if specifier == "" {
		specifier = c.KeyPath
	}

	s, err := h.resolveSigner(specifier)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to load signer")
	}

	pub, err := signer.PublicKey(s)
	if err != nil {
		return nil, nil, err
	}
	return s, pub, nil
}

// requestBuilder returns a builder for the configured program, paid for and
// proposed by the configured signer.
func (h *Handler) requestBuilder(c *config.Configuration) (*request.RequestBuilder, ed25519.PublicKey, error) {
	program, err := c.Multisig.Program()
	if err != nil {
		return nil, nil, err
	}

	payer, payerKey, err := h.payer(c)
	if err != nil {
		return nil, nil, err
	}

	commitment, err := h.settings.ParseCommitment()
	if err != nil {
		return nil, nil, err
	}

	opts := []request.Option{
		request.WithCommitment(commitment),
		request.WithConfirmTimeout(h.settings.ConfirmTimeout),
		request.WithComputeUnitPrice(h.settings.ComputeUnitPrice),
		request.WithComputeUnitLimit(h.settings.ComputeUnitLimit),
		request.WithMemo(h.settings.Memo),
		request.WithLogger(h.log.Component("msig/request")),
	}

	if h.newClient == nil && h.settings.RPCRateLimit == 0 {
		return request.New(program, c.RPCURL, payer, opts...), payerKey, nil
	}

	newClient := h.newClient
	if newClient == nil {
		newClient = solana.New
	}

	client := rate.NewLimitedClient(newClient(c.RPCURL, h.log.Component("solana/client")), h.settings.RPCRateLimit)
	return request.NewWithClient(program, client, payer, opts...), payerKey, nil
}
