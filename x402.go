// Package x402 wires the x402 payment gate, the provider registry and the
// validation recorder into ready-to-use provider and client facades.
package x402

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gagliardetto/solana-go"
	"github.com/xgov/x402/cache"
	"github.com/xgov/x402/clients"
	"github.com/xgov/x402/config"
	"github.com/xgov/x402/pipeline"
	"github.com/xgov/x402/registry"
	"github.com/xgov/x402/server"
	"github.com/xgov/x402/settlement"
	"github.com/xgov/x402/types"
	"github.com/xgov/x402/verification"
)

// Version information
const (
	Version         = "1.0.0"
	ProtocolVersion = types.X402Version1
)

// GetVersion returns version information
func GetVersion() map[string]any {
	return map[string]any{
		"library_version":  Version,
		"protocol_version": int(ProtocolVersion),
		"protocol":         types.ProtocolName,
		"supported_networks": []string{
			types.NetworkSolanaMainnet.String(),
			types.NetworkSolanaDevnet.String(),
			types.NetworkSolanaTestnet.String(),
			types.NetworkSolanaLocalnet.String(),
		},
	}
}

// Provider is a payment-gated service provider: a ledger connection, a
// verification cache, the payment gate and the HTTP routes behind it.
type Provider struct {
	cfg      *config.Config
	verifier *verification.VerificationService
	gate     *pipeline.Gate
	server   *server.Server

	closers []func() error
}

// NewProvider builds a provider from cfg. Verified payments are cached in
// Redis when cfg.RedisURL is set, in memory otherwise.
func NewProvider(ctx context.Context, cfg *config.Config, opts ...Option) (*Provider, error) {
	if cfg == nil {
		return nil, types.NewConfigError("provider configuration is required")
	}
	o := newOptions(opts)
	p := &Provider{cfg: cfg}

	ledger := o.ledger
	if ledger == nil {
		sc, err := clients.NewSolanaClient(cfg.Network, cfg.RPCURL, cfg.RPCTimeout)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, func() error { sc.Close(); return nil })
		ledger = sc
	}

	store := cache.Store(cache.NewMemoryStore())
	if cfg.RedisURL != "" {
		rs, err := cache.NewRedisStoreFromURL(ctx, cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			_ = p.Close()
			return nil, err
		}
		p.closers = append(p.closers, rs.Close)
		store = rs
	}

	verifyOpts := []verification.Option{
		verification.WithCache(cache.New(cache.WithStore(store), cache.WithTTL(cfg.CacheTTL))),
		verification.WithLogger(o.logger),
		verification.WithMetrics(o.metrics),
		verification.WithTimeout(o.timeout),
	}
	if cfg.RPCRetries > 0 {
		verifyOpts = append(verifyOpts, verification.WithRetry(cfg.RPCRetries, cfg.RPCRetryDelay))
	}
	p.verifier = verification.NewVerificationService(ledger, cfg.Recipient(), cfg.PaymentLamports, verifyOpts...)

	p.gate = pipeline.New(p.verifier, pipeline.Pricing{
		Recipient:      cfg.Recipient(),
		AmountLamports: cfg.PaymentLamports,
		AmountUSDC:     cfg.MinPaymentUSDC,
		USDCMint:       cfg.USDCMint,
		Network:        cfg.Network,
	}, pipeline.WithLogger(o.logger), pipeline.WithMetrics(o.metrics))

	p.server = server.New(p.gate, server.Info{
		AgentName:         cfg.AgentName,
		ServiceType:       cfg.ServiceType,
		ReputationProgram: cfg.ReputationProgramID,
	}, server.WithLogger(o.logger), server.WithMetrics(o.metrics), server.WithGatherer(o.gatherer))

	o.logger.Info("provider ready", map[string]any{
		"agent":     cfg.AgentName,
		"network":   cfg.Network.String(),
		"recipient": cfg.Recipient().String(),
		"lamports":  cfg.PaymentLamports,
		"cache":     storeName(cfg),
	})
	return p, nil
}

func storeName(cfg *config.Config) string {
	if cfg.RedisURL != "" {
		return "redis"
	}
	return "memory"
}

// Verify checks a payment proof against the provider's price.
func (p *Provider) Verify(ctx context.Context, proof string) (*types.VerifiedPayment, error) {
	return p.verifier.Verify(ctx, proof)
}

// Gate is the payment gate, for mounting operations on other transports.
func (p *Provider) Gate() *pipeline.Gate { return p.gate }

// Handler serves the provider's routes.
func (p *Provider) Handler() http.Handler { return p.server.Router() }

// HTTPServer returns an HTTP server listening on the configured port.
func (p *Provider) HTTPServer() *http.Server {
	return server.NewHTTPServer(p.cfg.Addr(), p.Handler())
}

// Close releases the ledger connection and the cache store.
func (p *Provider) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		errs = append(errs, p.closers[i]())
	}
	p.closers = nil
	return errors.Join(errs...)
}

// ClientConfig configures a buyer-side client.
type ClientConfig struct {
	Network   types.Network
	RPCURL    string
	ProgramID solana.PublicKey

	// Keypair signs validation records. Without one the client is read-only.
	Keypair solana.PrivateKey

	// MetadataFile optionally lists provider service types.
	MetadataFile string
}

// Client discovers providers and records evaluations of their work.
type Client struct {
	registry *registry.Registry
	recorder settlement.ValidationRecorder
	closers  []func() error
}

// NewClient builds a buyer-side client.
func NewClient(cfg ClientConfig, opts ...Option) (*Client, error) {
	o := newOptions(opts)
	c := &Client{}

	ledger, sender := o.ledger, o.sender
	if ledger == nil {
		sc, err := clients.NewSolanaClient(cfg.Network, cfg.RPCURL, o.timeout)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, func() error { sc.Close(); return nil })
		ledger = sc
	}
	if s, ok := ledger.(settlement.TransactionSender); ok && sender == nil {
		sender = s
	}

	regOpts := []registry.Option{
		registry.WithLogger(o.logger),
		registry.WithMetrics(o.metrics),
		registry.WithPolicy(o.policy),
		registry.WithStaticProfiles(o.static),
	}
	if cfg.MetadataFile != "" {
		regOpts = append(regOpts, registry.WithMetadata(registry.FileMetadata{Path: cfg.MetadataFile}))
	}
	c.registry = registry.New(ledger, cfg.ProgramID, regOpts...)

	if len(cfg.Keypair) > 0 && sender != nil {
		c.recorder = settlement.NewSolanaRecorder(sender, cfg.Keypair, cfg.ProgramID,
			settlement.WithLogger(o.logger),
			settlement.WithMetrics(o.metrics),
		)
	}
	return c, nil
}

// Registry exposes provider discovery.
func (c *Client) Registry() *registry.Registry { return c.registry }

// SelectBest returns the highest-reputation provider offering serviceType.
func (c *Client) SelectBest(ctx context.Context, serviceType string) (*types.ProviderProfile, error) {
	return c.registry.SelectBest(ctx, serviceType)
}

// RecordValidation records the outcome of a provider's work on the ledger.
func (c *Client) RecordValidation(ctx context.Context, sellerProfile solana.PublicKey, success bool) (string, error) {
	if c.recorder == nil {
		return "", types.NewConfigError("no keypair configured: client is read-only")
	}
	sig, err := c.recorder.RecordValidation(ctx, sellerProfile, success)
	if err != nil && !errors.Is(err, settlement.ErrNotConfirmed) {
		return sig, fmt.Errorf("record validation for %s: %w", sellerProfile, err)
	}
	return sig, err
}

func (c *Client) Close() error {
	var errs []error
	for _, fn := range c.closers {
		errs = append(errs, fn())
	}
	c.closers = nil
	return errors.Join(errs...)
}
