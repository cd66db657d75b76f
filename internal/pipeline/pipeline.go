// Package pipeline turns inbound guest events into storage-safe records. Every event
// passes the identity check, the do-not-track short-circuit, IP processing, the
// consent gate and finally redaction, assembly and persistence, stopping at the first
// stage that drops it.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cbc-agent/analytics-ingest/internal/observability"
	"github.com/cbc-agent/analytics-ingest/internal/privacy"
	"github.com/cbc-agent/analytics-ingest/models"
	"github.com/cbc-agent/analytics-ingest/services"
	"github.com/cbc-agent/analytics-ingest/utils"
)

// Guest id keys looked up in webhook payloads
var webhookGuestKeys = []string{"guest_pseudonymous_id", "guest_id"}

// Pipeline processes events. It holds no per-request state and is safe for
// concurrent use.
type Pipeline struct {
	cfg        Config
	anonymizer IPAnonymizer
	redactor   PayloadRedactor
	retention  RetentionClassifier
	store      EventStore
	geo        GeoLocator
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// Option customizes a Pipeline
type Option func(*Pipeline)

// WithGeoLocator enables best-effort geo enrichment
func WithGeoLocator(geo GeoLocator) Option {
	return func(p *Pipeline) {
		p.geo = geo
	}
}

// WithMetrics records outcomes and persistence latency
func WithMetrics(m *observability.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// New creates a pipeline
func New(
	cfg Config,
	anonymizer IPAnonymizer,
	redactor PayloadRedactor,
	retention RetentionClassifier,
	store EventStore,
	logger *zap.Logger,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		cfg:        cfg,
		anonymizer: anonymizer,
		redactor:   redactor,
		retention:  retention,
		store:      store,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs req through the pipeline. The error is non-nil only for persistence
// failures, which are retryable downstream errors.
func (p *Pipeline) Process(ctx context.Context, req Request) (Outcome, error) {
	env := req.Envelope
	log := observability.WithRequest(ctx, p.logger)

	// Step 1: identity check
	if out, ok := p.checkIdentity(env); !ok {
		log.Info("event rejected",
			zap.String("reason", string(out.Reason)),
			zap.Error(out.Err))
		return out, nil
	}
	ts, _ := env.Time()

	log = log.With(
		zap.String("event_type", env.EventType),
		zap.String("guest_id", env.GuestID))

	// Step 2: do-not-track
	if req.DNT {
		log.Info("respecting do-not-track, event not stored")
		return p.skip(ReasonDNT), nil
	}

	// Step 3: IP processing
	address := req.ClientIP
	if env.IPRaw != nil && *env.IPRaw != "" {
		address = *env.IPRaw
	}
	ipData, rawIP, geo := p.processAddress(ctx, address, log)

	// Step 4: consent gate
	if !privacy.IsAnalyticsConsentGiven(env.ConsentFlags) {
		log.Info("analytics consent not given, event not stored")
		return p.skip(ReasonNoConsent), nil
	}

	// Step 5: redaction and assembly
	payload, err := p.redact(env.EventType, env.Payload)
	if err != nil {
		out := p.reject(ReasonInvalidPayload, err)
		log.Info("event rejected", zap.String("reason", string(out.Reason)), zap.Error(err))
		return out, nil
	}

	device := env.Device
	rec := p.assemble(env.EventType, ts, payload)
	rec.SessionID = env.SessionID
	rec.GuestID = env.GuestID
	rec.SchemaVersion = env.SchemaVersion
	rec.AppVersion = env.AppVersion
	rec.Device = &device
	rec.IPData = ipData
	rec.RawIP = rawIP
	rec.Geo = geo

	if err := p.persist(ctx, rec); err != nil {
		log.Error("failed to store event", zap.Error(err))
		return Outcome{}, err
	}

	log.Info("event ingested", zap.String("event_id", rec.ID.String()))
	p.metrics.ObserveIngest(string(KindStored), "")
	return Outcome{Kind: KindStored, Record: rec}, nil
}

// ProcessWebhook validates, redacts and stores an authenticated webhook delivery under
// the event type webhook_<type>. Consent and do-not-track do not apply: the assistant
// backend is the source.
func (p *Pipeline) ProcessWebhook(ctx context.Context, req WebhookRequest) (Outcome, error) {
	eventType := req.Type.EventType()
	log := observability.WithRequest(ctx, p.logger).With(zap.String("event_type", eventType))

	if _, err := models.DecodeWebhookPayload(req.Type, req.Payload); err != nil {
		log.Info("webhook rejected", zap.Error(err))
		return p.reject(ReasonInvalidPayload, err), nil
	}

	tree, err := privacy.FromJSON(req.Payload)
	if err != nil {
		log.Info("webhook rejected", zap.Error(err))
		return p.reject(ReasonInvalidPayload, err), nil
	}
	redacted := p.redactor.RedactPayload(tree)
	payload, err := privacy.MarshalNode(redacted)
	if err != nil {
		return Outcome{}, services.WrapInternal("failed to encode redacted payload", err)
	}

	ts := req.Timestamp
	if ts.IsZero() {
		ts = p.now()
	}
	rec := p.assemble(eventType, ts.UTC(), payload)
	rec.SchemaVersion = models.DefaultSchemaVersion
	rec.GuestID = webhookGuestID(redacted)

	if err := p.persist(ctx, rec); err != nil {
		log.Error("failed to store webhook", zap.Error(err))
		return Outcome{}, err
	}

	log.Info("webhook processed", zap.String("event_id", rec.ID.String()))
	p.metrics.ObserveIngest(string(KindStored), "")
	return Outcome{Kind: KindStored, Record: rec}, nil
}

func (p *Pipeline) checkIdentity(env *models.EventEnvelope) (Outcome, bool) {
	if env == nil {
		return p.reject(ReasonInvalidEnvelope, errors.New("missing envelope")), false
	}
	if env.AppID == "" || env.AppID != p.cfg.SourceApp {
		return p.reject(ReasonAppIDMismatch, services.ErrAppIDMismatch), false
	}
	if err := utils.ValidateStruct(env); err != nil {
		return p.reject(ReasonInvalidEnvelope, err), false
	}
	if _, err := env.Time(); err != nil {
		return p.reject(ReasonInvalidTimestamp, err), false
	}
	return Outcome{}, true
}

// processAddress anonymizes address unless raw-IP mode is on. Geo enrichment runs in
// both modes and never fails the event.
func (p *Pipeline) processAddress(ctx context.Context, address string, log *zap.Logger) (*privacy.IPAnonymization, *string, *models.GeoInfo) {
	if address == "" {
		return nil, nil, nil
	}

	var (
		ipData *privacy.IPAnonymization
		rawIP  *string
	)
	if p.cfg.StoreRawIP {
		raw := address
		rawIP = &raw
	} else {
		anon := p.anonymizer.Anonymize(address)
		ipData = &anon
		if !anon.Valid {
			// Unparseable addresses carry no location either
			return ipData, nil, nil
		}
	}

	return ipData, rawIP, p.lookupGeo(ctx, address, log)
}

func (p *Pipeline) lookupGeo(ctx context.Context, address string, log *zap.Logger) *models.GeoInfo {
	if p.geo == nil {
		return nil
	}

	if p.cfg.GeoTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.GeoTimeout)
		defer cancel()
	}

	info, err := p.geo.Lookup(ctx, address)
	if err != nil {
		result := observability.ResultFailure
		if errors.Is(err, context.DeadlineExceeded) {
			result = observability.ResultTimeout
		}
		p.metrics.ObserveGeoLookup(result)
		log.Debug("geo lookup failed, continuing without location", zap.Error(err))
		return nil
	}
	p.metrics.ObserveGeoLookup(observability.ResultSuccess)
	if info.IsEmpty() {
		return nil
	}
	return info
}

// redact validates raw against its event type and returns the redacted JSON
func (p *Pipeline) redact(eventType string, raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if _, err := models.DecodePayload(eventType, raw); err != nil {
		return nil, err
	}
	tree, err := privacy.FromJSON(raw)
	if err != nil {
		return nil, err
	}
	return privacy.MarshalNode(p.redactor.RedactPayload(tree))
}

func (p *Pipeline) assemble(eventType string, ts time.Time, payload json.RawMessage) *models.StorageRecord {
	receivedAt := p.now().UTC()
	days := p.retention.Days(eventType)
	return &models.StorageRecord{
		ID:            uuid.New(),
		EventType:     eventType,
		Timestamp:     ts,
		Payload:       payload,
		RetentionDays: days,
		ExpiresAt:     receivedAt.AddDate(0, 0, days),
		ReceivedAt:    receivedAt,
	}
}

// persist hands rec to the store under the persistence timeout. A cancelled request
// never reaches the store.
func (p *Pipeline) persist(ctx context.Context, rec *models.StorageRecord) error {
	if err := ctx.Err(); err != nil {
		return services.WrapDownstream("request cancelled before storage", err)
	}

	if p.cfg.PersistTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.PersistTimeout)
		defer cancel()
	}

	start := p.now()
	err := p.store.Insert(ctx, rec)
	elapsed := p.now().Sub(start)

	switch {
	case err == nil:
		p.metrics.ObservePersist(observability.ResultSuccess, elapsed)
		return nil
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		p.metrics.ObservePersist(observability.ResultTimeout, elapsed)
		return services.NewDomainError(services.ErrorTypeDownstream, services.ErrStorageTimeout.Message, err)
	default:
		p.metrics.ObservePersist(observability.ResultFailure, elapsed)
		return services.NewDomainError(services.ErrorTypeDownstream, services.ErrStorageUnavailable.Message, err)
	}
}

func (p *Pipeline) skip(reason Reason) Outcome {
	p.metrics.ObserveIngest(string(KindSkipped), string(reason))
	return Outcome{Kind: KindSkipped, Reason: reason}
}

func (p *Pipeline) reject(reason Reason, err error) Outcome {
	p.metrics.ObserveIngest(string(KindRejected), string(reason))
	return Outcome{Kind: KindRejected, Reason: reason, Err: err}
}

func webhookGuestID(payload privacy.Node) string {
	m, ok := payload.(privacy.Mapping)
	if !ok {
		return ""
	}
	for _, key := range webhookGuestKeys {
		if s, ok := m[key].(privacy.String); ok {
			return string(s)
		}
	}
	return ""
}
