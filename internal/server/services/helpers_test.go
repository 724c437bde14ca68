package services

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/skyhaul/internal/server/auth"
	"github.com/dmitrijs2005/skyhaul/internal/server/config"
	"github.com/dmitrijs2005/skyhaul/internal/server/events"
	"github.com/dmitrijs2005/skyhaul/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/skyhaul/internal/server/tokenstore"
	"github.com/dmitrijs2005/skyhaul/internal/timex"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testStart = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.SecurityEvent
	err    error
}

func (p *recordingPublisher) PublishSecurityEvent(_ context.Context, ev events.SecurityEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) recorded() []events.SecurityEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.SecurityEvent(nil), p.events...)
}

type testEnv struct {
	db        *sql.DB
	clock     *timex.ManualClock
	users     *UserService
	store     *tokenstore.Store
	issuer    *auth.AccessIssuer
	publisher *recordingPublisher
	svc       *AuthService
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.BcryptCost = bcrypt.MinCost
	cfg.RefreshTokenValidityDuration = 30 * 24 * time.Hour
	cfg.AccessTokenValidityDuration = 15 * time.Minute
	return cfg
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, m, err := repomanager.Open(ctx, "sqlite:"+filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, m.RunMigrations(ctx, db))

	cfg := testConfig()
	clock := timex.NewManualClock(testStart)
	env := &testEnv{
		db:        db,
		clock:     clock,
		users:     NewUserService(db, m, cfg, clock),
		store:     tokenstore.New(db, m, tokenstore.WithClock(clock)),
		issuer:    auth.NewAccessIssuer([]byte(cfg.SecretKey), cfg.AccessTokenValidityDuration, clock),
		publisher: &recordingPublisher{},
	}
	env.svc = NewAuthService(env.users, env.store, env.issuer, auth.HeaderFingerprint{}, env.publisher, cfg, clock, nil)
	return env
}

// device returns a request context carrying the given device fingerprint.
func device(fp string) context.Context {
	return auth.WithRequestInfo(context.Background(), auth.RequestInfo{DeviceFingerprint: fp, UserAgent: "skyhaul-app/1.0"})
}
