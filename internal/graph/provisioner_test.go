package graph

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"graph-control-plane/backend/internal/db"
	"graph-control-plane/backend/internal/domains/domain"
	"graph-control-plane/backend/internal/errs"
	"graph-control-plane/backend/internal/security"
)

type fakeAdmin struct {
	multiDB     bool
	created     []string
	dropped     []string
	onlineAfter int // DatabaseStatus calls before reporting online
	statusCalls int
	createErr   error
	dropErr     error
}

func (f *fakeAdmin) SupportsMultiDatabase(context.Context) (bool, error) { return f.multiDB, nil }

func (f *fakeAdmin) CreateDatabaseIfNotExists(_ context.Context, name string) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, name)
	return nil
}

func (f *fakeAdmin) DatabaseStatus(_ context.Context, _ string) (string, bool, error) {
	f.statusCalls++
	if f.statusCalls > f.onlineAfter {
		return "online", true, nil
	}
	return "starting", true, nil
}

func (f *fakeAdmin) DropDatabaseIfExists(_ context.Context, name string) error {
	if f.dropErr != nil {
		return f.dropErr
	}
	f.dropped = append(f.dropped, name)
	return nil
}

func (f *fakeAdmin) Close(context.Context) error { return nil }

type memDomainStore struct {
	domains   map[string]*domain.Domain
	missFirst int // GetByID calls that return nil before the row appears
	calls     int
}

func (m *memDomainStore) GetByID(_ context.Context, _ db.DBTX, id string) (*domain.Domain, error) {
	m.calls++
	if m.calls <= m.missFirst {
		return nil, nil
	}
	return m.domains[id], nil
}

type savedCreds struct {
	uri, database, username, secretEnc string
	credVersion                        int
}

type memGraphStore struct {
	bindings map[string]*domain.DomainGraph
	creds    map[string]savedCreds
	online   map[string]bool
}

func newMemGraphStore() *memGraphStore {
	return &memGraphStore{
		bindings: map[string]*domain.DomainGraph{},
		creds:    map[string]savedCreds{},
		online:   map[string]bool{},
	}
}

func (m *memGraphStore) GetByDomainID(_ context.Context, _ db.DBTX, domainID string) (*domain.DomainGraph, error) {
	return m.bindings[domainID], nil
}

func (m *memGraphStore) SaveCredentials(_ context.Context, _ db.DBTX, domainID, uri, database, username, secretEnc string, credVersion int) error {
	m.creds[domainID] = savedCreds{uri, database, username, secretEnc, credVersion}
	return nil
}

func (m *memGraphStore) MarkOnline(_ context.Context, _ db.DBTX, domainID string) error {
	m.online[domainID] = true
	return nil
}

func testVault(t *testing.T) *security.Vault {
	t.Helper()
	v, err := security.NewVault(bytes.Repeat([]byte{0x42}, 32))
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func newTestProvisioner(t *testing.T, admin Admin, ds DomainStore, gs GraphStore) *Provisioner {
	t.Helper()
	p := NewProvisioner(admin, testVault(t), ds, gs, ProvisionerConfig{
		PublicURI:     "neo4j://public.example.com:7687",
		AdminUser:     "neo4j",
		AdminPass:     "s3cret",
		OnlineTimeout: time.Second,
	}, zap.NewNop())
	p.visibilityDelay = time.Millisecond
	p.pollInterval = time.Millisecond
	return p
}

func testDomain() *domain.Domain {
	return &domain.Domain{ID: "2825f09f-1234-5678-9abc-def012345678", Name: "chat.acme.ai"}
}

func TestProvisionMultiDatabase(t *testing.T) {
	d := testDomain()
	admin := &fakeAdmin{multiDB: true}
	ds := &memDomainStore{domains: map[string]*domain.Domain{d.ID: d}}
	gs := newMemGraphStore()
	gs.bindings[d.ID] = &domain.DomainGraph{DomainID: d.ID, ProvisionStatus: domain.StatusProvisioning}
	p := newTestProvisioner(t, admin, ds, gs)

	if err := p.Provision(context.Background(), nil, d.ID); err != nil {
		t.Fatalf("Provision: %v", err)
	}

	if len(admin.created) != 1 || admin.created[0] != "db-2825f09f-chat.acme.ai" {
		t.Errorf("created = %v", admin.created)
	}
	creds, ok := gs.creds[d.ID]
	if !ok {
		t.Fatal("credentials not saved")
	}
	if creds.database != "db-2825f09f-chat.acme.ai" || creds.username != "neo4j" || creds.credVersion != 1 {
		t.Errorf("unexpected creds: %+v", creds)
	}
	if creds.secretEnc == "s3cret" || creds.secretEnc == "" {
		t.Error("secret must be stored encrypted")
	}
	plain, err := testVault(t).Decrypt(creds.secretEnc)
	if err != nil || plain != "s3cret" {
		t.Errorf("Decrypt = %q, %v", plain, err)
	}
	if !gs.online[d.ID] {
		t.Error("binding not marked online")
	}
}

func TestProvisionCommunityFallback(t *testing.T) {
	d := testDomain()
	admin := &fakeAdmin{multiDB: false}
	ds := &memDomainStore{domains: map[string]*domain.Domain{d.ID: d}}
	gs := newMemGraphStore()
	p := newTestProvisioner(t, admin, ds, gs)

	if err := p.Provision(context.Background(), nil, d.ID); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if len(admin.created) != 0 {
		t.Errorf("no database should be created, got %v", admin.created)
	}
	if gs.creds[d.ID].database != "neo4j" {
		t.Errorf("database = %q, want neo4j", gs.creds[d.ID].database)
	}
	if !gs.online[d.ID] {
		t.Error("binding not marked online")
	}
}

func TestProvisionAlreadyOnlineIsNoop(t *testing.T) {
	d := testDomain()
	admin := &fakeAdmin{multiDB: true}
	ds := &memDomainStore{domains: map[string]*domain.Domain{d.ID: d}}
	gs := newMemGraphStore()
	gs.bindings[d.ID] = &domain.DomainGraph{DomainID: d.ID, ProvisionStatus: domain.StatusOnline}
	p := newTestProvisioner(t, admin, ds, gs)

	if err := p.Provision(context.Background(), nil, d.ID); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if len(admin.created) != 0 || len(gs.creds) != 0 {
		t.Error("already-online binding must not be touched")
	}
}

func TestProvisionWaitsForDomainVisibility(t *testing.T) {
	d := testDomain()
	admin := &fakeAdmin{multiDB: false}
	ds := &memDomainStore{domains: map[string]*domain.Domain{d.ID: d}, missFirst: 3}
	gs := newMemGraphStore()
	p := newTestProvisioner(t, admin, ds, gs)

	if err := p.Provision(context.Background(), nil, d.ID); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if ds.calls != 4 {
		t.Errorf("GetByID calls = %d, want 4", ds.calls)
	}
}

func TestProvisionDomainNeverVisible(t *testing.T) {
	admin := &fakeAdmin{multiDB: false}
	ds := &memDomainStore{domains: map[string]*domain.Domain{}, missFirst: 100}
	gs := newMemGraphStore()
	p := newTestProvisioner(t, admin, ds, gs)

	err := p.Provision(context.Background(), nil, "ghost")
	if err == nil {
		t.Fatal("expected error")
	}
	if errs.Reason(err) != "DOMAIN_ROW_NOT_VISIBLE" {
		t.Errorf("reason = %q", errs.Reason(err))
	}
	if len(gs.creds) != 0 || len(gs.online) != 0 {
		t.Error("no partial writes expected")
	}
}

func TestProvisionOnlineTimeout(t *testing.T) {
	d := testDomain()
	admin := &fakeAdmin{multiDB: true, onlineAfter: 1 << 30}
	ds := &memDomainStore{domains: map[string]*domain.Domain{d.ID: d}}
	gs := newMemGraphStore()
	p := newTestProvisioner(t, admin, ds, gs)
	p.cfg.OnlineTimeout = 5 * time.Millisecond

	err := p.Provision(context.Background(), nil, d.ID)
	if !errs.IsKind(err, errs.KindGraphTimeout) {
		t.Fatalf("expected GraphTimeout, got %v", err)
	}
	if len(gs.creds) != 0 {
		t.Error("credentials must not be saved on timeout")
	}
}

func TestProvisionCreateFailureLeavesNoCreds(t *testing.T) {
	d := testDomain()
	admin := &fakeAdmin{multiDB: true, createErr: errors.New("boom")}
	ds := &memDomainStore{domains: map[string]*domain.Domain{d.ID: d}}
	gs := newMemGraphStore()
	p := newTestProvisioner(t, admin, ds, gs)

	if err := p.Provision(context.Background(), nil, d.ID); err == nil {
		t.Fatal("expected error")
	}
	if len(gs.creds) != 0 || len(gs.online) != 0 {
		t.Error("no partial writes expected")
	}
}

func TestDropRemovesRecordedDatabase(t *testing.T) {
	admin := &fakeAdmin{}
	gs := newMemGraphStore()
	gs.bindings["d1"] = &domain.DomainGraph{DomainID: "d1", Neo4jDatabase: "db-2825f09f-chat.acme.ai"}
	p := newTestProvisioner(t, admin, &memDomainStore{}, gs)

	if err := p.Drop(context.Background(), nil, "d1"); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	if len(admin.dropped) != 1 || admin.dropped[0] != "db-2825f09f-chat.acme.ai" {
		t.Errorf("dropped = %v", admin.dropped)
	}
}

func TestDropWithoutRecordedDatabaseIsNoop(t *testing.T) {
	admin := &fakeAdmin{}
	gs := newMemGraphStore()
	p := newTestProvisioner(t, admin, &memDomainStore{}, gs)

	if err := p.Drop(context.Background(), nil, "d1"); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	gs.bindings["d2"] = &domain.DomainGraph{DomainID: "d2"}
	if err := p.Drop(context.Background(), nil, "d2"); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	if len(admin.dropped) != 0 {
		t.Errorf("dropped = %v", admin.dropped)
	}
}

func TestDropFailurePropagates(t *testing.T) {
	admin := &fakeAdmin{dropErr: errs.AdminUnavailable("DROP DATABASE failed")}
	gs := newMemGraphStore()
	gs.bindings["d1"] = &domain.DomainGraph{DomainID: "d1", Neo4jDatabase: "somedb"}
	p := newTestProvisioner(t, admin, &memDomainStore{}, gs)

	err := p.Drop(context.Background(), nil, "d1")
	if !errs.IsKind(err, errs.KindAdminUnavailable) {
		t.Fatalf("expected AdminUnavailable, got %v", err)
	}
}
