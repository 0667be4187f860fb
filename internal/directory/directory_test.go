package directory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/chuango-bridge/internal/account"
	"github.com/nerrad567/chuango-bridge/internal/cloud"
	"github.com/nerrad567/chuango-bridge/internal/device"
	"github.com/nerrad567/chuango-bridge/internal/infrastructure/config"
)

type fakeAuth struct {
	mu       sync.Mutex
	token    string
	forced   int
	ensures  int
	loginErr error
	zoneErr  error
}

func (f *fakeAuth) EnsureValid(_ context.Context, force bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensures++
	if f.loginErr != nil {
		return f.loginErr
	}
	if force {
		f.forced++
		f.token = fmt.Sprintf("tok-%d", f.forced+1)
	}
	return nil
}

func (f *fakeAuth) CurrentToken() (*account.Token, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &account.Token{Value: f.token}, true
}

func (f *fakeAuth) Zone(context.Context) (cloud.Zone, error) {
	if f.zoneErr != nil {
		return cloud.Zone{}, f.zoneErr
	}
	return cloud.Zone{Region: "DE", Auth: cloud.Endpoint{Domain: "am.example.test", Port: 12443}}, nil
}

// fakeLister answers per token: rejected tokens get ErrAuth.
type fakeLister struct {
	mu       sync.Mutex
	devices  []device.Device
	err      error
	rejected map[string]bool
	calls    int
	tokens   []string
}

func (f *fakeLister) SharedDevices(_ context.Context, auth cloud.Endpoint, token string) ([]device.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.tokens = append(f.tokens, token)
	if auth.Domain != "am.example.test" {
		return nil, fmt.Errorf("%w: wrong host %s", cloud.ErrConnectivity, auth.Domain)
	}
	if f.rejected[token] {
		return nil, fmt.Errorf("%w: HTTP 401", cloud.ErrAuth)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.devices, nil
}

func (f *fakeLister) set(devs ...device.Device) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.devices = devs
}

func dev(id string) device.Device {
	return device.Device{ID: id, Alias: "hub " + id}
}

func TestRefresh_PublishesChanges(t *testing.T) {
	lister := &fakeLister{devices: []device.Device{dev("A"), dev("B")}}
	d := New(lister, &fakeAuth{token: "tok-1"}, time.Hour)

	var changes []Change
	d.Subscribe(func(c Change) { changes = append(changes, c) })

	if _, err := d.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	lister.set(dev("B"), dev("C"))
	got, err := d.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	if len(got) != 2 || got["C"].ID != "C" {
		t.Errorf("Refresh() = %v, want B and C", got)
	}
	if len(changes) != 2 {
		t.Fatalf("changes = %d, want 2", len(changes))
	}
	first, second := changes[0], changes[1]
	if fmt.Sprint(first.Added) != "[A B]" || len(first.Removed) != 0 {
		t.Errorf("first change = +%v -%v, want +[A B]", first.Added, first.Removed)
	}
	if fmt.Sprint(second.Added) != "[C]" || fmt.Sprint(second.Removed) != "[A]" {
		t.Errorf("second change = +%v -%v, want +[C] -[A]", second.Added, second.Removed)
	}
	if !d.LastRefresh().After(time.Time{}) || d.LastError() != nil {
		t.Errorf("LastRefresh/LastError = %v/%v", d.LastRefresh(), d.LastError())
	}
}

func TestRefresh_DropsUnaddressableEntries(t *testing.T) {
	lister := &fakeLister{devices: []device.Device{dev(""), dev("A"), dev("bad/id"), dev("wild#")}}
	d := New(lister, &fakeAuth{token: "tok-1"}, time.Hour)

	got, err := d.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if len(got) != 1 || got["A"].ID != "A" {
		t.Errorf("Refresh() = %v, want only A", got)
	}
}

func TestRefresh_Empty(t *testing.T) {
	tests := []struct {
		name    string
		devices []device.Device
	}{
		{"no entries", nil},
		{"only entries without id", []device.Device{dev("")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lister := &fakeLister{devices: []device.Device{dev("A")}}
			d := New(lister, &fakeAuth{token: "tok-1"}, time.Hour)
			_, _ = d.Refresh(context.Background())

			var published int
			d.Subscribe(func(Change) { published++ })
			lister.set(tt.devices...)

			_, err := d.Refresh(context.Background())
			if !errors.Is(err, ErrNoSharedDevices) || !errors.Is(err, ErrUpdateFailed) {
				t.Fatalf("Refresh() error = %v, want ErrUpdateFailed and ErrNoSharedDevices", err)
			}
			if published != 0 {
				t.Errorf("published %d changes on failure", published)
			}
			if got := d.Devices(); len(got) != 1 || got["A"].ID != "A" {
				t.Errorf("Devices() = %v, want previous set kept", got)
			}
			if !errors.Is(d.LastError(), ErrNoSharedDevices) {
				t.Errorf("LastError() = %v", d.LastError())
			}
		})
	}
}

func TestRefresh_AuthRetriedOnce(t *testing.T) {
	lister := &fakeLister{devices: []device.Device{dev("A")}, rejected: map[string]bool{"tok-1": true}}
	auth := &fakeAuth{token: "tok-1"}
	d := New(lister, auth, time.Hour)

	if _, err := d.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if auth.forced != 1 {
		t.Errorf("forced logins = %d, want 1", auth.forced)
	}
	if fmt.Sprint(lister.tokens) != "[tok-1 tok-2]" {
		t.Errorf("tokens used = %v, want [tok-1 tok-2]", lister.tokens)
	}
}

func TestRefresh_SecondAuthFailureIsFatal(t *testing.T) {
	lister := &fakeLister{devices: []device.Device{dev("A")}, rejected: map[string]bool{"tok-1": true, "tok-2": true}}
	auth := &fakeAuth{token: "tok-1"}
	d := New(lister, auth, time.Hour)

	_, err := d.Refresh(context.Background())
	if !errors.Is(err, cloud.ErrAuth) || !errors.Is(err, ErrUpdateFailed) {
		t.Fatalf("Refresh() error = %v, want ErrUpdateFailed and ErrAuth", err)
	}
	if lister.calls != 2 {
		t.Errorf("list calls = %d, want 2", lister.calls)
	}
}

func TestRefresh_ConnectivityNotRetried(t *testing.T) {
	lister := &fakeLister{err: fmt.Errorf("%w: timeout", cloud.ErrConnectivity)}
	auth := &fakeAuth{token: "tok-1"}
	d := New(lister, auth, time.Hour)

	_, err := d.Refresh(context.Background())
	if !errors.Is(err, cloud.ErrConnectivity) {
		t.Fatalf("Refresh() error = %v, want ErrConnectivity", err)
	}
	if lister.calls != 1 || auth.forced != 0 {
		t.Errorf("list calls = %d, forced = %d; want 1, 0", lister.calls, auth.forced)
	}
}

func TestRefresh_LoginFailure(t *testing.T) {
	lister := &fakeLister{devices: []device.Device{dev("A")}}
	auth := &fakeAuth{loginErr: fmt.Errorf("%w: bad password", cloud.ErrAuth)}
	d := New(lister, auth, time.Hour)

	_, err := d.Refresh(context.Background())
	if !errors.Is(err, cloud.ErrAuth) {
		t.Fatalf("Refresh() error = %v, want ErrAuth", err)
	}
	if lister.calls != 0 {
		t.Errorf("list calls = %d, want 0", lister.calls)
	}
	if auth.ensures != 1 {
		t.Errorf("EnsureValid calls = %d, want 1", auth.ensures)
	}
}

// rejectingCloud refuses every login.
type rejectingCloud struct {
	mu     sync.Mutex
	logins int
}

func (r *rejectingCloud) Zone(_ context.Context, region string) (cloud.Zone, error) {
	return cloud.Zone{Region: region, Auth: cloud.Endpoint{Domain: "am.example.test", Port: 12443}}, nil
}

func (r *rejectingCloud) Login(context.Context, cloud.Endpoint, cloud.LoginRequest) (cloud.LoginResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logins++
	return cloud.LoginResult{}, fmt.Errorf("%w: HTTP 401", cloud.ErrAuth)
}

func TestRefresh_RejectedLoginAttemptedOnce(t *testing.T) {
	api := &rejectingCloud{}
	sess, err := account.NewSession(context.Background(), api, account.NewMemoryStore(), config.AccountConfig{
		Region:      "DE",
		CountryCode: "+49",
		Email:       "owner@example.test",
		Password:    "wrong",
	})
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	lister := &fakeLister{devices: []device.Device{dev("A")}}
	d := New(lister, sess, time.Hour)

	_, err = d.Refresh(context.Background())
	if !errors.Is(err, cloud.ErrAuth) || !errors.Is(err, ErrUpdateFailed) {
		t.Fatalf("Refresh() error = %v, want ErrUpdateFailed and ErrAuth", err)
	}
	if api.logins != 1 {
		t.Errorf("login calls = %d, want 1", api.logins)
	}
	if lister.calls != 0 {
		t.Errorf("list calls = %d, want 0", lister.calls)
	}
}

func TestRun_RefreshesEagerlyAndPeriodically(t *testing.T) {
	lister := &fakeLister{devices: []device.Device{dev("A")}}
	d := New(lister, &fakeAuth{token: "tok-1"}, 20*time.Millisecond)

	var mu sync.Mutex
	count := 0
	d.Subscribe(func(Change) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 70*time.Millisecond)
	defer cancel()
	if err := d.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() error = %v, want deadline exceeded", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if count < 2 {
		t.Errorf("refreshes = %d, want at least 2", count)
	}
}

func TestNew_DefaultInterval(t *testing.T) {
	if got := New(nil, nil, 0).Interval(); got != DefaultInterval {
		t.Errorf("Interval() = %v, want %v", got, DefaultInterval)
	}
}
