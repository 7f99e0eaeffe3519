package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/pitchcast/pitch-orchestrator/config"
)

type stubText struct {
	name   string
	closed int
}

func (s *stubText) Name() string { return s.name }
func (s *stubText) Generate(context.Context, TextRequest) (*TextResult, error) {
	return &TextResult{Content: "ok", Model: s.name}, nil
}
func (s *stubText) Close() error {
	s.closed++
	return nil
}

// withFactories swaps the text factory table for the duration of a test.
func withFactories(t *testing.T, factories map[string]func(*config.Config) (TextProvider, error)) {
	t.Helper()
	saved := textFactories
	textFactories = factories
	t.Cleanup(func() { textFactories = saved })
}

func testRegistry(cfg *config.Config) (*Registry, *logtest.Hook) {
	logger, hook := logtest.NewNullLogger()
	return NewRegistry(cfg, logger), hook
}

func TestResolvePrefersRequestedProvider(t *testing.T) {
	withFactories(t, map[string]func(*config.Config) (TextProvider, error){
		"alpha": func(*config.Config) (TextProvider, error) { return &stubText{name: "alpha"}, nil },
		"beta":  func(*config.Config) (TextProvider, error) { return &stubText{name: "beta"}, nil },
	})
	r, _ := testRegistry(&config.Config{TextFallback: []string{"beta"}})

	p, err := r.Text("alpha")
	if err != nil {
		t.Fatalf("Text(alpha) error = %v", err)
	}
	if p.Name() != "alpha" {
		t.Errorf("Text(alpha) selected %q, want alpha", p.Name())
	}
}

func TestResolveFallsBackInOrder(t *testing.T) {
	constructed := []string{}
	withFactories(t, map[string]func(*config.Config) (TextProvider, error){
		"alpha": func(*config.Config) (TextProvider, error) {
			constructed = append(constructed, "alpha")
			return nil, InvalidConfigError("alpha unconfigured")
		},
		"beta": func(*config.Config) (TextProvider, error) {
			constructed = append(constructed, "beta")
			return &stubText{name: "beta"}, nil
		},
	})
	r, hook := testRegistry(&config.Config{TextFallback: []string{"beta"}})

	p, err := r.Text("alpha")
	if err != nil {
		t.Fatalf("Text(alpha) error = %v", err)
	}
	if p.Name() != "beta" {
		t.Errorf("selected %q, want beta", p.Name())
	}
	if len(constructed) != 2 || constructed[0] != "alpha" {
		t.Errorf("construction order = %v, want [alpha beta]", constructed)
	}

	if got := fallbackWarns(hook); got != 1 {
		t.Errorf("fallback warns after first resolve = %d, want 1", got)
	}

	// A second resolve hits the cached fallback instance and must still
	// surface that the requested provider is not the one serving.
	p, err = r.Text("alpha")
	if err != nil {
		t.Fatalf("second Text(alpha) error = %v", err)
	}
	if p.Name() != "beta" {
		t.Errorf("second resolve selected %q, want beta", p.Name())
	}
	betas := 0
	for _, name := range constructed {
		if name == "beta" {
			betas++
		}
	}
	if betas != 1 {
		t.Errorf("beta constructed %d times, want the cached instance reused", betas)
	}
	if got := fallbackWarns(hook); got != 2 {
		t.Errorf("fallback warns after cached resolve = %d, want 2", got)
	}
}

func fallbackWarns(hook *logtest.Hook) int {
	n := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "using fallback provider" {
			n++
		}
	}
	return n
}

func TestResolveDefaultsToConfiguredProvider(t *testing.T) {
	withFactories(t, map[string]func(*config.Config) (TextProvider, error){
		"alpha": func(*config.Config) (TextProvider, error) { return &stubText{name: "alpha"}, nil },
	})
	r, _ := testRegistry(&config.Config{TextProvider: "alpha"})

	p, err := r.Text("")
	if err != nil {
		t.Fatalf("Text(\"\") error = %v", err)
	}
	if p.Name() != "alpha" {
		t.Errorf("selected %q, want alpha", p.Name())
	}
}

func TestResolveCachesInstances(t *testing.T) {
	calls := 0
	withFactories(t, map[string]func(*config.Config) (TextProvider, error){
		"alpha": func(*config.Config) (TextProvider, error) {
			calls++
			return &stubText{name: "alpha"}, nil
		},
	})
	r, _ := testRegistry(&config.Config{})

	p1, err := r.Text("alpha")
	if err != nil {
		t.Fatal(err)
	}
	p2, err := r.Text("alpha")
	if err != nil {
		t.Fatal(err)
	}
	if p1 != p2 {
		t.Error("expected identical instance across calls")
	}
	if calls != 1 {
		t.Errorf("factory called %d times, want 1", calls)
	}
}

func TestResolveExhaustedChain(t *testing.T) {
	cause := errors.New("no credentials")
	withFactories(t, map[string]func(*config.Config) (TextProvider, error){
		"alpha": func(*config.Config) (TextProvider, error) { return nil, cause },
	})
	r, _ := testRegistry(&config.Config{TextFallback: []string{"missing"}})

	_, err := r.Text("alpha")
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("error = %v, want *ExhaustedError", err)
	}
	if len(exhausted.Tried) != 2 {
		t.Errorf("Tried = %v, want both candidates", exhausted.Tried)
	}
	if !errors.Is(err, cause) {
		t.Errorf("exhausted error does not wrap the last cause: %v", err)
	}
}

func TestCloseAllClearsCaches(t *testing.T) {
	instances := []*stubText{}
	withFactories(t, map[string]func(*config.Config) (TextProvider, error){
		"alpha": func(*config.Config) (TextProvider, error) {
			s := &stubText{name: fmt.Sprintf("alpha-%d", len(instances))}
			instances = append(instances, s)
			return s, nil
		},
	})
	r, _ := testRegistry(&config.Config{})

	p1, err := r.Text("alpha")
	if err != nil {
		t.Fatal(err)
	}
	r.CloseAll()
	r.CloseAll() // idempotent

	if instances[0].closed != 1 {
		t.Errorf("first instance closed %d times, want 1", instances[0].closed)
	}

	p2, err := r.Text("alpha")
	if err != nil {
		t.Fatal(err)
	}
	if p1 == p2 {
		t.Error("expected a fresh instance after CloseAll")
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	withFactories(t, map[string]func(*config.Config) (TextProvider, error){})

	f := func(*config.Config) (TextProvider, error) { return &stubText{name: "dup"}, nil }
	if err := RegisterText("dup", f); err != nil {
		t.Fatalf("first RegisterText error = %v", err)
	}
	if err := RegisterText("dup", f); !errors.Is(err, ErrRegistered) {
		t.Errorf("duplicate RegisterText error = %v, want ErrRegistered", err)
	}
}
