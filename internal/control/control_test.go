package control

import (
	"testing"
	"time"

	"github.com/vuminh/resumebase/internal/core/config"
	"github.com/vuminh/resumebase/internal/infra/backend"
)

func TestNewFactoryKinds(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.BackendConfig
		want    any
		wantErr bool
	}{
		{
			name: "rest",
			cfg:  config.BackendConfig{Kind: "rest", URL: "https://api.example.com", APIKey: "k"},
			want: &backend.RESTFactory{},
		},
		{
			name: "empty kind defaults to rest",
			cfg:  config.BackendConfig{URL: "https://api.example.com"},
			want: &backend.RESTFactory{},
		},
		{
			name: "postgres",
			cfg:  config.BackendConfig{Kind: "postgres", DatabaseURL: "postgres://localhost/db"},
			want: &backend.SQLFactory{},
		},
		{
			name:    "unknown kind",
			cfg:     config.BackendConfig{Kind: "ftp"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory, err := NewFactory(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewFactory failed: %v", err)
			}

			switch tt.want.(type) {
			case *backend.RESTFactory:
				if _, ok := factory.(*backend.RESTFactory); !ok {
					t.Errorf("factory = %T, want *backend.RESTFactory", factory)
				}
			case *backend.SQLFactory:
				if _, ok := factory.(*backend.SQLFactory); !ok {
					t.Errorf("factory = %T, want *backend.SQLFactory", factory)
				}
			}
		})
	}
}

// The app graph must build with no backend configured; a missing URL is a
// warning and calls fail per-operation, not at startup.
func TestNewAppWithoutBackendConfigured(t *testing.T) {
	cfg := config.Default()
	cfg.Backend.URL = ""
	cfg.Backend.APIKey = ""
	cfg.Backend.Timeout = time.Second

	app, err := NewApp(cfg)
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}

	if app.Repository() == nil {
		t.Error("expected repository")
	}
	if app.Monitor() == nil {
		t.Error("expected monitor")
	}

	app.monitor.Stop()
	app.pool.Stop()
}
