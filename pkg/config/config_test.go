package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
server:
  name: roomservice-api
  port: 8081
database:
  driver: postgres
  host: db
  port: 5432
  username: app
  password: secret
  database: roomservice
auth:
  jwt_secret: s3cret
notify:
  attempts: 5
  backoff: 250ms
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8081 {
		t.Errorf("Server.Port = %d, want 8081", cfg.Server.Port)
	}
	if cfg.Notify.Attempts != 5 || cfg.Notify.Backoff != 250*time.Millisecond {
		t.Errorf("Notify = %+v", cfg.Notify)
	}
	// defaults
	if cfg.GRPC.Port != 9090 || cfg.Redis.LockTTL != 10*time.Second {
		t.Errorf("defaults not applied: grpc=%+v redis=%+v", cfg.GRPC, cfg.Redis)
	}
	if want := "host=db port=5432 user=app password=secret dbname=roomservice sslmode=disable"; cfg.Database.DSN() != want {
		t.Errorf("DSN() = %q, want %q", cfg.Database.DSN(), want)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("ROOMSERVICE_SERVER_PORT", "9999")
	t.Setenv("ROOMSERVICE_AUTH_JWT_SECRET", "from-env")

	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Auth.JWTSecret != "from-env" {
		t.Errorf("JWTSecret = %q", cfg.Auth.JWTSecret)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{name: "valid", cfg: Config{Database: DatabaseConfig{Driver: "mysql"}, Auth: AuthConfig{JWTSecret: "x"}, Notify: NotifyConfig{Attempts: 1}}, ok: true},
		{name: "badDriver", cfg: Config{Database: DatabaseConfig{Driver: "oracle"}, Auth: AuthConfig{JWTSecret: "x"}, Notify: NotifyConfig{Attempts: 1}}},
		{name: "noSecret", cfg: Config{Database: DatabaseConfig{Driver: "sqlite"}, Notify: NotifyConfig{Attempts: 1}}},
		{name: "noAttempts", cfg: Config{Database: DatabaseConfig{Driver: "sqlite"}, Auth: AuthConfig{JWTSecret: "x"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() error = %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("Validate() expected error")
			}
		})
	}
}

func TestMySQLDSN(t *testing.T) {
	c := DatabaseConfig{Driver: "mysql", Host: "h", Port: 3306, Username: "u", Password: "p", Database: "d"}
	if want := "u:p@tcp(h:3306)/d?charset=utf8mb4&parseTime=True&loc=Local"; c.DSN() != want {
		t.Errorf("DSN() = %q", c.DSN())
	}
}
