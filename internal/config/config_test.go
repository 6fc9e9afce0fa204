package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTOML(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "redline.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

const minimalTOML = `
keypairs = "/keys/payers.json"
authority = "11111111111111111111111111111111"

[connection]
ephem-url = "http://127.0.0.1:8899"

[benchmark.mode]
kind = "simple-byte-set"
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeTOML(t, minimalTOML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Parallelism != 1 {
		t.Fatalf("Parallelism default = %d, want 1", cfg.Parallelism)
	}
	if cfg.Benchmark.Iterations != 1000 {
		t.Fatalf("Benchmark.Iterations default = %d, want 1000", cfg.Benchmark.Iterations)
	}
	if cfg.Connection.HTTPConnectionType != "http1" {
		t.Fatalf("Connection.HTTPConnectionType default = %q, want http1", cfg.Connection.HTTPConnectionType)
	}
	if !cfg.Confirmations.SubscribeToAccounts {
		t.Fatal("Confirmations.SubscribeToAccounts default should be true")
	}
	if cfg.Data.AccountEncoding != "base64" || cfg.Data.AccountSize != 128 {
		t.Fatalf("Data defaults = %+v, want base64/128", cfg.Data)
	}
}

func TestLoadRejectsMissingKeypairs(t *testing.T) {
	_, err := Load(writeTOML(t, `
authority = "11111111111111111111111111111111"
[connection]
ephem-url = "http://127.0.0.1:8899"
[benchmark.mode]
kind = "simple-byte-set"
`))
	if err == nil {
		t.Fatal("Load without keypairs should fail validation")
	}
}

func TestLoadRejectsUnknownAccountEncoding(t *testing.T) {
	_, err := Load(writeTOML(t, minimalTOML+"\n[data]\naccount-encoding = \"utf8\"\n"))
	if err == nil {
		t.Fatal("Load with an unsupported account-encoding should fail validation")
	}
}

func TestLoadRejectsBadAccountSize(t *testing.T) {
	_, err := Load(writeTOML(t, minimalTOML+"\n[data]\naccount-size = 100\n"))
	if err == nil {
		t.Fatal("Load with an unsupported account-size should fail validation")
	}
}

func TestLoadRequiresChainURLWhenPulserEnabled(t *testing.T) {
	_, err := Load(writeTOML(t, minimalTOML+"\n[benchmark]\nclone-frequency-ms = 500\n"))
	if err == nil {
		t.Fatal("Load with clone-frequency-ms > 0 and no chain-url should fail validation")
	}
}

func TestLoadDecodesMixedModeChildren(t *testing.T) {
	body := `
keypairs = "/keys/payers.json"
authority = "11111111111111111111111111111111"

[connection]
ephem-url = "http://127.0.0.1:8899"

[benchmark.mode]
kind = "mixed"

[[benchmark.mode.children]]
weight = 3
[benchmark.mode.children.mode]
kind = "get-balance"

[[benchmark.mode.children]]
weight = 1
[benchmark.mode.children.mode]
kind = "simple-byte-set"
`
	cfg, err := Load(writeTOML(t, body))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Benchmark.Mode.Kind != ModeMixed {
		t.Fatalf("Mode.Kind = %q, want mixed", cfg.Benchmark.Mode.Kind)
	}
	if len(cfg.Benchmark.Mode.Children) != 2 {
		t.Fatalf("Children count = %d, want 2", len(cfg.Benchmark.Mode.Children))
	}
	if cfg.Benchmark.Mode.Children[0].Weight != 3 || cfg.Benchmark.Mode.Children[0].Mode.Kind != ModeGetBalance {
		t.Fatalf("children[0] = %+v, want weight 3 kind get-balance", cfg.Benchmark.Mode.Children[0])
	}
}

func TestEphemWSEndpointDerivesPortFromHTTPURL(t *testing.T) {
	cfg := Config{Connection: ConnectionConfig{EphemURL: "http://127.0.0.1:8899"}}
	got, err := cfg.EphemWSEndpoint()
	if err != nil {
		t.Fatalf("EphemWSEndpoint: %v", err)
	}
	if got != "ws://127.0.0.1:8900" {
		t.Fatalf("EphemWSEndpoint() = %q, want ws://127.0.0.1:8900", got)
	}
}

func TestEphemWSEndpointPrefersExplicitOverride(t *testing.T) {
	cfg := Config{Connection: ConnectionConfig{
		EphemURL:   "http://127.0.0.1:8899",
		EphemWSURL: "ws://different-host:9001",
	}}
	got, err := cfg.EphemWSEndpoint()
	if err != nil {
		t.Fatalf("EphemWSEndpoint: %v", err)
	}
	if got != "ws://different-host:9001" {
		t.Fatalf("EphemWSEndpoint() = %q, want the explicit override", got)
	}
}
