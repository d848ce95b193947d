package config

import (
	"testing"
)

func TestFlatten_Simple(t *testing.T) {
	m := map[string]any{
		"a": "hello",
		"b": 42.0,
	}
	got := Flatten(m)
	if got["a"] != "hello" {
		t.Errorf("expected a=hello, got %v", got["a"])
	}
	if got["b"] != 42.0 {
		t.Errorf("expected b=42, got %v", got["b"])
	}
	if len(got) != 2 {
		t.Errorf("expected 2 keys, got %d", len(got))
	}
}

func TestFlatten_Nested(t *testing.T) {
	m := map[string]any{
		"detect": map[string]any{
			"endpoint":     "http://127.0.0.1:8090",
			"max_attempts": 7.0,
		},
		"log_level": "info",
	}
	got := Flatten(m)
	if got["detect.endpoint"] != "http://127.0.0.1:8090" {
		t.Errorf("expected detect.endpoint, got %v", got["detect.endpoint"])
	}
	if got["detect.max_attempts"] != 7.0 {
		t.Errorf("expected detect.max_attempts=7, got %v", got["detect.max_attempts"])
	}
	if got["log_level"] != "info" {
		t.Errorf("expected log_level=info, got %v", got["log_level"])
	}
	if len(got) != 3 {
		t.Errorf("expected 3 keys, got %d", len(got))
	}
}

func TestFlatten_DeeplyNested(t *testing.T) {
	m := map[string]any{
		"a": map[string]any{
			"b": map[string]any{
				"c": "deep",
			},
		},
	}
	got := Flatten(m)
	if got["a.b.c"] != "deep" {
		t.Errorf("expected a.b.c=deep, got %v", got["a.b.c"])
	}
	if len(got) != 1 {
		t.Errorf("expected 1 key, got %d", len(got))
	}
}

func TestFlatten_EmptyMap(t *testing.T) {
	got := Flatten(map[string]any{})
	if len(got) != 0 {
		t.Errorf("expected 0 keys, got %d", len(got))
	}
}

func TestFlatten_EmptyNestedMap(t *testing.T) {
	m := map[string]any{
		"a": map[string]any{},
	}
	got := Flatten(m)
	if len(got) != 0 {
		t.Errorf("expected 0 keys (empty nested map produces nothing), got %d", len(got))
	}
}

func TestUnflatten_Simple(t *testing.T) {
	flat := map[string]any{
		"a": "hello",
		"b": 42.0,
	}
	got := Unflatten(flat)
	if got["a"] != "hello" {
		t.Errorf("expected a=hello, got %v", got["a"])
	}
	if got["b"] != 42.0 {
		t.Errorf("expected b=42, got %v", got["b"])
	}
}

func TestUnflatten_Nested(t *testing.T) {
	flat := map[string]any{
		"extract.endpoint":    "http://127.0.0.1:8092",
		"extract.timeout_sec": 20.0,
		"log_level":           "info",
	}
	got := Unflatten(flat)
	extract, ok := got["extract"].(map[string]any)
	if !ok {
		t.Fatalf("expected extract to be map, got %T", got["extract"])
	}
	if extract["endpoint"] != "http://127.0.0.1:8092" {
		t.Errorf("expected extract.endpoint, got %v", extract["endpoint"])
	}
	if extract["timeout_sec"] != 20.0 {
		t.Errorf("expected extract.timeout_sec=20, got %v", extract["timeout_sec"])
	}
	if got["log_level"] != "info" {
		t.Errorf("expected log_level=info, got %v", got["log_level"])
	}
}

func TestUnflatten_DeeplyNested(t *testing.T) {
	flat := map[string]any{
		"a.b.c": "deep",
	}
	got := Unflatten(flat)
	a, ok := got["a"].(map[string]any)
	if !ok {
		t.Fatalf("expected a to be map, got %T", got["a"])
	}
	b, ok := a["b"].(map[string]any)
	if !ok {
		t.Fatalf("expected a.b to be map, got %T", a["b"])
	}
	if b["c"] != "deep" {
		t.Errorf("expected a.b.c=deep, got %v", b["c"])
	}
}

func TestUnflatten_EmptyMap(t *testing.T) {
	got := Unflatten(map[string]any{})
	if len(got) != 0 {
		t.Errorf("expected 0 keys, got %d", len(got))
	}
}

func TestRoundTrip_FlattenUnflatten(t *testing.T) {
	original := map[string]any{
		"data_dir":  "/home/test/.framerelay",
		"log_level": "debug",
		"detect": map[string]any{
			"endpoint":    "http://127.0.0.1:8090",
			"timeout_sec": 45.0,
		},
		"telegram": map[string]any{
			"token": "bot-token-abc",
		},
	}

	flat := Flatten(original)
	restored := Unflatten(flat)

	if restored["data_dir"] != original["data_dir"] {
		t.Errorf("data_dir mismatch: %v != %v", restored["data_dir"], original["data_dir"])
	}
	if restored["log_level"] != original["log_level"] {
		t.Errorf("log_level mismatch: %v != %v", restored["log_level"], original["log_level"])
	}

	detect := restored["detect"].(map[string]any)
	origDetect := original["detect"].(map[string]any)
	if detect["endpoint"] != origDetect["endpoint"] {
		t.Errorf("detect.endpoint mismatch: %v != %v", detect["endpoint"], origDetect["endpoint"])
	}
	if detect["timeout_sec"] != origDetect["timeout_sec"] {
		t.Errorf("detect.timeout_sec mismatch: %v != %v", detect["timeout_sec"], origDetect["timeout_sec"])
	}

	tg := restored["telegram"].(map[string]any)
	origTg := original["telegram"].(map[string]any)
	if tg["token"] != origTg["token"] {
		t.Errorf("telegram.token mismatch: %v != %v", tg["token"], origTg["token"])
	}
}

func TestMaskSecrets_AllSecrets(t *testing.T) {
	flat := map[string]any{
		"detect.endpoint": "http://127.0.0.1:8090",
		"telegram.token":  "123456:ABCdefGHIjkl",
		"log_level":       "info",
	}
	got := MaskSecrets(flat)

	// Non-secret should be unchanged
	if got["detect.endpoint"] != "http://127.0.0.1:8090" {
		t.Errorf("expected detect.endpoint unchanged, got %v", got["detect.endpoint"])
	}
	if got["log_level"] != "info" {
		t.Errorf("expected log_level=info, got %v", got["log_level"])
	}

	// Secrets should be masked with last 4 chars
	if got["telegram.token"] != "***Ijkl" {
		t.Errorf("expected telegram.token=***Ijkl, got %v", got["telegram.token"])
	}
}

func TestMaskSecrets_EmptySecret(t *testing.T) {
	flat := map[string]any{
		"telegram.token": "",
	}
	got := MaskSecrets(flat)
	if got["telegram.token"] != "" {
		t.Errorf("expected empty string to remain empty, got %v", got["telegram.token"])
	}
}

func TestMaskSecrets_ShortSecret(t *testing.T) {
	flat := map[string]any{
		"telegram.token": "ab",
	}
	got := MaskSecrets(flat)
	if got["telegram.token"] != "***ab" {
		t.Errorf("expected ***ab for short secret, got %v", got["telegram.token"])
	}
}

func TestMaskSecrets_ExactlyFourChars(t *testing.T) {
	flat := map[string]any{
		"telegram.token": "abcd",
	}
	got := MaskSecrets(flat)
	if got["telegram.token"] != "***abcd" {
		t.Errorf("expected ***abcd for 4-char secret, got %v", got["telegram.token"])
	}
}

func TestMaskSecrets_NoSecretKeys(t *testing.T) {
	flat := map[string]any{
		"log_level":       "debug",
		"data_dir":        "/tmp",
		"extract.endpoint": "http://127.0.0.1:8092",
	}
	got := MaskSecrets(flat)
	if got["log_level"] != "debug" {
		t.Errorf("expected log_level=debug, got %v", got["log_level"])
	}
	if got["data_dir"] != "/tmp" {
		t.Errorf("expected data_dir=/tmp, got %v", got["data_dir"])
	}
	if got["extract.endpoint"] != "http://127.0.0.1:8092" {
		t.Errorf("expected extract.endpoint unchanged, got %v", got["extract.endpoint"])
	}
}

func TestFlatten_MixedTypes(t *testing.T) {
	m := map[string]any{
		"str":   "hello",
		"num":   42.0,
		"bool":  true,
		"float": 3.14,
		"nested": map[string]any{
			"val": "inside",
		},
	}
	got := Flatten(m)
	if got["str"] != "hello" {
		t.Errorf("expected str=hello, got %v", got["str"])
	}
	if got["num"] != 42.0 {
		t.Errorf("expected num=42, got %v", got["num"])
	}
	if got["bool"] != true {
		t.Errorf("expected bool=true, got %v", got["bool"])
	}
	if got["float"] != 3.14 {
		t.Errorf("expected float=3.14, got %v", got["float"])
	}
	if got["nested.val"] != "inside" {
		t.Errorf("expected nested.val=inside, got %v", got["nested.val"])
	}
}

func TestIsSecretKey(t *testing.T) {
	if !IsSecretKey("telegram.token") {
		t.Error("telegram.token should be secret")
	}
	if IsSecretKey("detect.endpoint") {
		t.Error("detect.endpoint should not be secret")
	}
}
