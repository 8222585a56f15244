package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smith3v/mathquiz/pkg/db"
	"github.com/smith3v/mathquiz/pkg/questions"
	"github.com/smith3v/mathquiz/pkg/statistics"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	cfg := map[string]any{
		"database": map[string]any{"driver": "sqlite", "path": filepath.Join(dir, "quiz.db")},
		"logging":  map[string]any{"level": "error", "gorm_level": "silent"},
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("failed to encode config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func run(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	return runWithInput(t, configPath, strings.NewReader(""), args...)
}

func runWithInput(t *testing.T, configPath string, stdin io.Reader, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetIn(stdin)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, configPath string, args ...string) string {
	t.Helper()
	out, err := run(t, configPath, args...)
	if err != nil {
		t.Fatalf("%v failed: %v\n%s", args, err, out)
	}
	return out
}

func TestMigrateAndSeed(t *testing.T) {
	cfg := writeConfig(t)

	if out := mustRun(t, cfg, "migrate"); !strings.Contains(out, "schema up to date") {
		t.Fatalf("unexpected migrate output %q", out)
	}
	if out := mustRun(t, cfg, "seed"); strings.TrimSpace(out) != "users: 2, questions: 2" {
		t.Fatalf("unexpected seed output %q", out)
	}
	if out := mustRun(t, cfg, "seed"); strings.TrimSpace(out) != "users: 2, questions: 2" {
		t.Fatalf("seeding twice must not duplicate rows, got %q", out)
	}
	if out := mustRun(t, cfg, "account", "login", "--email", "alice@example.com", "--password", "ChangeMe123"); strings.TrimSpace(out) != "ok" {
		t.Fatalf("unexpected login output %q", out)
	}
}

func TestAccountCommands(t *testing.T) {
	cfg := writeConfig(t)

	out := mustRun(t, cfg, "account", "create",
		"--name", "Alice", "--email", "alice@example.com", "--password", "Secret123", "--focus-area", "Calculus")
	if strings.TrimSpace(out) != "created account 1" {
		t.Fatalf("unexpected create output %q", out)
	}

	_, err := run(t, cfg, "account", "create", "--name", "Eve", "--email", "alice@example.com", "--password", "x")
	if !errors.Is(err, db.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	_, err = run(t, cfg, "account", "login", "--email", "alice@example.com", "--password", "nope")
	if !errors.Is(err, errInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}

	out = mustRun(t, cfg, "account", "show", "--email", "alice@example.com")
	var acc struct {
		Name      string `json:"name"`
		FocusArea string `json:"focus_area"`
	}
	if err := json.Unmarshal([]byte(out), &acc); err != nil {
		t.Fatalf("failed to decode %q: %v", out, err)
	}
	if acc.Name != "Alice" || acc.FocusArea != "Calculus" {
		t.Fatalf("unexpected account %+v", acc)
	}

	mustRun(t, cfg, "account", "delete", "--id", "1")
	if _, err := run(t, cfg, "account", "show", "--email", "alice@example.com"); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestStatsCommands(t *testing.T) {
	cfg := writeConfig(t)
	mustRun(t, cfg, "account", "create", "--name", "Bob", "--email", "bob@example.com", "--password", "pw")

	mustRun(t, cfg, "stats", "attempt", "--id", "1", "--correct")
	out := mustRun(t, cfg, "stats", "attempt", "--id", "1")
	if strings.TrimSpace(out) != "answered 2, correct 1, accuracy 0.50" {
		t.Fatalf("unexpected attempt output %q", out)
	}
	mustRun(t, cfg, "stats", "highscore", "--id", "1", "--score", "50")
	if out := mustRun(t, cfg, "stats", "highscore", "--id", "1", "--score", "30"); strings.TrimSpace(out) != "high score 50" {
		t.Fatalf("unexpected highscore output %q", out)
	}

	var summary statistics.Summary
	if err := json.Unmarshal([]byte(mustRun(t, cfg, "stats", "show", "--id", "1")), &summary); err != nil {
		t.Fatalf("failed to decode stats: %v", err)
	}
	if summary.HighScore != 50 || summary.Answered != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestQuestionCommands(t *testing.T) {
	cfg := writeConfig(t)

	mustRun(t, cfg, "question", "add", "--focus-area", "Physics", "--question", "Unit of force?", "--answer", "Newton")
	if _, err := run(t, cfg, "question", "add", "--question", "", "--answer", "x"); !errors.Is(err, db.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	csvPath := filepath.Join(t.TempDir(), "in.csv")
	data := "question;answer;focus_area\n1+1;2;Other\n;skip me\n2+2;4\n"
	if err := os.WriteFile(csvPath, []byte(data), 0o600); err != nil {
		t.Fatalf("failed to write csv: %v", err)
	}
	out := mustRun(t, cfg, "question", "import", csvPath)
	if strings.TrimSpace(out) != "imported 2 questions, skipped 1 rows" {
		t.Fatalf("unexpected import output %q", out)
	}

	var list []questions.Question
	if err := json.Unmarshal([]byte(mustRun(t, cfg, "question", "list", "--focus-area", "Physics")), &list); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if len(list) != 1 || list[0].Answer != "Newton" {
		t.Fatalf("unexpected list %+v", list)
	}

	exportPath := filepath.Join(t.TempDir(), "out.csv")
	mustRun(t, cfg, "question", "export", "-o", exportPath)
	exported, err := os.ReadFile(exportPath)
	if err != nil {
		t.Fatalf("failed to read export: %v", err)
	}
	inputs, skipped, err := questions.ParseCSV(exported)
	if err != nil || skipped != 0 || len(inputs) != 3 {
		t.Fatalf("unexpected export round trip: %d rows, %d skipped, err=%v", len(inputs), skipped, err)
	}

	exportDir := t.TempDir()
	mustRun(t, cfg, "question", "export", "-o", exportDir)
	named := filepath.Join(exportDir, fmt.Sprintf("questions-%s.csv", time.Now().Format("20060102")))
	fromDir, err := os.ReadFile(named)
	if err != nil {
		t.Fatalf("expected dated export in directory: %v", err)
	}
	if !bytes.Equal(fromDir, exported) {
		t.Fatal("directory export differs from file export")
	}
}

func TestPasswordFromEnvOrStdin(t *testing.T) {
	cfg := writeConfig(t)
	t.Setenv(passwordEnv, "")

	out, err := runWithInput(t, cfg, strings.NewReader("Secret123\n"),
		"account", "create", "--name", "Dana", "--email", "dana@example.com")
	if err != nil || strings.TrimSpace(out) != "created account 1" {
		t.Fatalf("create with stdin password: %q, %v", out, err)
	}
	if out := mustRun(t, cfg, "account", "login", "--email", "dana@example.com", "--password", "Secret123"); strings.TrimSpace(out) != "ok" {
		t.Fatalf("unexpected login output %q", out)
	}

	out, err = runWithInput(t, cfg, strings.NewReader("Secret123\r\n"), "account", "login", "--email", "dana@example.com")
	if err != nil || strings.TrimSpace(out) != "ok" {
		t.Fatalf("login with stdin password: %q, %v", out, err)
	}

	t.Setenv(passwordEnv, "Secret123")
	if out := mustRun(t, cfg, "account", "login", "--email", "dana@example.com"); strings.TrimSpace(out) != "ok" {
		t.Fatalf("login with env password: %q", out)
	}
	t.Setenv(passwordEnv, "wrong")
	if _, err := run(t, cfg, "account", "login", "--email", "dana@example.com"); !errors.Is(err, errInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := run(t, cfg, "account", "login", "--email", "dana@example.com", "--password", "Secret123"); err != nil {
		t.Fatalf("flag must win over env: %v", err)
	}
}

func TestSessionsPrune(t *testing.T) {
	cfg := writeConfig(t)
	if out := mustRun(t, cfg, "sessions", "prune"); strings.TrimSpace(out) != "removed 0 expired sessions" {
		t.Fatalf("unexpected prune output %q", out)
	}
}

func TestServeRequiresSecret(t *testing.T) {
	cfg := writeConfig(t)
	t.Setenv("MATHQUIZ_JWT_SECRET", "")
	if _, err := run(t, cfg, "serve"); err == nil || !strings.Contains(err.Error(), "jwt_secret") {
		t.Fatalf("expected missing secret error, got %v", err)
	}
}

func TestMissingConfigFile(t *testing.T) {
	if _, err := run(t, filepath.Join(t.TempDir(), "absent.json"), "migrate"); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestFocusAreaHelpListsNames(t *testing.T) {
	cfg := writeConfig(t)
	for _, args := range [][]string{{"question", "add", "--help"}, {"account", "create", "--help"}} {
		out := mustRun(t, cfg, args...)
		if !strings.Contains(out, "Calculus") || !strings.Contains(out, "Other") {
			t.Fatalf("%v help does not list focus areas:\n%s", args, out)
		}
	}
}
