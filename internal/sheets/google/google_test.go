package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"budgetly/internal/core"
	ports "budgetly/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{CredentialsJSON: "{}"}, nil)
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "id"}, nil)
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", " sheet-1 ")
	t.Setenv("GOOGLE_SHEET_NAME", "Log")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "/etc/creds.json")

	cfg := ConfigFromEnv()
	if cfg.SpreadsheetID != "sheet-1" || cfg.SheetName != "Log" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.CredentialsFile != "/etc/creds.json" {
		t.Errorf("expected ADC file fallback, got %q", cfg.CredentialsFile)
	}
}

func TestCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sa.json")
	if err := os.WriteFile(path, []byte(`{"type":"service_account"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := credentials(Config{CredentialsJSON: `{"inline":true}`, CredentialsFile: path})
	if err != nil || string(got) != `{"inline":true}` {
		t.Errorf("inline JSON should win: %s %v", got, err)
	}
	got, err = credentials(Config{CredentialsFile: path})
	if err != nil || !strings.Contains(string(got), "service_account") {
		t.Errorf("file credentials: %s %v", got, err)
	}
	if _, err := credentials(Config{CredentialsFile: filepath.Join(t.TempDir(), "missing.json")}); err == nil {
		t.Error("expected error for unreadable file")
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"Activity", "2025 Activity"},
		{"2024 Activity", "2024 Activity"},
		{"  Log ", "2025 Log"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := yearPrefixedName(tt.base, 2025); got != tt.want {
			t.Errorf("yearPrefixedName(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}

func TestQuoteSheet(t *testing.T) {
	if got := quoteSheet("Ann's 2025"); got != "'Ann''s 2025'" {
		t.Errorf("quoteSheet = %q", got)
	}
}

func TestClient_AppendActivity(t *testing.T) {
	var (
		gotPath  string
		gotQuery string
		gotBody  gsheet.ValueRange
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-1","updates":{"updatedRange":"'2025 Activity'!A7:H7"}}`))
	}))
	defer srv.Close()

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	c := newWithService(svc, Config{SpreadsheetID: "sheet-1"}, nil)

	at := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	ref, err := c.AppendActivity(context.Background(), ports.ActivityRow{
		Kind:      "created",
		ExpenseID: 42,
		UserID:    7,
		Title:     "Groceries",
		Amount:    core.Cents(2350),
		Category:  "food",
		Date:      at.Add(-24 * time.Hour),
		At:        at,
	})
	if err != nil {
		t.Fatalf("AppendActivity() error = %v", err)
	}
	if ref != "'2025 Activity'!A7:H7" {
		t.Errorf("ref = %q", ref)
	}
	if !strings.Contains(gotPath, "sheet-1") || !strings.HasSuffix(gotPath, ":append") {
		t.Errorf("unexpected path %q", gotPath)
	}
	if !strings.Contains(gotQuery, "valueInputOption=USER_ENTERED") || !strings.Contains(gotQuery, "insertDataOption=INSERT_ROWS") {
		t.Errorf("unexpected query %q", gotQuery)
	}
	if len(gotBody.Values) != 1 || len(gotBody.Values[0]) != 8 {
		t.Fatalf("unexpected values: %+v", gotBody.Values)
	}
	row := gotBody.Values[0]
	if row[0] != "2025-05-31" || row[1] != "created" || row[4] != "Groceries" || row[5] != "23.50" {
		t.Errorf("unexpected row: %+v", row)
	}
}

func TestClient_AppendActivity_NoService(t *testing.T) {
	c := &Client{}
	if _, err := c.AppendActivity(context.Background(), ports.ActivityRow{}); err == nil {
		t.Error("expected error without service")
	}
}
