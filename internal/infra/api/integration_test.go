//go:build integration

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"jobmatchly/internal/domain"
	"jobmatchly/internal/infra/adapters/email"
	"jobmatchly/internal/infra/adapters/payment"
	"jobmatchly/internal/infra/api"
	"jobmatchly/internal/infra/db/postgres"
	"jobmatchly/internal/infra/i18n"
	"jobmatchly/internal/infra/logging"
	"jobmatchly/internal/infra/worker"
	"jobmatchly/internal/usecase"

	"github.com/jackc/pgx/v4/pgxpool"
)

var testPool *pgxpool.Pool

func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 10; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parentDir := filepath.Dir(dir)
		if parentDir == dir {
			break
		}
		dir = parentDir
	}
	return "", errors.New("could not find project root containing go.mod")
}

func TestMain(m *testing.M) {
	ctx := context.Background()
	const (
		dbName     = "api_test_db"
		dbUser     = "api_test_user"
		dbPassword = "password"
		dbPort     = "5433"
	)

	cmd := exec.Command("docker", "run", "-d", "--rm",
		"-p", dbPort+":5432",
		"-e", "POSTGRES_DB="+dbName,
		"-e", "POSTGRES_USER="+dbUser,
		"-e", "POSTGRES_PASSWORD="+dbPassword,
		"postgres:16",
	)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		log.Fatalf("could not start postgres container for api tests: %v. Is Docker running?", err)
	}
	containerID := strings.TrimSpace(out.String())

	dsn := fmt.Sprintf("postgres://%s:%s@localhost:%s/%s?sslmode=disable", dbUser, dbPassword, dbPort, dbName)
	var err error
	for i := 0; i < 15; i++ {
		if testPool, err = pgxpool.Connect(ctx, dsn); err == nil {
			if err = testPool.Ping(ctx); err == nil {
				break
			}
			testPool.Close()
		}
		log.Println("Waiting for api test database to be ready...")
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		_ = exec.Command("docker", "stop", containerID).Run()
		log.Fatalf("Unable to connect to api test database: %v", err)
	}

	root, err := findProjectRoot()
	if err != nil {
		log.Fatal(err)
	}
	schema, err := os.ReadFile(filepath.Join(root, "deploy", "postgres", "init.sql"))
	if err != nil {
		log.Fatalf("could not read init.sql: %v", err)
	}
	if _, err := testPool.Exec(ctx, string(schema)); err != nil {
		log.Fatalf("could not apply schema for api tests: %v", err)
	}

	exitCode := m.Run()

	testPool.Close()
	if err := exec.Command("docker", "stop", containerID).Run(); err != nil {
		log.Printf("could not stop postgres container %s: %v", containerID, err)
	}
	os.Exit(exitCode)
}

// memLocker stands in for the Redis lock within one process.
type memLocker struct {
	mu   sync.Mutex
	held map[string]string
}

func (l *memLocker) TryLock(_ context.Context, key string, _ time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return "", domain.ErrLocked
	}
	tok := fmt.Sprintf("%s-%d", key, time.Now().UnixNano())
	l.held[key] = tok
	return tok, nil
}

func (l *memLocker) Unlock(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}

func TestPurchaseFlow_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	t.Cleanup(func() {
		_, _ = testPool.Exec(ctx, `TRUNCATE users, purchases, purchase_events, credit_ledger, documents RESTART IDENTITY CASCADE`)
	})

	logger := logging.Nop()
	users := postgres.NewUserRepo(testPool)
	purchases := postgres.NewPurchaseRepo(testPool)
	events := postgres.NewPurchaseEventRepo(testPool)
	ledger := postgres.NewLedgerRepo(testPool)
	tm := postgres.NewTxManager(testPool)
	gateway := payment.NewSandboxGateway("http://sandbox.local")

	receipts := worker.NewPool("receipts", 1, logger)
	receipts.Start(ctx)
	t.Cleanup(receipts.Stop)

	creditUC := usecase.NewCreditUseCase(users, ledger, tm, logger)
	purchaseUC := usecase.NewPurchaseUseCase(users, purchases, events, ledger, tm, gateway,
		&memLocker{held: map[string]string{}}, email.NewLogReceiptSender(logger), receipts, usecase.PurchaseOptions{}, logger)

	tr, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	if err != nil {
		t.Fatalf("translator: %v", err)
	}
	const secret = "whsec_integration"
	srv := api.NewServer(api.Services{
		Users:     usecase.NewUserUseCase(users, ledger, tm, 2, logger),
		Credits:   creditUC,
		Purchases: purchaseUC,
	}, api.NewAuthManager("admin_integration", false, "", time.Minute), api.Options{
		WebhookSecret: secret,
		Translator:    tr,
		Sandbox:       gateway,
	}, logger)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	call := func(method, path string, body []byte, header http.Header) map[string]any {
		t.Helper()
		req, _ := http.NewRequest(method, ts.URL+path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		for k, v := range header {
			req.Header[k] = v
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s %s: %v", method, path, err)
		}
		defer resp.Body.Close()
		var out map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			t.Fatalf("%s %s: status %d body %v", method, path, resp.StatusCode, out)
		}
		return out
	}

	// 1. Register gets the signup balance.
	reg := call(http.MethodPost, "/api/v1/users", []byte(`{"email":"flow@example.com","name":"Flow"}`), nil)
	user := reg["user"].(map[string]any)
	userID := user["id"].(string)
	if user["credits"].(float64) != 2 {
		t.Fatalf("expected signup balance 2, got %v", user["credits"])
	}

	// 2. Checkout creates a PENDING purchase with a provider reference.
	co := call(http.MethodPost, "/api/v1/checkout", []byte(fmt.Sprintf(`{"user_id":%q,"credits":3}`, userID)), nil)
	p := co["purchase"].(map[string]any)
	purchaseID, ref := p["id"].(string), p["provider_ref"].(string)
	if p["status"] != "PENDING" || ref == "" {
		t.Fatalf("unexpected purchase after checkout: %v", p)
	}

	// 3. The provider reports PAID twice; credits are granted once.
	body := []byte(fmt.Sprintf(`{"reference":%q,"status":"paid"}`, ref))
	signed := http.Header{payment.SignatureHeader: []string{payment.Sign(secret, body)}}
	first := call(http.MethodPost, "/api/v1/payments/webhook", body, signed)
	if first["status"] != "PAID" {
		t.Fatalf("expected PAID after webhook, got %v", first)
	}
	call(http.MethodPost, "/api/v1/payments/webhook", body, signed)

	// 4. A concurrent finalize storm still grants exactly once.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = purchaseUC.Finalize(ctx, purchaseID)
		}()
	}
	wg.Wait()

	bal := call(http.MethodGet, "/api/v1/users/"+userID+"/credits", nil, nil)
	if bal["balance"].(float64) != 5 {
		t.Fatalf("expected balance 5 after one grant, got %v", bal["balance"])
	}
	rec, err := creditUC.Reconcile(ctx, userID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !rec.Consistent() {
		t.Fatalf("ledger drift after purchase flow: %+v", rec)
	}

	got := call(http.MethodGet, "/api/v1/purchases/"+purchaseID, nil, nil)
	if credited := got["purchase"].(map[string]any)["credited"]; credited != true {
		t.Fatalf("expected purchase to be credited, got %v", got)
	}
}
