//go:build integration || !unit

package integration

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	httpserver "hotel_pricesheet/internal/adapters/http_server"
	redisad "hotel_pricesheet/internal/adapters/redis"
	"hotel_pricesheet/internal/adapters/xlsx"
	"hotel_pricesheet/internal/app"
	"hotel_pricesheet/internal/domain"
	"hotel_pricesheet/internal/shared"
	mysqlrepo "hotel_pricesheet/internal/storage/mysql"
)

// ---------- helpers ----------

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := os.Getenv("MIGRATIONS_DIR")
	if dir == "" {
		dir = filepath.Join("..", "..", "migrations")
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir %s: %v", dir, err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(b)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

func startMySQL(t *testing.T) *sql.DB {
	t.Helper()
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("dockertest: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker not reachable: %v", err)
	}
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env:        []string{"MYSQL_ROOT_PASSWORD=root", "MYSQL_DATABASE=pricesheet"},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	dsn := fmt.Sprintf("root:root@tcp(127.0.0.1:%s)/pricesheet?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC",
		resource.GetPort("3306/tcp"))
	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	applyMigrations(t, db)
	return db
}

// writeTemplate creates an empty price sheet with its two header rows.
func writeTemplate(t *testing.T) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	headers := []string{"Hotel", "Date", "Online-Centrum", "Kompastour", "FunSun", "Kazunion", "PrestigeUZ", "EasyBooking", "Room type"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellStr("Sheet1", cell, h); err != nil {
			t.Fatalf("header: %v", err)
		}
	}
	if err := f.SetCellStr("Sheet1", "A2", "prices per night"); err != nil {
		t.Fatalf("header: %v", err)
	}
	path := filepath.Join(t.TempDir(), "template.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save template: %v", err)
	}
	return path
}

func post(t *testing.T, url string, payload any) domain.Result {
	t.Helper()
	b, _ := json.Marshal(payload)
	resp, err := http.Post(url+"/v1/reconcile", "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	var res domain.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.StatusCode != http.StatusOK || !res.Success {
		t.Fatalf("reconcile: %d %+v", resp.StatusCode, res)
	}
	return res
}

// ---------- the test ----------

func TestHTTP_EndToEnd_ReconcileTwoAggregators(t *testing.T) {
	db := startMySQL(t)
	mr := miniredis.RunT(t)
	cache := redisad.NewWithClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	template := writeTemplate(t)

	runs := mysqlrepo.New(db)
	svc := app.NewReconcileService(xlsx.NewGateway(3, 0), runs, nil, cache, app.ReconcileConfig{
		TemplatePath: template,
		OutputMode:   shared.OutputInPlace,
	}, zerolog.Nop())

	srv := httpserver.New()
	srv.MountHandlers(&httpserver.Handlers{R: svc, Q: app.NewQueryService(runs, cache, time.Minute)})
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	post(t, ts.URL, map[string]any{
		"destination": "Testland",
		"offers": []any{map[string]any{
			"hotel": "Beach Resort 5*", "date": "12.03.2025", "price": 120,
			"roomType": "Double Room", "aggregatorId": "Online-Centrum",
		}},
	})
	res := post(t, ts.URL, map[string]any{
		"destination": "Testland",
		"startDate":   "12.03.2025",
		"offers": []any{
			map[string]any{
				"hotel": "BEACH RESORT (5*)", "date": "12.03.2025", "price": 115,
				"roomType": "Dbl", "aggregatorId": "Kompastour",
			},
			map[string]any{
				"hotel": "Beach Resort 5*", "date": "30.03.2025", "price": 99,
				"roomType": "Dbl", "aggregatorId": "Kompastour",
			},
		},
	})
	if res.FilePath != template {
		t.Fatalf("output path = %q", res.FilePath)
	}

	f, err := excelize.OpenFile(template)
	if err != nil {
		t.Fatalf("open result: %v", err)
	}
	defer f.Close()
	want := map[string]string{"A3": "Beach Resort 5*", "B3": "12.03", "C3": "120", "D3": "115", "I3": "Double Room", "A12": ""}
	for cell, v := range want {
		got, _ := f.GetCellValue("Sheet1", cell)
		if got != v {
			t.Fatalf("%s = %q, want %q", cell, got, v)
		}
	}
	merges, _ := f.GetMergeCells("Sheet1")
	if len(merges) != 1 || merges[0].GetStartAxis() != "A3" || merges[0].GetEndAxis() != "A11" {
		t.Fatalf("merges = %v", merges)
	}

	resp, err := http.Get(ts.URL + "/v1/runs/" + res.RunID + "/misses")
	if err != nil {
		t.Fatalf("get misses: %v", err)
	}
	defer resp.Body.Close()
	var page struct {
		Items []domain.Miss `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		t.Fatalf("decode misses: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].Date != "30.03" {
		t.Fatalf("misses = %+v", page.Items)
	}

	list, err := svcRuns(ts.URL)
	if err != nil || len(list) != 2 {
		t.Fatalf("runs = %+v (%v)", list, err)
	}
}

func svcRuns(base string) ([]domain.Run, error) {
	resp, err := http.Get(base + "/v1/runs")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var page struct {
		Items []domain.Run `json:"items"`
	}
	err = json.NewDecoder(resp.Body).Decode(&page)
	return page.Items, err
}
