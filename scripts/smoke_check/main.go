package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// target is one route probe. Role selects the bearer token from SMOKE_TOKEN_<ROLE>; empty means anonymous.
type target struct {
	Method   string `json:"method"`
	Path     string `json:"path"`
	Role     string `json:"role"`
	Expect   int    `json:"expect"`
	Critical bool   `json:"critical"`
}

type config struct {
	Targets []target `json:"targets"`
}

type probe struct {
	Target   target
	Status   int
	Envelope bool
	Duration time.Duration
	Error    error
}

func (p probe) ok() bool {
	return p.Error == nil && p.Status == p.Target.Expect && p.Envelope
}

func main() {
	var (
		base        string
		targetsPath string
		timeout     time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&targetsPath, "targets", filepath.Join("scripts", "smoke_check", "targets.json"), "Path to JSON targets file")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	targets, err := loadTargets(targetsPath)
	if err != nil {
		log.Fatalf("failed to load targets: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	var (
		probes   []probe
		breaking int
		optional int
	)
	for _, t := range targets {
		p := run(client, base, t)
		if !p.ok() {
			if t.Critical {
				breaking++
			} else {
				optional++
			}
		}
		probes = append(probes, p)
	}

	printReport(probes)
	fmt.Printf("Critical failures: %d, Optional failures: %d\n", breaking, optional)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadTargets(path string) ([]target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	for i := range cfg.Targets {
		if cfg.Targets[i].Expect == 0 {
			cfg.Targets[i].Expect = http.StatusOK
		}
	}
	return cfg.Targets, nil
}

func run(client *http.Client, base string, tgt target) probe {
	p := probe{Target: tgt}
	method := strings.ToUpper(strings.TrimSpace(tgt.Method))
	if method == "" {
		method = http.MethodGet
	}
	path := tgt.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	req, err := http.NewRequest(method, strings.TrimRight(base, "/")+path, nil)
	if err != nil {
		p.Error = err
		return p
	}
	if tgt.Role != "" {
		token := os.Getenv("SMOKE_TOKEN_" + strings.ToUpper(tgt.Role))
		if token == "" {
			p.Error = fmt.Errorf("SMOKE_TOKEN_%s is not set", strings.ToUpper(tgt.Role))
			return p
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := client.Do(req)
	p.Duration = time.Since(start)
	if err != nil {
		p.Error = err
		return p
	}
	defer resp.Body.Close()

	p.Status = resp.StatusCode
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		p.Error = fmt.Errorf("read body: %w", err)
		return p
	}
	p.Envelope = !strings.HasPrefix(path, "/api/") || isEnvelope(resp, body)
	return p
}

// isEnvelope reports whether a JSON body carries data or error at the top level. Non-JSON bodies pass.
func isEnvelope(resp *http.Response, body []byte) bool {
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") || len(body) == 0 {
		return true
	}
	var env map[string]json.RawMessage
	if err := json.Unmarshal(body, &env); err != nil {
		return false
	}
	_, hasData := env["data"]
	_, hasError := env["error"]
	return hasData || hasError
}

func printReport(results []probe) {
	fmt.Println("Smoke Check Report")
	fmt.Println("==================")
	for _, res := range results {
		status := "OK"
		switch {
		case res.Error != nil:
			status = "ERROR"
		case !res.ok():
			status = "FAIL"
		}
		role := res.Target.Role
		if role == "" {
			role = "anonymous"
		}
		fmt.Printf("[%s] %s %s as %s\n", status, res.Target.Method, res.Target.Path, role)
		if res.Error != nil {
			fmt.Printf("  Error: %v\n", res.Error)
			continue
		}
		fmt.Printf("  Status: %d want %d (%s) | Envelope: %t | Critical: %t\n", res.Status, res.Target.Expect, res.Duration, res.Envelope, res.Target.Critical)
	}
}
